// Package payment creates hosted checkout sessions and verifies the
// provider's completion webhooks.
package payment

import (
	"context"
	"encoding/json"
	"math"

	"github.com/princinho/toursbackend/apperror"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type CheckoutRequest struct {
	TourID        string
	TourName      string
	Summary       string
	ImageURL      string
	Price         float64
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CompletedCheckout is the part of a paid session needed to record a booking.
type CompletedCheckout struct {
	SessionID     string
	TourID        string
	CustomerEmail string
	Amount        float64
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// ParseCompletedCheckout verifies the webhook signature. It returns nil
	// without error for event types other than a completed checkout.
	ParseCompletedCheckout(payload []byte, signature string) (*CompletedCheckout, error)
}

type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	return &StripeGateway{api: client.New(secretKey, nil), webhookSecret: webhookSecret}
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.TourName + " Tour"),
	}
	if req.Summary != "" {
		product.Description = stripe.String(req.Summary)
	}
	if req.ImageURL != "" {
		product.Images = stripe.StringSlice([]string{req.ImageURL})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		CustomerEmail:      stripe.String(req.CustomerEmail),
		ClientReferenceID:  stripe.String(req.TourID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount:  stripe.Int64(toCents(req.Price)),
				ProductData: product,
			},
		}},
	}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, apperror.Upstream("Could not create checkout session", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) ParseCompletedCheckout(payload []byte, signature string) (*CompletedCheckout, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, apperror.Wrap(apperror.ValidationFailed, "Webhook error: invalid signature", err)
	}
	if event.Type != "checkout.session.completed" {
		return nil, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, apperror.Wrap(apperror.ValidationFailed, "Webhook error: malformed session", err)
	}
	email := s.CustomerEmail
	if email == "" && s.CustomerDetails != nil {
		email = s.CustomerDetails.Email
	}
	return &CompletedCheckout{
		SessionID:     s.ID,
		TourID:        s.ClientReferenceID,
		CustomerEmail: email,
		Amount:        float64(s.AmountTotal) / 100,
	}, nil
}

// DisabledGateway is used when no payment provider is configured.
type DisabledGateway struct{}

var errPaymentsDisabled = apperror.Upstream("Payments are not configured on this server", nil)

func (DisabledGateway) CreateCheckoutSession(context.Context, CheckoutRequest) (*CheckoutSession, error) {
	return nil, errPaymentsDisabled
}

func (DisabledGateway) ParseCompletedCheckout([]byte, string) (*CompletedCheckout, error) {
	return nil, errPaymentsDisabled
}
