package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/dto"
	"github.com/princinho/toursbackend/models"
	"github.com/princinho/toursbackend/payment"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

type tourFinder interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Tour, error)
	FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.Tour, error)
}

type bookedTours interface {
	TourIDsBookedBy(ctx context.Context, userID bson.ObjectID) ([]bson.ObjectID, error)
}

type emailFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type bookingCreator interface {
	Create(ctx context.Context, b *models.Booking) (bson.ObjectID, error)
}

// GET /api/v1/bookings/checkout-session/:tourId
func GetCheckoutSession(tours tourFinder, gateway payment.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, err := currentUser(c)
		if err != nil {
			fail(c, err)
			return
		}
		id, err := parseID(c.Param("tourId"))
		if err != nil {
			fail(c, err)
			return
		}
		tour, err := tours.FindByID(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}

		origin := baseURL(c)
		session, err := gateway.CreateCheckoutSession(c.Request.Context(), payment.CheckoutRequest{
			TourID:        tour.ID.Hex(),
			TourName:      tour.Name,
			Summary:       tour.Summary,
			ImageURL:      tour.ImageCover,
			Price:         tour.Price,
			CustomerEmail: me.Email,
			SuccessURL:    origin + "/my-tours?alert=booking",
			CancelURL:     origin + "/tour/" + tour.Slug,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "session": session})
	}
}

// POST /webhook-checkout records the booking for a completed checkout.
// Stripe retries deliveries, so a booking that already exists for the
// session counts as success.
func WebhookCheckout(gateway payment.Gateway, users emailFinder, bookings bookingCreator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := c.GetRawData()
		if err != nil {
			fail(c, apperror.Wrap(apperror.ValidationFailed, "Webhook error: unreadable body", err))
			return
		}
		checkout, err := gateway.ParseCompletedCheckout(payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			fail(c, err)
			return
		}
		if checkout == nil {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		ctx := c.Request.Context()
		tourID, err := parseID(checkout.TourID)
		if err != nil {
			fail(c, err)
			return
		}
		user, err := users.FindByEmail(ctx, checkout.CustomerEmail)
		if err != nil {
			fail(c, err)
			return
		}
		_, err = bookings.Create(ctx, &models.Booking{
			Tour:            tourID,
			User:            user.ID,
			Price:           checkout.Amount,
			Paid:            true,
			CheckoutSession: checkout.SessionID,
		})
		if err != nil && !apperror.IsKind(err, apperror.Conflict) {
			fail(c, err)
			return
		}
		if err == nil {
			log.Info("booking created from checkout",
				zap.String("session", checkout.SessionID),
				zap.String("tour", tourID.Hex()),
				zap.String("user", user.ID.Hex()))
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

// GET /api/v1/bookings/my-tours
func MyTours(bookings bookedTours, tours tourFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, err := currentUser(c)
		if err != nil {
			fail(c, err)
			return
		}
		ids, err := bookings.TourIDsBookedBy(c.Request.Context(), me.ID)
		if err != nil {
			fail(c, err)
			return
		}
		booked, err := tours.FindByIDs(c.Request.Context(), ids)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"results": len(booked),
			"data":    gin.H{"tours": booked},
		})
	}
}

func BookingResource(store Store[models.Booking]) Resource[models.Booking] {
	return Resource[models.Booking]{
		Store: store,
		New: func(*gin.Context) (*models.Booking, error) {
			return &models.Booking{Paid: true}, nil
		},
		Decode: func(c *gin.Context, b *models.Booking, _ bool) error {
			var body dto.BookingDTO
			if err := c.ShouldBindJSON(&body); err != nil {
				return err
			}
			return body.Apply(b)
		},
	}
}
