// Package notify delivers account emails. Callers treat every failure as
// an upstream failure; nothing is retried here.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/princinho/toursbackend/models"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var ErrDeliveryFailed = errors.New("notification delivery failed")

type Notifier interface {
	SendWelcome(ctx context.Context, u *models.User, url string) error
	SendPasswordReset(ctx context.Context, u *models.User, resetURL string) error
}

var (
	welcomeTmpl = template.Must(template.New("welcome").Parse(
		`<p>Hi {{.FirstName}},</p>
<p>Welcome to Tours, we're glad to have you on board.</p>
<p><a href="{{.URL}}">Upload your profile photo</a> and start exploring.</p>`))

	resetTmpl = template.Must(template.New("reset").Parse(
		`<p>Hi {{.FirstName}},</p>
<p>Forgot your password? Submit a PATCH request with your new password and confirmPassword to:</p>
<p><a href="{{.URL}}">{{.URL}}</a></p>
<p>This link is valid for 10 minutes. If you didn't forget your password, please ignore this email.</p>`))
)

type mailData struct {
	FirstName string
	URL       string
}

func firstName(u *models.User) string {
	if f := strings.Fields(u.Name); len(f) > 0 {
		return f[0]
	}
	return "there"
}

func render(t *template.Template, u *models.User, url string) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, mailData{FirstName: firstName(u), URL: url}); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// SMTPNotifier sends mail through an SMTP relay.
type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPNotifier(host string, port int, username, password, from string) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (n *SMTPNotifier) SendWelcome(ctx context.Context, u *models.User, url string) error {
	body, err := render(welcomeTmpl, u, url)
	if err != nil {
		return err
	}
	return n.send(ctx, u.Email, "Welcome to the Tours family!", body)
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, u *models.User, resetURL string) error {
	body, err := render(resetTmpl, u, resetURL)
	if err != nil {
		return err
	}
	return n.send(ctx, u.Email, "Your password reset token (valid for only 10 minutes)", body)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// LogNotifier writes emails to the log instead of sending them. It is the
// development fallback when no SMTP host is configured, and the only place
// a reset link is ever logged.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendWelcome(_ context.Context, u *models.User, url string) error {
	n.log.Info("welcome email", zap.String("to", u.Email), zap.String("url", url))
	return nil
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, u *models.User, resetURL string) error {
	n.log.Debug("password reset email", zap.String("to", u.Email), zap.String("url", resetURL))
	return nil
}
