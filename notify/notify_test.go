package notify

import (
	"context"
	"testing"

	"github.com/princinho/toursbackend/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRenderEscapesAndGreetsByFirstName(t *testing.T) {
	u := &models.User{Name: "Jonas <b>Schmedtmann</b>", Email: "jonas@example.com"}
	body, err := render(resetTmpl, u, "https://tours.example/api/v1/users/resetPassword/abc?x=<y>")
	require.NoError(t, err)
	require.Contains(t, body, "Hi Jonas,")
	require.Contains(t, body, "resetPassword/abc")
	require.NotContains(t, body, "<y>")

	body, err = render(welcomeTmpl, &models.User{Name: "  "}, "https://tours.example/me")
	require.NoError(t, err)
	require.Contains(t, body, "Hi there,")
}

func TestSMTPNotifierReportsDeliveryFailure(t *testing.T) {
	// nothing listens on port 1
	n := NewSMTPNotifier("127.0.0.1", 1, "", "", "Tours <hello@tours.local>")
	err := n.SendWelcome(context.Background(), &models.User{Name: "Lea", Email: "lea@example.com"}, "https://x")
	require.ErrorIs(t, err, ErrDeliveryFailed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = n.SendPasswordReset(ctx, &models.User{Name: "Lea", Email: "lea@example.com"}, "https://x")
	require.ErrorIs(t, err, ErrDeliveryFailed)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	n := NewLogNotifier(zap.New(core))
	u := &models.User{Name: "Lea", Email: "lea@example.com"}

	require.NoError(t, n.SendWelcome(context.Background(), u, "https://tours.example/me"))
	require.NoError(t, n.SendPasswordReset(context.Background(), u, "https://tours.example/reset/abc"))
	require.Equal(t, 2, logs.Len())
	require.Equal(t, "lea@example.com", logs.All()[1].ContextMap()["to"])
}
