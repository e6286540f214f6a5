package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/database"
	"github.com/princinho/toursbackend/models"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"pgregory.net/rapid"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	kind, to, url string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) record(kind string, u *models.User, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{kind: kind, to: u.Email, url: url})
	return nil
}

func (n *fakeNotifier) SendWelcome(_ context.Context, u *models.User, url string) error {
	return n.record("welcome", u, url)
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, u *models.User, url string) error {
	return n.record("reset", u, url)
}

func (n *fakeNotifier) fail(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *fakeNotifier) last() sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type memRevocations struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (m *memRevocations) Revoke(_ context.Context, token string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[token] = true
	return nil
}

func (m *memRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[token], nil
}

type fixture struct {
	svc      *Service
	users    *database.MemoryUserStore
	notifier *fakeNotifier
	clock    *clock
}

func newFixture(t testing.TB, opts ...Option) *fixture {
	c := &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	users := database.NewMemoryUserStore(c.Now)
	notifier := &fakeNotifier{}
	tokens := NewTokenService("test-secret-test-secret", time.Hour, c.Now)
	svc, err := NewService(users, tokens, notifier, bcrypt.MinCost, zap.NewNop(), append([]Option{WithClock(c.Now)}, opts...)...)
	require.NoError(t, err)
	return &fixture{svc: svc, users: users, notifier: notifier, clock: c}
}

func (f *fixture) signup(t testing.TB, email, password string) *Session {
	s, err := f.svc.Signup(context.Background(), SignupInput{
		Name: "Test User", Email: email, Password: password, ConfirmPassword: password,
	}, "https://tours.example/me")
	require.NoError(t, err)
	return s
}

func TestSignupStoresHashAndIssuesResolvableToken(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		email := rapid.StringMatching(`[a-z]{3,10}@[a-z]{3,8}\.com`).Draw(rt, "email")
		password := rapid.StringMatching(`[A-Za-z0-9!?]{8,24}`).Draw(rt, "password")

		session := f.signup(t, email, password)
		require.NotEmpty(rt, session.Token)

		stored, err := f.users.FindByEmail(context.Background(), email)
		require.NoError(rt, err)
		require.NotEqual(rt, password, stored.PasswordHash)
		require.True(rt, stored.Active)

		u, err := f.svc.Authenticate(context.Background(), session.Token)
		require.NoError(rt, err)
		require.Equal(rt, stored.ID, u.ID)
	})
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, SignupInput{Name: "A", Email: "a@example.com", Password: "pass1234", ConfirmPassword: "pass12345"}, "")
	require.True(t, apperror.IsKind(err, apperror.ValidationFailed))

	_, err = f.svc.Signup(ctx, SignupInput{Name: "A", Email: "a@example.com", Password: "short", ConfirmPassword: "short"}, "")
	require.True(t, apperror.IsKind(err, apperror.ValidationFailed))

	f.signup(t, "a@example.com", "pass1234")
	_, err = f.svc.Signup(ctx, SignupInput{Name: "B", Email: "A@example.com", Password: "pass1234", ConfirmPassword: "pass1234"}, "")
	require.True(t, apperror.IsKind(err, apperror.Conflict))
	require.Equal(t, 1, f.users.Len())
}

func TestSignupSurvivesWelcomeFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail(errors.New("smtp down"))

	session := f.signup(t, "lea@example.com", "pass1234")
	f.svc.Wait()
	require.NotEmpty(t, session.Token)
	require.Equal(t, 1, f.users.Len())
}

func TestSignupSendsWelcome(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "lea@example.com", "pass1234")
	f.svc.Wait()
	require.Equal(t, sentMail{kind: "welcome", to: "lea@example.com", url: "https://tours.example/me"}, f.notifier.last())
}

func TestLoginErrorsAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "lea@example.com", "pass1234")
	ctx := context.Background()

	_, unknown := f.svc.Login(ctx, "nobody@example.com", "pass1234")
	_, wrong := f.svc.Login(ctx, "lea@example.com", "wrong-pass")
	require.Error(t, unknown)
	require.Equal(t, unknown, wrong)
	require.Equal(t, unknown.Error(), wrong.Error())

	_, err := f.svc.Login(ctx, "", "x")
	require.True(t, apperror.IsKind(err, apperror.ValidationFailed))
}

func TestLoginLocksAfterFiveFailures(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "lea@example.com", "pass1234")
	ctx := context.Background()

	for range models.MaxLoginAttempts {
		_, err := f.svc.Login(ctx, "lea@example.com", "wrong-pass")
		require.True(t, apperror.IsKind(err, apperror.Unauthenticated))
	}

	_, err := f.svc.Login(ctx, "lea@example.com", "pass1234")
	require.True(t, apperror.IsKind(err, apperror.Locked), "got %v", err)

	f.clock.Advance(models.LockDuration - time.Minute)
	_, err = f.svc.Login(ctx, "lea@example.com", "pass1234")
	require.True(t, apperror.IsKind(err, apperror.Locked))

	f.clock.Advance(2 * time.Minute)
	session, err := f.svc.Login(ctx, "lea@example.com", "pass1234")
	require.NoError(t, err)

	stored, err := f.users.FindByID(ctx, session.User.ID)
	require.NoError(t, err)
	require.Zero(t, stored.LoginAttempts)
	require.Nil(t, stored.LockUntil)
}

func TestSuccessfulLoginResetsCounter(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "lea@example.com", "pass1234")
	ctx := context.Background()

	for range models.MaxLoginAttempts - 1 {
		_, _ = f.svc.Login(ctx, "lea@example.com", "wrong-pass")
	}
	_, err := f.svc.Login(ctx, "lea@example.com", "pass1234")
	require.NoError(t, err)

	// the counter starts over, so four more failures do not lock
	for range models.MaxLoginAttempts - 1 {
		_, _ = f.svc.Login(ctx, "lea@example.com", "wrong-pass")
	}
	_, err = f.svc.Login(ctx, "lea@example.com", "pass1234")
	require.NoError(t, err)
}

func TestAuthenticateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Authenticate(ctx, "")
	require.True(t, apperror.IsKind(err, apperror.Unauthenticated))

	_, err = f.svc.Authenticate(ctx, "garbage")
	require.True(t, apperror.IsKind(err, apperror.Unauthenticated))

	session := f.signup(t, "lea@example.com", "pass1234")
	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Authenticate(ctx, session.Token)
	require.Equal(t, errTokenExpired, err)

	session = f.signup(t, "max@example.com", "pass1234")
	require.NoError(t, f.users.DeleteByID(ctx, session.User.ID))
	_, err = f.svc.Authenticate(ctx, session.Token)
	require.Equal(t, errUserGone, err)
}

func TestTokenIssuedBeforePasswordChangeIsStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.signup(t, "lea@example.com", "pass1234")

	f.clock.Advance(time.Minute)
	fresh, err := f.svc.UpdatePassword(ctx, old.User.ID, "pass1234", "newpass99", "newpass99")
	require.NoError(t, err)

	// signature and expiry alone still accept the old token
	_, err = f.svc.tokens.Verify(old.Token)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, old.Token)
	require.Equal(t, errPasswordChanged, err)

	u, err := f.svc.Authenticate(ctx, fresh.Token)
	require.NoError(t, err)
	require.Equal(t, old.User.ID, u.ID)
}

func TestUpdatePasswordChecksCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.signup(t, "lea@example.com", "pass1234")

	_, err := f.svc.UpdatePassword(ctx, s.User.ID, "nope-nope", "newpass99", "newpass99")
	require.Equal(t, errWrongCurrentPassword, err)

	_, err = f.svc.UpdatePassword(ctx, s.User.ID, "pass1234", "newpass99", "different")
	require.Equal(t, errPasswordsDiffer, err)

	_, err = f.svc.UpdatePassword(ctx, bson.NewObjectID(), "pass1234", "newpass99", "newpass99")
	require.True(t, apperror.IsKind(err, apperror.NotFound))
}

func TestAuthenticateRejectsLockedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.signup(t, "lea@example.com", "pass1234")

	for range models.MaxLoginAttempts {
		_, _ = f.svc.Login(ctx, "lea@example.com", "wrong-pass")
	}
	_, err := f.svc.Authenticate(ctx, s.Token)
	require.True(t, apperror.IsKind(err, apperror.Locked))
}

func resetURL(raw string) string { return "https://tours.example/api/v1/users/resetPassword/" + raw }

func rawTokenFrom(t *testing.T, url string) string {
	const prefix = "https://tours.example/api/v1/users/resetPassword/"
	require.Greater(t, len(url), len(prefix))
	return url[len(prefix):]
}

func TestPasswordResetWorksExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "lea@example.com", "pass1234")

	require.NoError(t, f.svc.ForgotPassword(ctx, "lea@example.com", resetURL))
	mail := f.notifier.last()
	require.Equal(t, "reset", mail.kind)
	raw := rawTokenFrom(t, mail.url)

	stored, err := f.users.FindByEmail(ctx, "lea@example.com")
	require.NoError(t, err)
	require.Equal(t, HashResetToken(raw), stored.PasswordResetToken, "only the hash is stored")

	f.clock.Advance(5 * time.Minute)
	session, err := f.svc.ResetPassword(ctx, raw, "brandnew1", "brandnew1")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	_, err = f.svc.ResetPassword(ctx, raw, "brandnew2", "brandnew2")
	require.Equal(t, ErrResetTokenInvalid, err)

	_, err = f.svc.Login(ctx, "lea@example.com", "brandnew1")
	require.NoError(t, err)
}

func TestPasswordResetExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "lea@example.com", "pass1234")

	require.NoError(t, f.svc.ForgotPassword(ctx, "lea@example.com", resetURL))
	raw := rawTokenFrom(t, f.notifier.last().url)

	f.clock.Advance(ResetTokenTTL + time.Second)
	_, err := f.svc.ResetPassword(ctx, raw, "brandnew1", "brandnew1")
	require.Equal(t, ErrResetTokenInvalid, err)
}

func TestForgotPasswordRollsBackWhenMailFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "lea@example.com", "pass1234")
	f.svc.Wait()
	f.notifier.fail(errors.New("smtp down"))

	err := f.svc.ForgotPassword(ctx, "lea@example.com", resetURL)
	require.True(t, apperror.IsKind(err, apperror.UpstreamFailure))

	stored, err := f.users.FindByEmail(ctx, "lea@example.com")
	require.NoError(t, err)
	require.Empty(t, stored.PasswordResetToken)
	require.Nil(t, stored.PasswordResetExpires)

	err = f.svc.ForgotPassword(ctx, "nobody@example.com", resetURL)
	require.True(t, apperror.IsKind(err, apperror.NotFound))
}

func TestLogoutRevokesWhenListConfigured(t *testing.T) {
	f := newFixture(t, WithRevocationList(&memRevocations{revoked: map[string]bool{}}))
	ctx := context.Background()
	s := f.signup(t, "lea@example.com", "pass1234")

	_, err := f.svc.Authenticate(ctx, s.Token)
	require.NoError(t, err)

	f.svc.Logout(ctx, s.Token)
	_, err = f.svc.Authenticate(ctx, s.Token)
	require.Equal(t, errTokenRevoked, err)
}

func TestLogoutWithoutListKeepsTokenValid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.signup(t, "lea@example.com", "pass1234")

	f.svc.Logout(ctx, s.Token)
	_, err := f.svc.Authenticate(ctx, s.Token)
	require.NoError(t, err)
}

func TestSessionExpiryMatchesToken(t *testing.T) {
	serviceNow := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tokenNow := serviceNow.Add(-7*time.Minute + 400*time.Millisecond)
	users := database.NewMemoryUserStore(func() time.Time { return serviceNow })
	tokens := NewTokenService("test-secret-test-secret", time.Hour, func() time.Time { return tokenNow })
	svc, err := NewService(users, tokens, &fakeNotifier{}, bcrypt.MinCost, zap.NewNop(),
		WithClock(func() time.Time { return serviceNow }))
	require.NoError(t, err)

	s, err := svc.Signup(context.Background(), SignupInput{
		Name: "Test User", Email: "lea@example.com", Password: "pass1234", ConfirmPassword: "pass1234",
	}, "https://tours.example/me")
	require.NoError(t, err)

	claims, err := tokens.Verify(s.Token)
	require.NoError(t, err)
	require.True(t, s.ExpiresAt.Equal(claims.ExpiresAt))
	require.True(t, s.ExpiresAt.Equal(tokenNow.Add(time.Hour).Truncate(time.Second)))
	svc.Wait()
}
