package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/metrics"
	"github.com/princinho/toursbackend/models"
	"github.com/princinho/toursbackend/notify"
	"github.com/princinho/toursbackend/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// UserStore is the credential store the auth flows need. Lookups report a
// missing or deactivated account as an apperror.NotFound.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	Save(ctx context.Context, u *models.User) error
}

var (
	errIncorrectCredentials = apperror.Unauthorized("Incorrect email or password")
	errMissingCredentials   = apperror.Validation("Please provide email and password")
	errPasswordsDiffer      = apperror.Validation("Passwords are not the same")
	errNotLoggedIn          = apperror.Unauthorized("You are not logged in! Please log in to get access.")
	errTokenExpired         = apperror.Unauthorized("Your token has expired. Please log in again.")
	errTokenInvalid         = apperror.Unauthorized("Invalid token. Please log in again.")
	errTokenRevoked         = apperror.Unauthorized("This session has been logged out. Please log in again.")
	errUserGone             = apperror.Unauthorized("The user belonging to this token no longer exists.")
	errPasswordChanged      = apperror.Unauthorized("User recently changed password. Please log in again.")
	errWrongCurrentPassword = apperror.Unauthorized("Your current password is wrong.")

	// ErrResetTokenInvalid covers unknown, expired and already used reset tokens.
	ErrResetTokenInvalid = apperror.Validation("Token is invalid or has expired")
)

// Session is a freshly issued token and the account it belongs to.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

type SignupInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

type Service struct {
	users       UserStore
	tokens      *TokenService
	notifier    notify.Notifier
	revocations RevocationList
	log         *zap.Logger
	now         func() time.Time

	// compared against when the email is unknown so both failure paths cost a bcrypt check
	dummyHash string

	inflight sync.WaitGroup
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRevocationList(l RevocationList) Option {
	return func(s *Service) { s.revocations = l }
}

func NewService(users UserStore, tokens *TokenService, notifier notify.Notifier, bcryptCost int, log *zap.Logger, opts ...Option) (*Service, error) {
	dummy, err := utils.HashPassword("not-a-real-password", bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	s := &Service{
		users:       users,
		tokens:      tokens,
		notifier:    notifier,
		revocations: NoRevocation{},
		log:         log,
		now:         time.Now,
		dummyHash:   dummy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Wait blocks until background notifications have finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) issue(u *models.User) (*Session, error) {
	token, expires, err := s.tokens.Issue(u.ID.Hex())
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: u}, nil
}

// Signup creates an active account and logs it in. The welcome email is
// sent in the background and its failure never fails the signup.
func (s *Service) Signup(ctx context.Context, in SignupInput, welcomeURL string) (*Session, error) {
	if in.Password != in.ConfirmPassword {
		return nil, errPasswordsDiffer
	}
	if len(in.Password) < models.MinPasswordLength {
		return nil, apperror.Validation("Password must have at least 8 characters")
	}

	u := &models.User{Name: in.Name, Email: in.Email, Role: models.RoleUser}
	u.SetPassword(in.Password)
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}

	welcome := *u
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := s.notifier.SendWelcome(ctx, &welcome, welcomeURL); err != nil {
			metrics.NotificationFailuresTotal.WithLabelValues("welcome").Inc()
			s.log.Warn("welcome email not delivered", zap.String("user", welcome.ID.Hex()), zap.Error(err))
		}
	}()

	return s.issue(u)
}

// Login returns the same error for an unknown email and a wrong password.
// Each wrong password is persisted against the account; the fifth locks it.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, errMissingCredentials
	}

	u, err := s.users.FindByEmail(ctx, email)
	if apperror.IsKind(err, apperror.NotFound) {
		_ = utils.CheckPassword(s.dummyHash, password)
		metrics.LoginFailuresTotal.Inc()
		return nil, errIncorrectCredentials
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	dirty := u.ReleaseExpiredLock(now)
	if u.IsLocked(now) {
		return nil, lockedError(u)
	}

	if err := utils.CheckPassword(u.PasswordHash, password); err != nil {
		metrics.LoginFailuresTotal.Inc()
		if u.RegisterFailedLogin(now) {
			metrics.AccountLockoutsTotal.Inc()
			s.log.Warn("account locked", zap.String("user", u.ID.Hex()))
		}
		if err := s.users.Save(ctx, u); err != nil {
			return nil, err
		}
		return nil, errIncorrectCredentials
	}

	if u.LoginAttempts > 0 || dirty {
		u.ResetLoginAttempts()
		if err := s.users.Save(ctx, u); err != nil {
			return nil, err
		}
	}
	return s.issue(u)
}

func lockedError(u *models.User) error {
	return apperror.AccountLocked(fmt.Sprintf(
		"Account locked due to too many failed login attempts. Try again after %s",
		u.LockUntil.UTC().Format(time.RFC3339)))
}

// Logout revokes token when a revocation list is configured. Revocation
// failures are logged; the caller clears the cookie either way.
func (s *Service) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return
	}
	if err := s.revocations.Revoke(ctx, token, claims.ExpiresAt); err != nil {
		s.log.Error("revoke token on logout", zap.Error(err))
	}
}

// Authenticate resolves the account behind token. Besides signature and
// expiry it rejects revoked tokens, tokens of deleted or locked accounts,
// and tokens issued before the last password change.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, errNotLoggedIn
	}

	claims, err := s.tokens.Verify(token)
	switch {
	case errors.Is(err, ErrTokenExpired):
		return nil, errTokenExpired
	case err != nil:
		return nil, errTokenInvalid
	}

	revoked, err := s.revocations.IsRevoked(ctx, token)
	if err != nil {
		return nil, apperror.Upstream("Could not verify session", err)
	}
	if revoked {
		return nil, errTokenRevoked
	}

	id, err := bson.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, errTokenInvalid
	}
	u, err := s.users.FindByID(ctx, id)
	if apperror.IsKind(err, apperror.NotFound) {
		return nil, errUserGone
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if u.ReleaseExpiredLock(now) {
		if err := s.users.Save(ctx, u); err != nil {
			return nil, err
		}
	}
	if u.IsLocked(now) {
		return nil, lockedError(u)
	}

	if u.PasswordChangedAfter(claims.IssuedAt) {
		return nil, errPasswordChanged
	}
	return u, nil
}

// ForgotPassword stores the hash of a fresh reset token and mails the raw
// token. If the mail cannot be delivered the stored hash is cleared again.
func (s *Service) ForgotPassword(ctx context.Context, email string, resetURL func(rawToken string) string) error {
	if strings.TrimSpace(email) == "" {
		return apperror.Validation("Please provide an email address")
	}
	u, err := s.users.FindByEmail(ctx, email)
	if apperror.IsKind(err, apperror.NotFound) {
		return apperror.Missing("There is no user with that email address.")
	}
	if err != nil {
		return err
	}

	raw, hash, err := NewResetToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(ResetTokenTTL)
	u.PasswordResetToken = hash
	u.PasswordResetExpires = &expires
	if err := s.users.Save(ctx, u); err != nil {
		return err
	}

	if err := s.notifier.SendPasswordReset(ctx, u, resetURL(raw)); err != nil {
		metrics.NotificationFailuresTotal.WithLabelValues("password_reset").Inc()
		u.ClearPasswordReset()
		if saveErr := s.users.Save(ctx, u); saveErr != nil {
			s.log.Error("clear reset token after failed email", zap.String("user", u.ID.Hex()), zap.Error(saveErr))
		}
		return apperror.Upstream("There was an error sending the email. Try again later!", err)
	}
	return nil
}

// ResetPassword consumes a reset token. A token works once: the stored
// hash is cleared in the same save that sets the new password.
func (s *Service) ResetPassword(ctx context.Context, rawToken, password, confirmPassword string) (*Session, error) {
	if rawToken == "" {
		return nil, ErrResetTokenInvalid
	}
	u, err := s.users.FindByResetToken(ctx, HashResetToken(rawToken), s.now())
	if apperror.IsKind(err, apperror.NotFound) {
		return nil, ErrResetTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	if password != confirmPassword {
		return nil, errPasswordsDiffer
	}

	u.SetPassword(password)
	u.ClearPasswordReset()
	u.ResetLoginAttempts()
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return s.issue(u)
}

// UpdatePassword changes the password of an authenticated account after
// re-checking the current one.
func (s *Service) UpdatePassword(ctx context.Context, userID bson.ObjectID, current, password, confirmPassword string) (*Session, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := utils.CheckPassword(u.PasswordHash, current); err != nil {
		return nil, errWrongCurrentPassword
	}
	if password != confirmPassword {
		return nil, errPasswordsDiffer
	}

	u.SetPassword(password)
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return s.issue(u)
}
