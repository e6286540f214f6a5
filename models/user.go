package models

import (
	"strings"
	"time"

	"github.com/princinho/toursbackend/apperror"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

const (
	MinPasswordLength = 8
	MaxLoginAttempts  = 5
	LockDuration      = 3 * time.Hour
	DefaultPhoto      = "default.jpg"
)

type User struct {
	ID    bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name  string        `bson:"name" json:"name" validate:"required,max=80"`
	Email string        `bson:"email" json:"email" validate:"required,email"`
	Photo string        `bson:"photo" json:"photo"`
	Role  Role          `bson:"role" json:"role" validate:"required,oneof=user guide lead-guide admin"`

	PasswordHash         string     `bson:"password" json:"-"` // never expose
	PasswordChangedAt    *time.Time `bson:"passwordChangedAt,omitempty" json:"-"`
	PasswordResetToken   string     `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires *time.Time `bson:"passwordResetExpires,omitempty" json:"-"`

	Active        bool       `bson:"active" json:"-"`
	LoginAttempts int        `bson:"loginAttempts" json:"-"`
	LockUntil     *time.Time `bson:"lockUntil,omitempty" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	// plaintext waiting to be hashed by the next save; never persisted
	pendingPassword string
}

// Normalize trims the display name and lowercases the email.
func (u *User) Normalize() {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
}

// SetPassword stages a new plaintext secret. The store hashes it on save.
func (u *User) SetPassword(plain string) {
	u.pendingPassword = plain
}

func (u *User) PendingPassword() (string, bool) {
	return u.pendingPassword, u.pendingPassword != ""
}

func (u *User) ClearPendingPassword() {
	u.pendingPassword = ""
}

// Validate checks field constraints, including a staged password.
func (u *User) Validate() error {
	if err := Validate(u); err != nil {
		return err
	}
	if pw, ok := u.PendingPassword(); ok {
		if len(pw) < MinPasswordLength {
			return apperror.Validation("Password must have at least 8 characters")
		}
	} else if u.PasswordHash == "" {
		return apperror.Validation("Please provide a password")
	}
	if u.PasswordResetToken != "" && u.PasswordResetExpires == nil {
		return apperror.Validation("Password reset token has no expiry")
	}
	return nil
}

// PasswordChangedAfter reports whether the password changed after a token
// issued at iat. Tokens carry whole seconds, so the comparison does too.
func (u *User) PasswordChangedAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > iat.Unix()
}

func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && now.Before(*u.LockUntil)
}

// ReleaseExpiredLock clears an elapsed lockout and reports whether the
// record changed.
func (u *User) ReleaseExpiredLock(now time.Time) bool {
	if u.LockUntil == nil || now.Before(*u.LockUntil) {
		return false
	}
	u.LockUntil = nil
	u.LoginAttempts = 0
	return true
}

// RegisterFailedLogin bumps the attempt counter and starts the lockout
// window once it reaches MaxLoginAttempts. It reports whether the account
// just became locked.
func (u *User) RegisterFailedLogin(now time.Time) bool {
	u.LoginAttempts++
	if u.LoginAttempts >= MaxLoginAttempts && !u.IsLocked(now) {
		until := now.Add(LockDuration)
		u.LockUntil = &until
		return true
	}
	return false
}

func (u *User) ResetLoginAttempts() {
	u.LoginAttempts = 0
	u.LockUntil = nil
}

func (u *User) ClearPasswordReset() {
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
}

func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

func (u *User) SetID(id bson.ObjectID) { u.ID = id }
