package database

import (
	"context"
	"testing"
	"time"

	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/models"
	"github.com/princinho/toursbackend/utils"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestPrepareUserHashesOnlyStagedPassword(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	u := &models.User{Name: " Lea ", Email: " LEA@Example.com "}
	u.SetPassword("pass1234")

	require.NoError(t, PrepareUser(u, true, bcrypt.MinCost, now))
	require.Equal(t, "lea@example.com", u.Email)
	require.Equal(t, models.RoleUser, u.Role)
	require.Equal(t, models.DefaultPhoto, u.Photo)
	require.True(t, u.Active)
	require.NotEqual(t, "pass1234", u.PasswordHash)
	require.NoError(t, utils.CheckPassword(u.PasswordHash, "pass1234"))
	require.Nil(t, u.PasswordChangedAt, "new accounts have no password change")

	hash := u.PasswordHash
	require.NoError(t, PrepareUser(u, false, bcrypt.MinCost, now.Add(time.Minute)))
	require.Equal(t, hash, u.PasswordHash, "unchanged secret is not rehashed")
	require.Nil(t, u.PasswordChangedAt)

	u.SetPassword("another-pass")
	later := now.Add(time.Hour)
	require.NoError(t, PrepareUser(u, false, bcrypt.MinCost, later))
	require.NotEqual(t, hash, u.PasswordHash)
	require.Equal(t, later, *u.PasswordChangedAt)
	_, pending := u.PendingPassword()
	require.False(t, pending)
}

func TestPrepareUserValidatesBeforeHashing(t *testing.T) {
	u := &models.User{Name: "Lea", Email: "nope"}
	u.SetPassword("pass1234")
	err := PrepareUser(u, true, bcrypt.MinCost, time.Now())
	require.True(t, apperror.IsKind(err, apperror.ValidationFailed))
	require.Empty(t, u.PasswordHash)
}

func TestPrepareUserStripsMarkupFromName(t *testing.T) {
	u := &models.User{Name: "<b>Lea</b><script>alert(1)</script>", Email: "lea@example.com"}
	u.SetPassword("pass1234")
	require.NoError(t, PrepareUser(u, true, bcrypt.MinCost, time.Now()))
	require.Equal(t, "Lea", u.Name)
}

func TestMemoryUserStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryUserStore(fixedClock(now))

	u := &models.User{Name: "Lea", Email: "lea@example.com"}
	u.SetPassword("pass1234")
	require.NoError(t, s.Save(ctx, u))
	require.False(t, u.ID.IsZero())

	got, err := s.FindByEmail(ctx, "  LEA@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	dup := &models.User{Name: "Other", Email: "lea@example.com"}
	dup.SetPassword("pass1234")
	require.True(t, apperror.IsKind(s.Save(ctx, dup), apperror.Conflict))

	hash := fakeHash("raw-token")
	exp := now.Add(10 * time.Minute)
	got.PasswordResetToken, got.PasswordResetExpires = hash, &exp
	require.NoError(t, s.Save(ctx, got))

	found, err := s.FindByResetToken(ctx, hash, now)
	require.NoError(t, err)
	require.Equal(t, u.ID, found.ID)
	_, err = s.FindByResetToken(ctx, hash, exp)
	require.ErrorIs(t, err, ErrNoDocument)

	require.NoError(t, s.DeleteByID(ctx, u.ID))
	_, err = s.FindByID(ctx, u.ID)
	require.True(t, apperror.IsKind(err, apperror.NotFound))
	_, err = s.FindByEmail(ctx, "lea@example.com")
	require.True(t, apperror.IsKind(err, apperror.NotFound))

	inactive, err := s.FindAnyByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, inactive.Active)

	// email stays reserved by the deactivated account
	again := &models.User{Name: "Lea Again", Email: "lea@example.com"}
	again.SetPassword("pass1234")
	require.True(t, apperror.IsKind(s.Save(ctx, again), apperror.Conflict))
}

func fakeHash(raw string) string {
	return "sha256-" + raw
}

func TestPrepareTourAfterZeroRatedReview(t *testing.T) {
	tour := &models.Tour{
		Name:            "The Sea Explorer",
		Duration:        5,
		MaxGroupSize:    10,
		Difficulty:      models.DifficultyMedium,
		Price:           297,
		Description:     "A long walk",
		ImageCover:      "cover.jpg",
		RatingsQuantity: 1,
	}
	require.NoError(t, prepareTour(tour, false))
	require.Equal(t, 1.0, tour.RatingsAverage)
	require.Equal(t, "the-sea-explorer", tour.Slug)
}
