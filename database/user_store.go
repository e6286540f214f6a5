package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/princinho/toursbackend/models"
	"github.com/princinho/toursbackend/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var activeUsers = bson.M{"active": bson.M{"$ne": false}}

// PrepareUser is the save pipeline shared by every user store:
// normalize, fill defaults for new accounts, validate, then hash a staged
// password. Hashing runs only when SetPassword was called, so an already
// hashed secret is never hashed twice.
func PrepareUser(u *models.User, isNew bool, cost int, now time.Time) error {
	u.Normalize()
	u.Name = utils.SanitizeText(u.Name)
	if isNew {
		if u.Role == "" {
			u.Role = models.RoleUser
		}
		if u.Photo == "" {
			u.Photo = models.DefaultPhoto
		}
		u.Active = true
		u.CreatedAt = now
	}

	if err := u.Validate(); err != nil {
		return err
	}

	if pw, ok := u.PendingPassword(); ok {
		hash, err := utils.HashPassword(pw, cost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
		u.ClearPendingPassword()
		if !isNew {
			changed := now
			u.PasswordChangedAt = &changed
		}
	}

	u.UpdatedAt = now
	return nil
}

// UserStore reads exclude deactivated accounts unless the method says
// otherwise. Writes go through PrepareUser.
type UserStore struct {
	active *Repository[models.User]
	all    *Repository[models.User]
	now    func() time.Time
}

func NewUserStore(db *mongo.Database, cost int, now func() time.Time) *UserStore {
	if now == nil {
		now = time.Now
	}
	col := db.Collection(UsersCollection)
	prepare := WithBeforeSave(func(u *models.User, isNew bool) error {
		return PrepareUser(u, isNew, cost, now().UTC())
	})
	return &UserStore{
		active: NewRepository(col, WithScope[models.User](activeUsers), prepare),
		all:    NewRepository(col, prepare),
		now:    now,
	}
}

func (s *UserStore) Find(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOptions]) ([]models.User, error) {
	return s.active.Find(ctx, filter, opts...)
}

func (s *UserStore) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.active.Count(ctx, filter)
}

func (s *UserStore) FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	return s.active.FindByID(ctx, id)
}

// FindAnyByID also returns deactivated accounts.
func (s *UserStore) FindAnyByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	return s.all.FindByID(ctx, id)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.active.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (s *UserStore) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return s.active.FindOne(ctx, bson.M{
		"passwordResetToken":   tokenHash,
		"passwordResetExpires": bson.M{"$gt": now},
	})
}

func (s *UserStore) Create(ctx context.Context, u *models.User) (bson.ObjectID, error) {
	id, err := s.all.Create(ctx, u)
	if err != nil {
		return id, err
	}
	u.ID = id
	return id, nil
}

func (s *UserStore) Replace(ctx context.Context, id bson.ObjectID, u *models.User) error {
	return s.all.Replace(ctx, id, u)
}

// Save inserts new users and replaces existing ones.
func (s *UserStore) Save(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		_, err := s.Create(ctx, u)
		return err
	}
	return s.all.Replace(ctx, u.ID, u)
}

// DeleteByID deactivates the account. Users are never hard-deleted.
func (s *UserStore) DeleteByID(ctx context.Context, id bson.ObjectID) error {
	u, err := s.active.FindByID(ctx, id)
	if err != nil {
		return err
	}
	u.Active = false
	return s.Save(ctx, u)
}
