package database

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"
)

// MemoryUserStore is an in-process user store with the same save pipeline
// and read rules as UserStore. It backs tests and local experiments.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[bson.ObjectID]models.User
	cost  int
	now   func() time.Time
}

func NewMemoryUserStore(now func() time.Time) *MemoryUserStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryUserStore{
		users: make(map[bson.ObjectID]models.User),
		cost:  bcrypt.MinCost,
		now:   now,
	}
}

func (s *MemoryUserStore) FindByID(_ context.Context, id bson.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || !u.Active {
		return nil, ErrNoDocument
	}
	return &u, nil
}

func (s *MemoryUserStore) FindAnyByID(_ context.Context, id bson.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNoDocument
	}
	return &u, nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.findOne(func(u models.User) bool { return u.Email == email })
}

func (s *MemoryUserStore) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return s.findOne(func(u models.User) bool {
		return tokenHash != "" && u.PasswordResetToken == tokenHash &&
			u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now)
	})
}

func (s *MemoryUserStore) findOne(match func(models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Active && match(u) {
			return &u, nil
		}
	}
	return nil, ErrNoDocument
}

func (s *MemoryUserStore) Save(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	isNew := u.ID.IsZero()
	if !isNew {
		if _, ok := s.users[u.ID]; !ok {
			return ErrNoDocument
		}
	}
	if err := PrepareUser(u, isNew, s.cost, s.now().UTC()); err != nil {
		return err
	}
	for id, other := range s.users {
		if id != u.ID && other.Email == u.Email {
			return apperror.Duplicate("Duplicate field value: email. Please use another value!")
		}
	}
	if isNew {
		u.ID = bson.NewObjectID()
	}
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryUserStore) DeleteByID(ctx context.Context, id bson.ObjectID) error {
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	u.Active = false
	return s.Save(ctx, u)
}

func (s *MemoryUserStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
