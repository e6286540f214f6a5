package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/apifeatures"
	"github.com/princinho/toursbackend/models"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// testDB connects to TEST_MONGODB_URI and hands back a throwaway database.
func testDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, uri, zap.NewNop())
	require.NoError(t, err)

	db := client.Database(fmt.Sprintf("tours_test_%d", time.Now().UnixNano()))
	require.NoError(t, EnsureIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func newTour(name string, price float64) *models.Tour {
	return &models.Tour{
		Name:         name,
		Duration:     5,
		MaxGroupSize: 10,
		Difficulty:   models.DifficultyMedium,
		Price:        price,
		Description:  "A long walk",
		ImageCover:   "cover.jpg",
	}
}

func TestMongoUserStore(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := NewUserStore(db, bcrypt.MinCost, nil)

	u := &models.User{Name: "Lea", Email: "LEA@example.com"}
	u.SetPassword("pass1234")
	require.NoError(t, s.Save(ctx, u))
	require.False(t, u.ID.IsZero())

	got, err := s.FindByEmail(ctx, "lea@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, got.PasswordHash)

	dup := &models.User{Name: "Dup", Email: "lea@example.com"}
	dup.SetPassword("pass1234")
	err = s.Save(ctx, dup)
	require.True(t, apperror.IsKind(err, apperror.Conflict))
	require.Contains(t, err.(*apperror.Error).Message, "email")

	require.NoError(t, s.DeleteByID(ctx, u.ID))
	_, err = s.FindByID(ctx, u.ID)
	require.True(t, apperror.IsKind(err, apperror.NotFound))
	deactivated, err := s.FindAnyByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, deactivated.Active)
}

func TestMongoToursAndReviews(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	tours := NewTourStore(db)
	reviews := NewReviewStore(db, tours, zap.NewNop())

	cheap := newTour("The Sea Explorer", 297)
	cheapID, err := tours.Create(ctx, cheap)
	require.NoError(t, err)
	_, err = tours.Create(ctx, newTour("The Forest Hiker", 997))
	require.NoError(t, err)
	secret := newTour("The Secret Summit", 5000)
	secret.SecretTour = true
	secretID, err := tours.Create(ctx, secret)
	require.NoError(t, err)

	_, err = tours.FindByID(ctx, secretID)
	require.True(t, apperror.IsKind(err, apperror.NotFound))

	stored, err := tours.FindByID(ctx, cheapID)
	require.NoError(t, err)
	require.Equal(t, "the-sea-explorer", stored.Slug)

	q, err := apifeatures.Build(bson.M{}, map[string][]string{"price[gte]": {"100"}, "sort": {"-price"}})
	require.NoError(t, err)
	list, err := tours.Find(ctx, q.Filter, q.FindOptions())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "The Forest Hiker", list[0].Name)

	userA, userB := bson.NewObjectID(), bson.NewObjectID()
	_, err = reviews.Create(ctx, &models.Review{Review: "Great trip", Rating: 5, Tour: cheapID, User: userA})
	require.NoError(t, err)
	_, err = reviews.Create(ctx, &models.Review{Review: "Okay trip", Rating: 4, Tour: cheapID, User: userB})
	require.NoError(t, err)
	_, err = reviews.Create(ctx, &models.Review{Review: "Again!", Rating: 1, Tour: cheapID, User: userA})
	require.True(t, apperror.IsKind(err, apperror.Conflict))

	stored, err = tours.FindByID(ctx, cheapID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.RatingsQuantity)
	require.Equal(t, 4.5, stored.RatingsAverage)

	harsh := newTour("The Snow Adventurer", 497)
	harshID, err := tours.Create(ctx, harsh)
	require.NoError(t, err)
	_, err = reviews.Create(ctx, &models.Review{Review: "Awful", Rating: 0, Tour: harshID, User: userA})
	require.NoError(t, err)
	stored, err = tours.FindByID(ctx, harshID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.RatingsQuantity)
	require.Equal(t, 1.0, stored.RatingsAverage)
	stored.Price = 450
	require.NoError(t, tours.Replace(ctx, harshID, stored))

	stats, err := tours.Stats(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, stats)
	require.Equal(t, "MEDIUM", stats[0].Difficulty)
}
