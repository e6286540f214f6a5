package database

import (
	"context"
	"time"

	"github.com/princinho/toursbackend/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type BookingStore struct {
	*Repository[models.Booking]
}

func NewBookingStore(db *mongo.Database) *BookingStore {
	repo := NewRepository(db.Collection(BookingsCollection), WithBeforeSave(prepareBooking))
	return &BookingStore{Repository: repo}
}

func prepareBooking(b *models.Booking, isNew bool) error {
	if isNew && b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	return models.Validate(b)
}

// TourIDsBookedBy returns the distinct tours a user has booked.
func (s *BookingStore) TourIDsBookedBy(ctx context.Context, userID bson.ObjectID) ([]bson.ObjectID, error) {
	bookings, err := s.Find(ctx, bson.M{"user": userID},
		options.Find().SetProjection(bson.D{{Key: "tour", Value: 1}}))
	if err != nil {
		return nil, err
	}
	seen := make(map[bson.ObjectID]bool, len(bookings))
	ids := make([]bson.ObjectID, 0, len(bookings))
	for _, b := range bookings {
		if !seen[b.Tour] {
			seen[b.Tour] = true
			ids = append(ids, b.Tour)
		}
	}
	return ids, nil
}
