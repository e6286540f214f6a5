package database

import (
	"context"
	"fmt"
	"time"

	"github.com/princinho/toursbackend/models"
	"github.com/princinho/toursbackend/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

var publicTours = bson.M{"secretTour": bson.M{"$ne": true}}

// TourStore hides secret tours from every read and keeps slug and rating
// normalized on write.
type TourStore struct {
	*Repository[models.Tour]
}

func NewTourStore(db *mongo.Database) *TourStore {
	repo := NewRepository(db.Collection(ToursCollection),
		WithScope[models.Tour](publicTours),
		WithBeforeSave(prepareTour),
	)
	return &TourStore{Repository: repo}
}

func prepareTour(t *models.Tour, isNew bool) error {
	t.Normalize()
	t.Slug = utils.GenerateSlug(t.Name)
	if isNew && t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return models.Validate(t)
}

func (s *TourStore) FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.Tour, error) {
	if len(ids) == 0 {
		return []models.Tour{}, nil
	}
	return s.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// SetRatings writes the review aggregate onto a tour, secret or not. The
// average is clamped the same way a tour save would.
func (s *TourStore) SetRatings(ctx context.Context, id bson.ObjectID, quantity int, average float64) error {
	_, err := s.Collection().UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"ratingsQuantity": quantity,
			"ratingsAverage":  models.ClampRating(average),
		},
	})
	if err != nil {
		return fmt.Errorf("set ratings on tour %s: %w", id.Hex(), err)
	}
	return nil
}

// Stats groups well-rated tours by difficulty, cheapest group first.
func (s *TourStore) Stats(ctx context.Context) ([]models.TourStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "ratingsAverage", Value: bson.D{{Key: "$gte", Value: 4.5}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$toUpper", Value: "$difficulty"}}},
			{Key: "numTours", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "numRatings", Value: bson.D{{Key: "$sum", Value: "$ratingsQuantity"}}},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$ratingsAverage"}}},
			{Key: "avgPrice", Value: bson.D{{Key: "$avg", Value: "$price"}}},
			{Key: "minPrice", Value: bson.D{{Key: "$min", Value: "$price"}}},
			{Key: "maxPrice", Value: bson.D{{Key: "$max", Value: "$price"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "avgPrice", Value: 1}}}},
	}

	stats := []models.TourStats{}
	if err := s.Aggregate(ctx, pipeline, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// MonthlyPlan counts tour starts per month of year, busiest month first.
func (s *TourStore) MonthlyPlan(ctx context.Context, year int) ([]models.MonthlyPlan, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.D{{Key: "startDates", Value: bson.D{
			{Key: "$gte", Value: from},
			{Key: "$lt", Value: to},
		}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$month", Value: "$startDates"}}},
			{Key: "numTourStarts", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "tours", Value: bson.D{{Key: "$push", Value: "$name"}}},
		}}},
		{{Key: "$addFields", Value: bson.D{{Key: "month", Value: "$_id"}}}},
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}}}},
		{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}, {Key: "month", Value: 1}}}},
		{{Key: "$limit", Value: 12}},
	}

	plan := []models.MonthlyPlan{}
	if err := s.Aggregate(ctx, pipeline, &plan); err != nil {
		return nil, err
	}
	return plan, nil
}
