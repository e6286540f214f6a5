package database

import (
	"context"
	"time"

	"github.com/princinho/toursbackend/models"
	"github.com/princinho/toursbackend/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

// ReviewStore recomputes the parent tour's rating aggregate after every
// successful write. The recompute is a separate statement, so concurrent
// review writes converge on the last aggregate computed.
type ReviewStore struct {
	*Repository[models.Review]
	tours *TourStore
	log   *zap.Logger
}

func NewReviewStore(db *mongo.Database, tours *TourStore, log *zap.Logger) *ReviewStore {
	repo := NewRepository(db.Collection(ReviewsCollection), WithBeforeSave(prepareReview))
	return &ReviewStore{Repository: repo, tours: tours, log: log}
}

func prepareReview(r *models.Review, isNew bool) error {
	r.Review = utils.SanitizeText(r.Review)
	if isNew && r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return models.Validate(r)
}

func (s *ReviewStore) Create(ctx context.Context, r *models.Review) (bson.ObjectID, error) {
	id, err := s.Repository.Create(ctx, r)
	if err != nil {
		return id, err
	}
	s.refreshRatings(ctx, r.Tour)
	return id, nil
}

func (s *ReviewStore) Replace(ctx context.Context, id bson.ObjectID, r *models.Review) error {
	if err := s.Repository.Replace(ctx, id, r); err != nil {
		return err
	}
	s.refreshRatings(ctx, r.Tour)
	return nil
}

func (s *ReviewStore) DeleteByID(ctx context.Context, id bson.ObjectID) error {
	r, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repository.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.refreshRatings(ctx, r.Tour)
	return nil
}

type ratingAggregate struct {
	Count   int     `bson:"nRating"`
	Average float64 `bson:"avgRating"`
}

// RecalculateRatings rebuilds ratingsQuantity and ratingsAverage for a tour
// from its current reviews. A tour with no reviews gets the defaults back.
func (s *ReviewStore) RecalculateRatings(ctx context.Context, tourID bson.ObjectID) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "tour", Value: tourID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tour"},
			{Key: "nRating", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
		}}},
	}

	var rows []ratingAggregate
	if err := s.Aggregate(ctx, pipeline, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return s.tours.SetRatings(ctx, tourID, 0, models.DefaultRatingsAverage)
	}
	return s.tours.SetRatings(ctx, tourID, rows[0].Count, rows[0].Average)
}

func (s *ReviewStore) refreshRatings(ctx context.Context, tourID bson.ObjectID) {
	if err := s.RecalculateRatings(ctx, tourID); err != nil {
		s.log.Error("recalculate tour ratings", zap.String("tour", tourID.Hex()), zap.Error(err))
	}
}
