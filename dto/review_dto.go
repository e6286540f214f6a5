package dto

import (
	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ReviewDTO carries the author-editable part of a review. Tour is only
// read on create and only when the route has no tourId.
type ReviewDTO struct {
	Review *string  `json:"review"`
	Rating *float64 `json:"rating"`
	Tour   string   `json:"tour"`
}

func (d *ReviewDTO) Apply(r *models.Review) {
	setIf(&r.Review, d.Review)
	setIf(&r.Rating, d.Rating)
}

func (d *ReviewDTO) TourID() (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(d.Tour)
	if err != nil {
		return bson.ObjectID{}, apperror.Validation("A review must belong to a tour")
	}
	return id, nil
}
