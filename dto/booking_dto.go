package dto

import (
	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// BookingDTO is used by the admin booking endpoints.
type BookingDTO struct {
	Tour  *string  `json:"tour"`
	User  *string  `json:"user"`
	Price *float64 `json:"price"`
	Paid  *bool    `json:"paid"`
}

func (d *BookingDTO) Apply(b *models.Booking) error {
	if d.Tour != nil {
		id, err := bson.ObjectIDFromHex(*d.Tour)
		if err != nil {
			return apperror.Validation("Invalid tour: " + *d.Tour)
		}
		b.Tour = id
	}
	if d.User != nil {
		id, err := bson.ObjectIDFromHex(*d.User)
		if err != nil {
			return apperror.Validation("Invalid user: " + *d.User)
		}
		b.User = id
	}
	setIf(&b.Price, d.Price)
	setIf(&b.Paid, d.Paid)
	return nil
}
