package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Booking struct {
	ID              bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Tour            bson.ObjectID `bson:"tour" json:"tour" validate:"required"`
	User            bson.ObjectID `bson:"user" json:"user" validate:"required"`
	Price           float64       `bson:"price" json:"price" validate:"required,gt=0"`
	Paid            bool          `bson:"paid" json:"paid"`
	CheckoutSession string        `bson:"checkoutSession,omitempty" json:"-"`
	CreatedAt       time.Time     `bson:"createdAt" json:"createdAt"`
}

func (b *Booking) SetID(id bson.ObjectID) { b.ID = id }
