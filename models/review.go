package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Review struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Review    string        `bson:"review" json:"review" validate:"required,min=4,max=200"`
	Rating    float64       `bson:"rating" json:"rating" validate:"gte=0,lte=5"`
	Tour      bson.ObjectID `bson:"tour" json:"tour" validate:"required"`
	User      bson.ObjectID `bson:"user" json:"user" validate:"required"`
	CreatedAt time.Time     `bson:"createdAt" json:"createdAt"`
}

func (r *Review) SetID(id bson.ObjectID) { r.ID = id }
