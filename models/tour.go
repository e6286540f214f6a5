package models

import (
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyDifficult Difficulty = "difficult"
)

const DefaultRatingsAverage = 4.5

type Location struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Day         int       `bson:"day,omitempty" json:"day,omitempty"`
}

type Tour struct {
	ID              bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name            string          `bson:"name" json:"name" validate:"required,min=10,max=40"`
	Slug            string          `bson:"slug" json:"slug"`
	Duration        int             `bson:"duration" json:"duration" validate:"required,gt=0"`
	MaxGroupSize    int             `bson:"maxGroupSize" json:"maxGroupSize" validate:"required,gt=0"`
	Difficulty      Difficulty      `bson:"difficulty" json:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64         `bson:"ratingsAverage" json:"ratingsAverage" validate:"gte=1,lte=5"`
	RatingsQuantity int             `bson:"ratingsQuantity" json:"ratingsQuantity" validate:"gte=0"`
	Price           float64         `bson:"price" json:"price" validate:"required,gt=0"`
	Discount        float64         `bson:"discount,omitempty" json:"discount,omitempty" validate:"gte=0"`
	Summary         string          `bson:"summary" json:"summary"`
	Description     string          `bson:"description" json:"description" validate:"required"`
	ImageCover      string          `bson:"imageCover" json:"imageCover" validate:"required"`
	Images          []string        `bson:"images" json:"images"`
	StartDates      []time.Time     `bson:"startDates" json:"startDates"`
	SecretTour      bool            `bson:"secretTour" json:"-"`
	StartLocation   *Location       `bson:"startLocation,omitempty" json:"startLocation,omitempty"`
	Locations       []Location      `bson:"locations,omitempty" json:"locations,omitempty"`
	Guides          []bson.ObjectID `bson:"guides" json:"guides"`
	CreatedAt       time.Time       `bson:"createdAt" json:"createdAt"`
}

const (
	MinRatingsAverage = 1
	MaxRatingsAverage = 5
)

func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

// ClampRating rounds a ratings average and pins it to the range a tour
// accepts. Reviews may rate 0, which would otherwise leave the tour
// failing its own validation on the next save.
func ClampRating(v float64) float64 {
	return RoundRating(min(max(v, MinRatingsAverage), MaxRatingsAverage))
}

// Normalize trims text fields, rounds the rating and fills defaults.
// The slug is derived by the store.
func (t *Tour) Normalize() {
	t.Name = strings.TrimSpace(t.Name)
	t.Summary = strings.TrimSpace(t.Summary)
	t.Description = strings.TrimSpace(t.Description)
	if t.RatingsAverage == 0 && t.RatingsQuantity == 0 {
		t.RatingsAverage = DefaultRatingsAverage
	}
	t.RatingsAverage = ClampRating(t.RatingsAverage)
	if t.Images == nil {
		t.Images = []string{}
	}
	if t.Guides == nil {
		t.Guides = []bson.ObjectID{}
	}
}

// TourStats is one row of the per-difficulty statistics report.
type TourStats struct {
	Difficulty string  `bson:"_id" json:"difficulty"`
	NumTours   int     `bson:"numTours" json:"numTours"`
	NumRatings int     `bson:"numRatings" json:"numRatings"`
	AvgRating  float64 `bson:"avgRating" json:"avgRating"`
	AvgPrice   float64 `bson:"avgPrice" json:"avgPrice"`
	MinPrice   float64 `bson:"minPrice" json:"minPrice"`
	MaxPrice   float64 `bson:"maxPrice" json:"maxPrice"`
}

// MonthlyPlan is one month of the busiest-months report.
type MonthlyPlan struct {
	Month         int      `bson:"month" json:"month"`
	NumTourStarts int      `bson:"numTourStarts" json:"numTourStarts"`
	Tours         []string `bson:"tours" json:"tours"`
}

func (t *Tour) SetID(id bson.ObjectID) { t.ID = id }
