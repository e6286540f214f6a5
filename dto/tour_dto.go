package dto

import (
	"time"

	"github.com/princinho/toursbackend/models"
	"github.com/princinho/toursbackend/utils"
)

// TourDTO serves both create and update. Nil fields are left alone, so an
// update only touches what the client sent; required fields are enforced
// by the model on save. For multipart requests it is parsed from the
// "data" field (JSON), as the image uploads travel beside it.
type TourDTO struct {
	Name          *string            `json:"name"`
	Duration      *int               `json:"duration"`
	MaxGroupSize  *int               `json:"maxGroupSize"`
	Difficulty    *models.Difficulty `json:"difficulty"`
	Price         *float64           `json:"price"`
	Discount      *float64           `json:"discount"`
	Summary       *string            `json:"summary"`
	Description   *string            `json:"description"`
	ImageCover    *string            `json:"imageCover"`
	Images        *[]string          `json:"images"`
	StartDates    *[]time.Time       `json:"startDates"`
	SecretTour    *bool              `json:"secretTour"`
	StartLocation *models.Location   `json:"startLocation"`
	Locations     *[]models.Location `json:"locations"`
	Guides        *[]string          `json:"guides"`
}

func (d *TourDTO) Apply(t *models.Tour) error {
	if d.Guides != nil {
		ids, err := utils.StringsToObjectIDs(*d.Guides)
		if err != nil {
			return err
		}
		t.Guides = ids
	}
	setIf(&t.Name, d.Name)
	setIf(&t.Duration, d.Duration)
	setIf(&t.MaxGroupSize, d.MaxGroupSize)
	setIf(&t.Difficulty, d.Difficulty)
	setIf(&t.Price, d.Price)
	setIf(&t.Discount, d.Discount)
	setIf(&t.Summary, d.Summary)
	setIf(&t.Description, d.Description)
	setIf(&t.ImageCover, d.ImageCover)
	setIf(&t.Images, d.Images)
	setIf(&t.StartDates, d.StartDates)
	setIf(&t.SecretTour, d.SecretTour)
	setIf(&t.Locations, d.Locations)
	if d.StartLocation != nil {
		loc := *d.StartLocation
		t.StartLocation = &loc
	}
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
