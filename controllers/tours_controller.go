package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/dto"
	"github.com/princinho/toursbackend/models"
)

const maxTourImages = 3

type TourReports interface {
	Stats(ctx context.Context) ([]models.TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]models.MonthlyPlan, error)
}

// AliasTopTours presets the query for the five best cheap tours. Client
// parameters for the preset keys are replaced.
func AliasTopTours() gin.HandlerFunc {
	return func(c *gin.Context) {
		q := c.Request.URL.Query()
		q.Set("limit", "5")
		q.Set("sort", "-ratingsAverage,price")
		q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
		c.Request.URL.RawQuery = q.Encode()
		c.Next()
	}
}

// GET /api/v1/tours/stats
func TourStats(reports TourReports) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := reports.Stats(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"stats": stats}})
	}
}

// GET /api/v1/tours/monthly-plan/:year
func MonthlyPlan(reports TourReports) gin.HandlerFunc {
	return func(c *gin.Context) {
		year, err := strconv.Atoi(c.Param("year"))
		if err != nil || year < 1970 || year > 9999 {
			fail(c, apperror.Validation("Invalid year: "+c.Param("year")))
			return
		}
		plan, err := reports.MonthlyPlan(c.Request.Context(), year)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"plan": plan}})
	}
}

// TourResource accepts JSON bodies, or multipart forms carrying the tour
// as JSON in "data" next to an "imageCover" file and up to three "images".
func TourResource(store Store[models.Tour], uploads Uploads) Resource[models.Tour] {
	return Resource[models.Tour]{
		Store: store,
		Decode: func(c *gin.Context, t *models.Tour, isNew bool) error {
			var body dto.TourDTO
			if !isMultipart(c) {
				if err := c.ShouldBindJSON(&body); err != nil {
					return err
				}
				return body.Apply(t)
			}

			if raw := c.PostForm("data"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &body); err != nil {
					return apperror.Wrap(apperror.ValidationFailed, "Invalid data JSON", err)
				}
			}
			if err := body.Apply(t); err != nil {
				return err
			}
			return attachTourImages(c, t, uploads)
		},
	}
}

// attachTourImages replaces the tour's image urls with fresh uploads. The
// previous objects are kept since the save that follows may still fail.
func attachTourImages(c *gin.Context, t *models.Tour, uploads Uploads) error {
	form, err := c.MultipartForm()
	if err != nil {
		return err
	}
	cover := form.File["imageCover"]
	images := form.File["images"]
	if len(cover) > 1 {
		return apperror.Validation("Only one imageCover is allowed")
	}
	if len(images) > maxTourImages {
		return apperror.Validation("At most 3 images are allowed")
	}

	ctx := c.Request.Context()
	prefix := "tours/new"
	if !t.ID.IsZero() {
		prefix = "tours/" + t.ID.Hex()
	}
	if len(cover) == 1 {
		urls, err := uploads.save(ctx, prefix, cover)
		if err != nil {
			return err
		}
		t.ImageCover = urls[0]
	}
	if len(images) > 0 {
		urls, err := uploads.save(ctx, prefix, images)
		if err != nil {
			return err
		}
		t.Images = urls
	}
	return nil
}
