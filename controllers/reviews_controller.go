package controllers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/dto"
	"github.com/princinho/toursbackend/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const parentTourKey = "parentTour"

// NestedUnderTour marks review routes mounted at /tours/:id/reviews, where
// :id is the tour.
func NestedUnderTour() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(parentTourKey, c.Param("id"))
		c.Next()
	}
}

// tourScope pins nested review lists to the tour in the path.
func tourScope(c *gin.Context) (bson.M, error) {
	raw, nested := c.Get(parentTourKey)
	if !nested {
		return nil, nil
	}
	id, err := parseID(raw.(string))
	if err != nil {
		return nil, err
	}
	return bson.M{"tour": id}, nil
}

// ReviewResource takes the author from the session and the tour from the
// path when nested under a tour, else from the body. Author and
// tour never change on update.
func ReviewResource(store Store[models.Review]) Resource[models.Review] {
	return Resource[models.Review]{
		Store: store,
		Scope: tourScope,
		Decode: func(c *gin.Context, r *models.Review, isNew bool) error {
			var body dto.ReviewDTO
			if err := c.ShouldBindJSON(&body); err != nil {
				return err
			}
			body.Apply(r)
			if !isNew {
				return nil
			}

			me, err := currentUser(c)
			if err != nil {
				return err
			}
			r.User = me.ID
			if scope, err := tourScope(c); err != nil {
				return err
			} else if scope != nil {
				r.Tour = scope["tour"].(bson.ObjectID)
				return nil
			}
			r.Tour, err = body.TourID()
			return err
		},
	}
}

type reviewFinder interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Review, error)
}

// RequireReviewAuthor lets a review be changed only by its author or an admin.
func RequireReviewAuthor(reviews reviewFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, err := currentUser(c)
		if err != nil {
			fail(c, err)
			return
		}
		if me.Role == models.RoleAdmin {
			c.Next()
			return
		}
		id, err := parseID(c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		r, err := reviews.FindByID(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		if r.User != me.ID {
			fail(c, apperror.Denied("You can only change your own reviews"))
			return
		}
		c.Next()
	}
}
