package controllers

import (
	"context"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/princinho/toursbackend/dto"
	"github.com/princinho/toursbackend/models"
	"github.com/princinho/toursbackend/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// AccountStore is what the self-service endpoints need from the user store.
type AccountStore interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	Save(ctx context.Context, u *models.User) error
	DeleteByID(ctx context.Context, id bson.ObjectID) error
}

// Uploads bundles image storage with the validator applied before upload.
type Uploads struct {
	Store     utils.ImageStore
	Validator *utils.FileValidator
	Log       *zap.Logger
}

// save validates and uploads files under prefix.
func (up Uploads) save(ctx context.Context, prefix string, files []*multipart.FileHeader) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if err := up.Validator.ValidateAll(files); err != nil {
		return nil, err
	}
	return up.Store.Upload(ctx, prefix, files)
}

// discard deletes replaced images; failures only leave orphans behind.
func (up Uploads) discard(ctx context.Context, urls ...string) {
	var owned []string
	for _, u := range urls {
		if strings.HasPrefix(u, "http") {
			owned = append(owned, u)
		}
	}
	if len(owned) == 0 {
		return
	}
	if err := up.Store.Delete(ctx, owned); err != nil {
		up.Log.Warn("delete replaced images", zap.Strings("urls", owned), zap.Error(err))
	}
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), binding.MIMEMultipartPOSTForm)
}

// GET /api/v1/users/me
func GetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := currentUser(c)
		if err != nil {
			fail(c, err)
			return
		}
		success(c, http.StatusOK, u)
	}
}

// PATCH /api/v1/users/updateMe takes JSON, or a multipart form when a
// new photo is attached.
func UpdateMe(users AccountStore, uploads Uploads) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, err := currentUser(c)
		if err != nil {
			fail(c, err)
			return
		}
		ctx := c.Request.Context()

		var body dto.UpdateMeDTO
		var photo *multipart.FileHeader
		if isMultipart(c) {
			if err := c.ShouldBindWith(&body, binding.FormMultipart); err != nil {
				fail(c, err)
				return
			}
			if fh, err := c.FormFile("photo"); err == nil {
				photo = fh
			}
		} else if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, err)
			return
		}

		u, err := users.FindByID(ctx, me.ID)
		if err != nil {
			fail(c, err)
			return
		}
		if err := body.Apply(u); err != nil {
			fail(c, err)
			return
		}

		oldPhoto := u.Photo
		if photo != nil {
			urls, err := uploads.save(ctx, "users/"+u.ID.Hex(), []*multipart.FileHeader{photo})
			if err != nil {
				fail(c, err)
				return
			}
			u.Photo = urls[0]
		}

		if err := users.Save(ctx, u); err != nil {
			if photo != nil {
				uploads.discard(ctx, u.Photo)
			}
			fail(c, err)
			return
		}
		if photo != nil && oldPhoto != u.Photo {
			uploads.discard(ctx, oldPhoto)
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"user": u}})
	}
}

// DELETE /api/v1/users/deleteMe deactivates the account.
func DeleteMe(users AccountStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, err := currentUser(c)
		if err != nil {
			fail(c, err)
			return
		}
		if err := users.DeleteByID(c.Request.Context(), me.ID); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// UserResource is the admin CRUD over accounts. Delete is a deactivation.
func UserResource(store Store[models.User]) Resource[models.User] {
	return Resource[models.User]{
		Store: store,
		Decode: func(c *gin.Context, u *models.User, isNew bool) error {
			if isNew {
				var body dto.CreateUserDTO
				if err := c.ShouldBindJSON(&body); err != nil {
					return err
				}
				*u = *body.User()
				return nil
			}
			var body dto.AdminUpdateUserDTO
			if err := c.ShouldBindJSON(&body); err != nil {
				return err
			}
			body.Apply(u)
			return nil
		},
	}
}
