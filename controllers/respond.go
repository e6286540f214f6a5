package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/auth"
	"github.com/princinho/toursbackend/middleware"
	"github.com/princinho/toursbackend/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// fail records err for middleware.ErrorHandler and stops the chain.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"status": "success", "data": gin.H{"data": data}})
}

func parseID(raw string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(raw)
	if err != nil {
		return bson.ObjectID{}, apperror.Validation("Invalid id: " + raw)
	}
	return id, nil
}

func currentUser(c *gin.Context) (*models.User, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, apperror.Unauthorized("You are not logged in! Please log in to get access.")
	}
	return u, nil
}

// baseURL rebuilds the public origin of the request, honouring a TLS
// terminating proxy.
func baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

// CookieSettings controls how the session cookie is written.
type CookieSettings struct {
	Secure bool
	// TTL should match the token lifetime.
	TTL time.Duration
}

func (cs CookieSettings) set(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cs.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sendToken writes the session cookie and the {status, token, data:{user}} body.
func (cs CookieSettings) sendToken(c *gin.Context, status int, s *auth.Session) {
	cs.set(c, s.Token, int(cs.TTL.Seconds()))
	c.JSON(status, gin.H{
		"status": "success",
		"token":  s.Token,
		"data":   gin.H{"user": s.User},
	})
}

func (cs CookieSettings) clear(c *gin.Context) {
	cs.set(c, middleware.LoggedOutValue, -1)
}
