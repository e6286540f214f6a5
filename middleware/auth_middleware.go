package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/models"
)

const (
	// TokenCookie carries the session token for browser clients.
	TokenCookie = "jwt"
	// LoggedOutValue is the placeholder written to TokenCookie on logout.
	LoggedOutValue = "loggedout"

	currentUserKey = "currentUser"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// TokenFromRequest prefers a Bearer header and falls back to the jwt cookie.
func TokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != LoggedOutValue {
		return cookie
	}
	return ""
}

// Protect rejects requests without a valid session and stores the
// resolved user for downstream handlers.
func Protect(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.Authenticate(c.Request.Context(), TokenFromRequest(c))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by Protect.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	u, ok := value.(*models.User)
	return u, ok
}

// RestrictTo must run after Protect.
func RestrictTo(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			_ = c.Error(apperror.Unauthorized("You are not logged in! Please log in to get access."))
			c.Abort()
			return
		}
		if !u.HasRole(roles...) {
			_ = c.Error(apperror.Denied("You do not have permission to perform this action"))
			c.Abort()
			return
		}
		c.Next()
	}
}
