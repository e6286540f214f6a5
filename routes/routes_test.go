package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/princinho/toursbackend/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(limiter *middleware.RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler(zap.NewNop(), false))
	Register(r, Deps{Limiter: limiter, Log: zap.NewNop()})
	return r
}

func TestRegisterMountsSurface(t *testing.T) {
	r := newTestEngine(nil)

	have := map[string]bool{}
	for _, ri := range r.Routes() {
		have[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		"GET /ping",
		"GET /metrics",
		"POST /webhook-checkout",
		"POST /api/v1/users/signup",
		"POST /api/v1/users/login",
		"GET /api/v1/users/logout",
		"POST /api/v1/users/forgotPassword",
		"PATCH /api/v1/users/resetPassword/:token",
		"PATCH /api/v1/users/updateMyPassword",
		"GET /api/v1/users/me",
		"PATCH /api/v1/users/updateMe",
		"DELETE /api/v1/users/deleteMe",
		"GET /api/v1/users",
		"DELETE /api/v1/users/:id",
		"GET /api/v1/tours",
		"GET /api/v1/tours/top-5-cheap",
		"GET /api/v1/tours/stats",
		"GET /api/v1/tours/monthly-plan/:year",
		"PATCH /api/v1/tours/:id",
		"GET /api/v1/tours/:id/reviews",
		"POST /api/v1/tours/:id/reviews",
		"GET /api/v1/reviews",
		"PATCH /api/v1/reviews/:id",
		"GET /api/v1/bookings/checkout-session/:tourId",
		"GET /api/v1/bookings/my-tours",
		"POST /api/v1/bookings",
	} {
		require.True(t, have[want], "missing route %s", want)
	}
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	r := newTestEngine(nil)
	for _, path := range []string{"/api/v1/users/me", "/api/v1/tours/stats", "/api/v1/reviews", "/api/v1/bookings/my-tours"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitOnlyCoversAPI(t *testing.T) {
	r := newTestEngine(middleware.NewRateLimiter(1))

	hit := func(path string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}
	require.Equal(t, http.StatusUnauthorized, hit("/api/v1/users/me"))
	require.Equal(t, http.StatusTooManyRequests, hit("/api/v1/users/me"))
	require.Equal(t, http.StatusOK, hit("/ping"))
}
