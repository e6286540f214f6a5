// Package routes mounts the HTTP surface onto a gin engine.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/princinho/toursbackend/auth"
	"github.com/princinho/toursbackend/controllers"
	"github.com/princinho/toursbackend/database"
	"github.com/princinho/toursbackend/metrics"
	"github.com/princinho/toursbackend/middleware"
	"github.com/princinho/toursbackend/models"
	"github.com/princinho/toursbackend/payment"
	"go.uber.org/zap"
)

type Deps struct {
	Auth     *auth.Service
	Users    *database.UserStore
	Tours    *database.TourStore
	Reviews  *database.ReviewStore
	Bookings *database.BookingStore
	Payments payment.Gateway
	Uploads  controllers.Uploads
	Cookies  controllers.CookieSettings
	Limiter  *middleware.RateLimiter
	Log      *zap.Logger
}

func init() {
	// binding errors then name fields the way clients send them
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(models.JSONFieldName)
	}
}

func Register(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", metrics.Handler())
	r.POST("/webhook-checkout", controllers.WebhookCheckout(d.Payments, d.Users, d.Bookings, d.Log))

	api := r.Group("/api")
	if d.Limiter != nil {
		api.Use(d.Limiter.Handler())
	}
	v1 := api.Group("/v1")

	protect := middleware.Protect(d.Auth)
	restrictTo := middleware.RestrictTo

	// users
	users := controllers.UserResource(d.Users)
	u := v1.Group("/users")
	{
		u.POST("/signup", controllers.Signup(d.Auth, d.Cookies))
		u.POST("/login", controllers.Login(d.Auth, d.Cookies))
		u.GET("/logout", controllers.Logout(d.Auth, d.Cookies))
		u.POST("/forgotPassword", controllers.ForgotPassword(d.Auth))
		u.PATCH("/resetPassword/:token", controllers.ResetPassword(d.Auth, d.Cookies))

		me := u.Group("", protect)
		me.PATCH("/updateMyPassword", controllers.UpdateMyPassword(d.Auth, d.Cookies))
		me.GET("/me", controllers.GetMe())
		me.PATCH("/updateMe", controllers.UpdateMe(d.Users, d.Uploads))
		me.DELETE("/deleteMe", controllers.DeleteMe(d.Users))

		adm := u.Group("", protect, restrictTo(models.RoleAdmin))
		adm.GET("", users.GetAll())
		adm.POST("", users.CreateOne())
		adm.GET("/:id", users.GetOne())
		adm.PATCH("/:id", users.UpdateOne())
		adm.DELETE("/:id", users.DeleteOne())
	}

	// reviews
	reviews := controllers.ReviewResource(d.Reviews)
	rv := v1.Group("/reviews", protect)
	{
		rv.GET("", reviews.GetAll())
		rv.POST("", restrictTo(models.RoleUser), reviews.CreateOne())
		rv.GET("/:id", reviews.GetOne())
		author := restrictTo(models.RoleUser, models.RoleAdmin)
		rv.PATCH("/:id", author, controllers.RequireReviewAuthor(d.Reviews), reviews.UpdateOne())
		rv.DELETE("/:id", author, controllers.RequireReviewAuthor(d.Reviews), reviews.DeleteOne())
	}

	// tours
	tours := controllers.TourResource(d.Tours, d.Uploads)
	t := v1.Group("/tours")
	{
		nested := t.Group("/:id/reviews", protect, controllers.NestedUnderTour())
		nested.GET("", reviews.GetAll())
		nested.POST("", restrictTo(models.RoleUser), reviews.CreateOne())

		t.GET("/top-5-cheap", protect, controllers.AliasTopTours(), tours.GetAll())
		t.GET("/stats", protect, controllers.TourStats(d.Tours))
		t.GET("/monthly-plan/:year", protect,
			restrictTo(models.RoleAdmin, models.RoleLeadGuide, models.RoleGuide),
			controllers.MonthlyPlan(d.Tours))

		t.GET("", tours.GetAll())
		t.GET("/:id", protect, tours.GetOne())
		managers := restrictTo(models.RoleAdmin, models.RoleLeadGuide)
		t.POST("", protect, managers, tours.CreateOne())
		t.PATCH("/:id", protect, managers, tours.UpdateOne())
		t.DELETE("/:id", protect, managers, tours.DeleteOne())
	}

	// bookings
	bookings := controllers.BookingResource(d.Bookings)
	b := v1.Group("/bookings", protect)
	{
		b.GET("/checkout-session/:tourId", controllers.GetCheckoutSession(d.Tours, d.Payments))
		b.GET("/my-tours", controllers.MyTours(d.Bookings, d.Tours))

		adm := b.Group("", restrictTo(models.RoleAdmin, models.RoleLeadGuide))
		adm.GET("", bookings.GetAll())
		adm.POST("", bookings.CreateOne())
		adm.GET("/:id", bookings.GetOne())
		adm.PATCH("/:id", bookings.UpdateOne())
		adm.DELETE("/:id", bookings.DeleteOne())
	}
}
