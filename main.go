package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/princinho/toursbackend/auth"
	"github.com/princinho/toursbackend/config"
	"github.com/princinho/toursbackend/controllers"
	"github.com/princinho/toursbackend/database"
	"github.com/princinho/toursbackend/logger"
	"github.com/princinho/toursbackend/metrics"
	"github.com/princinho/toursbackend/middleware"
	"github.com/princinho/toursbackend/notify"
	"github.com/princinho/toursbackend/payment"
	"github.com/princinho/toursbackend/routes"
	"github.com/princinho/toursbackend/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := database.Connect(ctx, cfg.MongoURI, zl)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()
	db := client.Database(cfg.DatabaseName)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	// seeding admin user
	if err := utils.SeedAdminUser(ctx, db.Collection(database.UsersCollection), cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost, zl); err != nil {
		return err
	}

	users := database.NewUserStore(db, cfg.BcryptCost, nil)
	tours := database.NewTourStore(db)
	reviews := database.NewReviewStore(db, tours, zl)
	bookings := database.NewBookingStore(db)

	images, closeImages, err := newImageStore(ctx, cfg.Storage, zl)
	if err != nil {
		return err
	}
	defer closeImages()

	opts := []auth.Option{}
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		opts = append(opts, auth.WithRevocationList(auth.NewRedisRevocationList(rdb, nil)))
		zl.Info("token revocation enabled")
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn, nil)
	svc, err := auth.NewService(users, tokens, newNotifier(cfg.SMTP, zl), cfg.BcryptCost, zl, opts...)
	if err != nil {
		return err
	}

	var gateway payment.Gateway = payment.DisabledGateway{}
	if cfg.Stripe.SecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	} else {
		zl.Warn("STRIPE_SECRET_KEY not set, checkout disabled")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	allowedOrigins := map[string]bool{}
	for _, origin := range cfg.AllowedOrigins {
		allowedOrigins[origin] = true
	}
	zl.Info("allowed origins", zap.Strings("origins", cfg.AllowedOrigins))
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return allowedOrigins[origin]
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RequestLogger(zl))
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		zl.Error("panic recovered", zap.Any("panic", recovered), zap.String("route", middleware.RoutePath(c)))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Something went wrong"})
	}))
	r.Use(metrics.Middleware())
	r.Use(middleware.ErrorHandler(zl, !cfg.IsProduction()))
	r.MaxMultipartMemory = int64(cfg.Storage.MaxUploadSizeMB) << 20

	routes.Register(r, routes.Deps{
		Auth:     svc,
		Users:    users,
		Tours:    tours,
		Reviews:  reviews,
		Bookings: bookings,
		Payments: gateway,
		Uploads: controllers.Uploads{
			Store:     images,
			Validator: utils.NewImageValidator(cfg.Storage.MaxUploadSizeMB),
			Log:       zl,
		},
		Cookies: controllers.CookieSettings{Secure: cfg.IsProduction(), TTL: cfg.JWTExpiresIn},
		Limiter: middleware.NewRateLimiter(cfg.RateLimitPerHour),
		Log:     zl,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		zl.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	svc.Wait()
	return nil
}

func newImageStore(ctx context.Context, cfg config.StorageConfig, zl *zap.Logger) (utils.ImageStore, func(), error) {
	switch cfg.Driver {
	case "r2":
		store, err := utils.NewR2Store(ctx, cfg.R2Bucket, cfg.R2AccessKeyID, cfg.R2SecretAccessKey, cfg.R2Endpoint, cfg.R2PublicDomain)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "gcs":
		store, err := utils.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		zl.Warn("image storage disabled, uploads will be rejected")
		return utils.DisabledImageStore{}, func() {}, nil
	}
}

func newNotifier(cfg config.SMTPConfig, zl *zap.Logger) notify.Notifier {
	if cfg.Host == "" {
		zl.Warn("SMTP_HOST not set, emails are written to the log")
		return notify.NewLogNotifier(zl)
	}
	return notify.NewSMTPNotifier(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.From)
}
