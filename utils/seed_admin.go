package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/princinho/toursbackend/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// SeedAdminUser inserts the bootstrap admin unless an account with that
// email already exists. An existing account is never modified.
func SeedAdminUser(ctx context.Context, usersCol *mongo.Collection, email, password string, cost int, log *zap.Logger) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		log.Info("admin seeding skipped, ADMIN_EMAIL or ADMIN_PASSWORD not set")
		return nil
	}
	if len(password) < models.MinPasswordLength {
		return fmt.Errorf("ADMIN_PASSWORD must have at least %d characters", models.MinPasswordLength)
	}

	hash, err := HashPassword(password, cost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now().UTC()

	filter := bson.M{"email": email}
	update := bson.M{
		"$setOnInsert": bson.M{
			"name":          "Administrator",
			"email":         email,
			"photo":         models.DefaultPhoto,
			"password":      hash,
			"role":          models.RoleAdmin,
			"active":        true,
			"loginAttempts": 0,
			"createdAt":     now,
			"updatedAt":     now,
		},
	}

	res, err := usersCol.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("seed admin upsert failed: %w", err)
	}

	if res.UpsertedCount == 1 {
		log.Info("admin user seeded", zap.String("email", email))
	} else {
		log.Info("admin user already exists", zap.String("email", email))
	}
	return nil
}
