package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList remembers logged-out tokens until they would have expired.
type RevocationList interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// NoRevocation keeps logout stateless: a token stays valid until it expires.
type NoRevocation struct{}

func (NoRevocation) Revoke(context.Context, string, time.Time) error { return nil }
func (NoRevocation) IsRevoked(context.Context, string) (bool, error) { return false, nil }

type RedisRevocationList struct {
	rdb redis.UniversalClient
	now func() time.Time
}

func NewRedisRevocationList(rdb redis.UniversalClient, now func() time.Time) *RedisRevocationList {
	if now == nil {
		now = time.Now
	}
	return &RedisRevocationList{rdb: rdb, now: now}
}

// keys hold a digest so raw tokens never reach Redis
func revokedKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "tours:revoked:" + hex.EncodeToString(sum[:])
}

func (l *RedisRevocationList) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(l.now())
	if ttl <= 0 {
		return nil
	}
	if err := l.rdb.Set(ctx, revokedKey(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := l.rdb.Exists(ctx, revokedKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}
