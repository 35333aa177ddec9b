package idempotency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

// Guard remembers request keys so a retried checkout is not executed twice.
type Guard interface {
	// Claim reports whether key was seen for the first time.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key so the request may be retried.
	Release(ctx context.Context, key string) error
}

// RedisGuard stores claimed keys in Redis with a TTL.
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func redisKey(key string) string {
	return fmt.Sprintf("idempotent-key:%s", key)
}

func (g *RedisGuard) Claim(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return true, nil
	}
	ok, err := g.rdb.SetNX(ctx, redisKey(key), "exists", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if err := g.rdb.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// Nop accepts every key. It is used when no Redis address is configured.
type Nop struct{}

func (Nop) Claim(context.Context, string) (bool, error) { return true, nil }
func (Nop) Release(context.Context, string) error      { return nil }
