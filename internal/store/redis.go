package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore handles Redis operations for rate limiting.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying Redis client for middleware.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// rateLimitKey returns the key for a caller's rate limit counter.
func rateLimitKey(caller, category string) string {
	return fmt.Sprintf("ratelimit:%s:%s", category, caller)
}

// IncrementRateLimit bumps the caller's counter for the current window and
// returns the new count. The window TTL is set on first increment.
func (s *RedisStore) IncrementRateLimit(ctx context.Context, caller, category string, window time.Duration) (int64, error) {
	key := rateLimitKey(caller, category)

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RateLimitTTL returns the remaining window for a caller's counter.
func (s *RedisStore) RateLimitTTL(ctx context.Context, caller, category string) (time.Duration, error) {
	return s.client.TTL(ctx, rateLimitKey(caller, category)).Result()
}
