package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore is a CounterStore backed by a shared Redis instance, used
// when multiple gateway instances must agree on a single counter.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, keyPrefix: "gateway:ratelimit:"}
}

// Incr atomically increments the window counter for key. INCR is atomic
// in Redis, so concurrent callers always observe distinct counts. The
// window TTL is set when the counter is created (count == 1); the window
// therefore starts at the first request and is never extended.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	full := s.keyPrefix + key

	count, err := s.client.Incr(ctx, full).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", full, err)
	}

	if count == 1 {
		if err := s.client.Expire(ctx, full, window).Err(); err != nil {
			return count, fmt.Errorf("expire %s: %w", full, err)
		}
	}

	return count, nil
}

// Ping verifies connectivity to the Redis instance.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
