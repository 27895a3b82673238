package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces the proxy's counters inside a shared Redis.
const keyPrefix = "ratelimit:"

// RedisStore is the shared fixed-window store for multi-instance
// deployments. The window lives as a Redis TTL, so expiry needs no sweeper
// and counters survive proxy restarts.
type RedisStore struct {
	client redis.Cmdable

	now func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Incr implements Store. The first hit of a window sets the TTL; later hits
// only increment, so the window stays anchored at the first request.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	k := keyPrefix + key

	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("ratelimit incr %q: %w", key, err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("ratelimit expire %q: %w", key, err)
		}
	}

	ttl, err := s.client.PTTL(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("ratelimit pttl %q: %w", key, err)
	}
	if ttl < 0 {
		// The key lost its TTL (flushed expiry, manual intervention). Re-arm
		// it rather than leaving an immortal counter behind.
		if err := s.client.Expire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("ratelimit expire %q: %w", key, err)
		}
		ttl = window
	}
	return count, s.now().Add(ttl), nil
}
