package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter counts events per key within a fixed window that starts at the first event.
type Counter interface {
	// Incr adds one to key and returns the new count. The window expires ttl after the
	// first increment.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Count returns the current count of key, zero once the window has expired.
	Count(ctx context.Context, key string) (int64, error)
}

type redisCounter struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCounter returns a Counter backed by Redis INCR/EXPIRE.
func NewRedisCounter(rdb *redis.Client, prefix string) Counter {
	return &redisCounter{rdb: rdb, prefix: prefix}
}

func (c *redisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	k := c.prefix + key
	n, err := c.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("counter incr %s: %w", key, err)
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, k, ttl).Err(); err != nil {
			return 0, fmt.Errorf("counter expire %s: %w", key, err)
		}
	}
	return n, nil
}

func (c *redisCounter) Count(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Get(ctx, c.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counter get %s: %w", key, err)
	}
	return n, nil
}
