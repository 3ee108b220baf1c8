package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes shared by every process talking to the same Redis database.
const (
	CarCachePrefix   = "autos:cache:"
	SubmissionPrefix = "autos:limit:"
)

// ConnectRedis dials Redis and pings it. The returned client backs car lookup
// memoisation, submission counters, config invalidation and the mock email sink.
// Callers treat command errors as cache misses.
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", addr, err)
	}

	log.Printf("Connected to Redis at %s (db %d)", addr, db)
	return rdb, nil
}

// DisconnectRedis closes the client. A nil client is a no-op.
func DisconnectRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	log.Println("Redis connection closed.")
	return nil
}
