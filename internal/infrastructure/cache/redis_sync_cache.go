package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storefront/backend/internal/domain/supplier"
)

// quotaTTL bounds how long a fetched supplier quota is trusted before
// the settings endpoint is consulted again.
const quotaTTL = time.Hour

// RedisSyncCache caches cross-run sync state in Redis: the supplier's
// advertised request quota and the last completed run summary. Every
// getter treats a miss or a Redis outage as "not cached" so the sync
// can always fall back to fetching fresh data.
type RedisSyncCache struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisSyncCache creates a new Redis-backed sync cache
func NewRedisSyncCache(cfg RedisConfig) (*RedisSyncCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSyncCache{
		client:    client,
		keyPrefix: "sync:",
	}, nil
}

// NewRedisSyncCacheWithClient creates a cache with an existing Redis client
// This is useful for testing or when sharing a client across components
func NewRedisSyncCacheWithClient(client *redis.Client, keyPrefix string) *RedisSyncCache {
	if keyPrefix == "" {
		keyPrefix = "sync:"
	}
	return &RedisSyncCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// GetQuota returns the cached requests-per-second quota. ok is false on
// a cache miss.
func (c *RedisSyncCache) GetQuota(ctx context.Context) (float64, bool, error) {
	val, err := c.client.Get(ctx, c.keyPrefix+"quota").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read cached quota: %w", err)
	}

	rps, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, nil
	}
	return rps, true, nil
}

// SetQuota caches the requests-per-second quota for an hour
func (c *RedisSyncCache) SetQuota(ctx context.Context, rps float64) error {
	err := c.client.Set(ctx, c.keyPrefix+"quota", strconv.FormatFloat(rps, 'f', -1, 64), quotaTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to cache quota: %w", err)
	}
	return nil
}

// SetLastSummary stores the summary of the most recent completed run
func (c *RedisSyncCache) SetLastSummary(ctx context.Context, summary *supplier.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+"last_summary", data, 0).Err(); err != nil {
		return fmt.Errorf("failed to cache summary: %w", err)
	}
	return nil
}

// GetLastSummary returns the most recent completed run summary, or nil
// when no run has completed yet.
func (c *RedisSyncCache) GetLastSummary(ctx context.Context) (*supplier.Summary, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+"last_summary").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached summary: %w", err)
	}

	var summary supplier.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode cached summary: %w", err)
	}
	return &summary, nil
}

// Ping checks the Redis connection
func (c *RedisSyncCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *RedisSyncCache) Close() error {
	return c.client.Close()
}
