// Package cache holds the Redis backed cache of dashboard counters.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"tax_analysis/internal/model"
)

const statsKey = "stats:summary"

// StatsCache stores the /stats summary. Get returns nil, nil on a miss.
type StatsCache interface {
	Get(ctx context.Context) (*model.Stats, error)
	Set(ctx context.Context, stats *model.Stats) error
	Invalidate(ctx context.Context) error
}

// NewRedisClient parses redisURL and pings the server before returning the client.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error pinging redis: %w", err)
	}

	log.Println("Redis client created successfully")
	return client, nil
}

type RedisStatsCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStatsCache(client redis.Cmdable, ttl time.Duration) *RedisStatsCache {
	return &RedisStatsCache{client: client, ttl: ttl}
}

func (c *RedisStatsCache) Get(ctx context.Context) (*model.Stats, error) {
	data, err := c.client.Get(ctx, statsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached stats: %w", err)
	}

	var stats model.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached stats: %w", err)
	}
	return &stats, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, stats *model.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	if err := c.client.Set(ctx, statsKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache stats: %w", err)
	}
	return nil
}

func (c *RedisStatsCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, statsKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate stats: %w", err)
	}
	return nil
}
