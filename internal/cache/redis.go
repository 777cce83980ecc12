// Package cache provides the Redis-backed cache used for leaderboard results.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/config"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

// Cache wraps a Redis client.
type Cache struct {
	client *redis.Client
	log    *logger.Logger
}

// New connects to Redis and verifies the connection.
func New(cfg *config.RedisConfig, log *logger.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.Remote("cache.connect", fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr(), err))
	}

	log.Info().Str("addr", cfg.Addr()).Int("db", cfg.DB).Msg("Connected to Redis")

	return &Cache{client: client, log: log}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, log *logger.Logger) *Cache {
	return &Cache{client: client, log: log}
}

// Get returns the value stored at key, or "" when the key does not exist.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.Remote("cache.get", fmt.Errorf("failed to get %s: %w", key, err))
	}
	return val, nil
}

// Set stores value at key with the given expiration (0 keeps it forever).
func (c *Cache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := c.client.Set(ctx, key, value, expiration).Err(); err != nil {
		return apperrors.Remote("cache.set", fmt.Errorf("failed to set %s: %w", key, err))
	}
	return nil
}

// Incr increments the integer stored at key.
func (c *Cache) Incr(ctx context.Context, key string) (int64, error) {
	val, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, apperrors.Remote("cache.incr", fmt.Errorf("failed to increment %s: %w", key, err))
	}
	return val, nil
}

// Health checks if Redis is reachable.
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
