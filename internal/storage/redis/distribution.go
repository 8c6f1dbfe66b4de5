// Package redis provides the hot distribution cache on Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cory-johannsen/diceodds/internal/config"
	"github.com/cory-johannsen/diceodds/internal/dice/probability"
	"github.com/cory-johannsen/diceodds/internal/odds"
)

// Key prefix for cached distributions.
const distributionKeyPrefix = "diceodds:distribution:"

// Config holds configuration for the Redis distribution cache.
type Config struct {
	// RedisClient is the connected client.
	RedisClient *redis.Client
	// TTL expires entries after this long; 0 keeps them forever.
	TTL time.Duration
	// Options rebuild cached distributions.
	Options []probability.Option
}

// DistributionCache implements odds.Store on Redis, storing each distribution
// as a JSON probability.Table.
type DistributionCache struct {
	client *redis.Client
	ttl    time.Duration
	opts   []probability.Option
}

// NewClient creates a Redis client from configuration.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewDistributionCache creates a Redis-backed distribution cache.
//
// Precondition: cfg and cfg.RedisClient must be non-nil.
// Postcondition: Returns a cache whose server answered PING, or an error.
func NewDistributionCache(ctx context.Context, cfg *Config) (*DistributionCache, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.RedisClient == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if err := cfg.RedisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &DistributionCache{
		client: cfg.RedisClient,
		ttl:    cfg.TTL,
		opts:   cfg.Options,
	}, nil
}

// Get returns the distribution cached under key.
//
// Postcondition: Returns odds.ErrNotFound on a miss.
func (c *DistributionCache) Get(ctx context.Context, key string) (*probability.Distribution, error) {
	raw, err := c.client.Get(ctx, distributionKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, odds.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get distribution: %w", err)
	}

	var t probability.Table
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal distribution: %w", err)
	}
	d, err := probability.FromTable(t, c.opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid cached distribution %q: %w", key, err)
	}
	return d, nil
}

// Put caches d under key with the configured TTL.
func (c *DistributionCache) Put(ctx context.Context, key string, d *probability.Distribution) error {
	raw, err := json.Marshal(d.Table())
	if err != nil {
		return fmt.Errorf("failed to marshal distribution: %w", err)
	}
	if err := c.client.Set(ctx, distributionKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save distribution: %w", err)
	}
	return nil
}
