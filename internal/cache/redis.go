// Package cache provides the Redis-backed key/value store used for the
// admin-stats read cache and webhook idempotency keys.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyNamespace = "tourbook"

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

type RedisCache struct {
	store cmdable
	raw   *redis.Client
}

// New parses url, opens a pooled client and verifies connectivity.
func New(ctx context.Context, url string) (*RedisCache, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{store: raw, raw: raw}, nil
}

func newWithStore(store cmdable) *RedisCache {
	return &RedisCache{store: store}
}

func key(k string) string {
	return keyNamespace + ":" + k
}

// Get returns ok=false on a miss.
func (c *RedisCache) Get(ctx context.Context, k string) ([]byte, bool, error) {
	b, err := c.store.Get(ctx, key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, k string, value []byte, ttl time.Duration) error {
	return c.store.Set(ctx, key(k), value, ttl).Err()
}

// SetNX claims k for ttl and reports whether this caller won the claim.
func (c *RedisCache) SetNX(ctx context.Context, k string, ttl time.Duration) (bool, error) {
	return c.store.SetNX(ctx, key(k), time.Now().UTC().Unix(), ttl).Result()
}

func (c *RedisCache) Del(ctx context.Context, k string) error {
	return c.store.Del(ctx, key(k)).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}
