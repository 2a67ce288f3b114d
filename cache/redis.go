package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultScanCount is the COUNT hint passed to SCAN by DeletePattern.
const defaultScanCount = 100

// RedisCache is a Cache backed by Redis, shared by every instance of the service.
//
// DeletePattern walks the keyspace with SCAN; against a cluster client it only
// covers the node the command is routed to.
type RedisCache struct {
	client    redis.UniversalClient
	scanCount int64
	onError   func(ctx context.Context, op, key string, err error)
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithRedisErrorHandler observes backend failures that Get reports as misses.
func WithRedisErrorHandler(fn func(ctx context.Context, op, key string, err error)) RedisOption {
	return func(c *RedisCache) {
		c.onError = fn
	}
}

// WithScanCount sets the SCAN COUNT hint used by DeletePattern.
func WithScanCount(n int64) RedisOption {
	return func(c *RedisCache) {
		if n > 0 {
			c.scanCount = n
		}
	}
}

// NewRedisCache wraps an existing client. The caller keeps ownership of the
// client unless Close is called.
func NewRedisCache(client redis.UniversalClient, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		client:    client,
		scanCount: defaultScanCount,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value. Backend failures are reported to the error handler
// and treated as a miss so a degraded store never fails a lookup.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.report(ctx, "get", key, err)
		}
		return nil, false
	}
	return val, true
}

// Set stores a value with the given TTL. TTL<=0 is a no-op.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set %q: %w", key, err)
	}
	return nil
}

// Delete removes a value. Idempotent - no error on miss.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: redis del %q: %w", key, err)
	}
	return nil
}

// DeletePattern removes every key matching pattern using SCAN + DEL batches.
func (c *RedisCache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	removed := 0
	batch := make([]string, 0, c.scanCount)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("cache: redis del batch: %w", err)
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	iter := c.client.Scan(ctx, 0, pattern, c.scanCount).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) >= c.scanCount {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("cache: redis scan %q: %w", pattern, err)
	}
	if err := flush(); err != nil {
		return removed, err
	}

	return removed, nil
}

// Ping checks that the Redis server is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) report(ctx context.Context, op, key string, err error) {
	if c.onError != nil {
		c.onError(ctx, op, key, err)
	}
}

// Ensure RedisCache implements Cache
var _ Cache = (*RedisCache)(nil)
