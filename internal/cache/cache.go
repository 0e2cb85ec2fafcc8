// Package cache is the read-through cache used by every list and detail
// read. Entries are advisory: Redis failures and corrupt payloads degrade
// to a miss and are never returned to callers.
package cache

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/linkup/linkup/backend/go-services/pkg/logger"
	"github.com/linkup/linkup/backend/go-services/pkg/metrics"
)

type Cache struct {
	client *redis.Client
}

// New returns a cache over client. A nil client yields a cache that always misses.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) enabled() bool { return c != nil && c.client != nil }

func record(k Key, result string) {
	metrics.CacheRequests.WithLabelValues(k.Family, result).Inc()
}

// GetJSON decodes the entry under k into dst and reports a hit.
func (c *Cache) GetJSON(ctx context.Context, k Key, dst interface{}) bool {
	if !c.enabled() || k.IsZero() {
		return false
	}
	b, err := c.client.Get(ctx, k.Name).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warnw("cache read failed", "key", k.Name, "err", err)
			record(k, "error")
			return false
		}
		record(k, "miss")
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		logger.Warnw("corrupt cache entry", "key", k.Name, "err", err)
		record(k, "corrupt")
		return false
	}
	record(k, "hit")
	return true
}

// SetJSON stores v under k. Failures are logged, never returned.
func (c *Cache) SetJSON(ctx context.Context, k Key, v interface{}) {
	if !c.enabled() || k.IsZero() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		logger.Warnw("cache encode failed", "key", k.Name, "err", err)
		return
	}
	if err := c.client.Set(ctx, k.Name, b, k.TTL).Err(); err != nil {
		logger.Warnw("cache write failed", "key", k.Name, "err", err)
	}
}

// GetCount reads a cached scalar. A stored "0" is a hit.
func (c *Cache) GetCount(ctx context.Context, k Key) (int64, bool) {
	if !c.enabled() || k.IsZero() {
		return 0, false
	}
	s, err := c.client.Get(ctx, k.Name).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warnw("cache read failed", "key", k.Name, "err", err)
			record(k, "error")
			return 0, false
		}
		record(k, "miss")
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		logger.Warnw("corrupt cache entry", "key", k.Name, "err", err)
		record(k, "corrupt")
		return 0, false
	}
	record(k, "hit")
	return n, true
}

func (c *Cache) SetCount(ctx context.Context, k Key, n int64) {
	if !c.enabled() || k.IsZero() {
		return
	}
	if err := c.client.Set(ctx, k.Name, strconv.FormatInt(n, 10), k.TTL).Err(); err != nil {
		logger.Warnw("cache write failed", "key", k.Name, "err", err)
	}
}

// ReadThrough returns the cached value under k or loads, stores and returns it.
// Load errors are returned untouched; nothing is cached for them.
func ReadThrough[T any](ctx context.Context, c *Cache, k Key, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if c.GetJSON(ctx, k, &cached) {
		return cached, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.SetJSON(ctx, k, v)
	return v, nil
}

// CountThrough is ReadThrough for scalar counters.
func CountThrough(ctx context.Context, c *Cache, k Key, load func(context.Context) (int64, error)) (int64, error) {
	if n, ok := c.GetCount(ctx, k); ok {
		return n, nil
	}
	n, err := load(ctx)
	if err != nil {
		return 0, err
	}
	c.SetCount(ctx, k, n)
	return n, nil
}
