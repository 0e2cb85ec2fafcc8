package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/linkup/linkup/backend/go-services/pkg/logger"
	"github.com/linkup/linkup/backend/go-services/pkg/metrics"
)

// Invalidate deletes keys in one pipeline. Duplicates are dropped; per-key
// failures are logged and TTL expiry takes over.
func (c *Cache) Invalidate(ctx context.Context, keys ...Key) {
	if !c.enabled() {
		return
	}
	keys = Dedupe(keys)
	if len(keys) == 0 {
		return
	}
	cmds, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Del(ctx, k.Name)
		}
		return nil
	})
	if err != nil && len(cmds) == 0 {
		logger.Warnw("cache invalidation failed", "keys", len(keys), "err", err)
		return
	}
	for i, cmd := range cmds {
		if i >= len(keys) {
			break
		}
		if cerr := cmd.Err(); cerr != nil {
			logger.Warnw("cache invalidation failed", "key", keys[i].Name, "err", cerr)
			continue
		}
		metrics.CacheInvalidations.WithLabelValues(keys[i].Family).Inc()
	}
}

// Dedupe keeps the first occurrence of every non-zero key.
func Dedupe(keys []Key) []Key {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0:0]
	for _, k := range keys {
		if k.IsZero() {
			continue
		}
		if _, ok := seen[k.Name]; ok {
			continue
		}
		seen[k.Name] = struct{}{}
		out = append(out, k)
	}
	return out
}

// ConnectionLister resolves the accepted connections of a user.
type ConnectionLister interface {
	ConnectionIDs(ctx context.Context, userID string) ([]string, error)
}

// Feeds returns the feed keys of userID and every connection of userID.
// When the connection lookup fails only the user's own feed is returned and
// the rest is left to TTL.
func Feeds(ctx context.Context, dir ConnectionLister, userID string) []Key {
	keys := []Key{FeedPosts(userID)}
	if dir == nil {
		return keys
	}
	ids, err := dir.ConnectionIDs(ctx, userID)
	if err != nil {
		logger.Errorw("feed fan-out lookup failed", "userID", userID, "err", err)
		return keys
	}
	for _, id := range ids {
		keys = append(keys, FeedPosts(id))
	}
	return keys
}
