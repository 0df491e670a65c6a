package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/stagehand/backline/internal/lifecycle"
	"github.com/stagehand/backline/internal/logging"
)

// ListCache is a read-through cache for list responses, keyed by entity
// kind plus a digest of the raw filter input. Invalidation is
// event-driven and tag-based: any lifecycle event for an entity drops
// every cached list of that entity.
type ListCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *ListCache {
	return &ListCache{Client: client, TTL: ttl}
}

// Key digests the raw query string so arbitrary filter input never
// lands in a redis key verbatim.
func Key(entity, rawQuery string) string {
	sum := sha256.Sum256([]byte(rawQuery))
	return "list:" + entity + ":" + hex.EncodeToString(sum[:8])
}

func (c *ListCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.Client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *ListCache) Set(ctx context.Context, key string, payload []byte) {
	if err := c.Client.Set(ctx, key, payload, c.TTL).Err(); err != nil {
		logging.FromContext(ctx).Warn("cache_set_failed", "key", key, "error", err)
	}
}

// InvalidateEntity drops every cached list for the entity kind.
func (c *ListCache) InvalidateEntity(ctx context.Context, entity string) {
	keys, err := c.Client.Keys(ctx, "list:"+entity+":*").Result()
	if err != nil {
		logging.FromContext(ctx).Warn("cache_invalidate_failed", "entity", entity, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.Client.Del(ctx, keys...).Err(); err != nil {
		logging.FromContext(ctx).Warn("cache_invalidate_failed", "entity", entity, "error", err)
	}
}

// Subscriber reacts to committed lifecycle events. Consumers tolerate
// the brief staleness window between commit and invalidation.
func Subscriber(c *ListCache) lifecycle.Subscriber {
	return func(ctx context.Context, ev lifecycle.Event) {
		c.InvalidateEntity(ctx, ev.Entity)
	}
}
