package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	eventKeyPrefix = "webhook:event:"
	eventTTL       = 24 * time.Hour
)

// EventCache is a fast-path duplicate filter for webhook event ids. The
// durable idempotency decision is made against the webhook log table; this
// only short-circuits obvious replays without a DB round trip. Cache errors
// are logged and treated as a miss so Redis outages never block ingest.
type EventCache struct {
	redis *RedisClient
}

// NewEventCache constructs an EventCache.
func NewEventCache(redis *RedisClient) *EventCache {
	return &EventCache{redis: redis}
}

// MarkSeen records an event id. Returns true if this is the first sighting.
func (c *EventCache) MarkSeen(ctx context.Context, eventID string) bool {
	if c == nil || c.redis == nil || eventID == "" {
		return true
	}
	first, err := c.redis.SetNX(ctx, eventKeyPrefix+eventID, "1", eventTTL)
	if err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Msg("event cache unavailable, falling through to log table")
		return true
	}
	return first
}

// Forget drops an event id, allowing the next delivery to be reprocessed.
// Used when processing fails and the sender should be able to retry.
func (c *EventCache) Forget(ctx context.Context, eventID string) {
	if c == nil || c.redis == nil || eventID == "" {
		return
	}
	if err := c.redis.Delete(ctx, eventKeyPrefix+eventID); err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Msg("failed to drop cached event id")
	}
}
