// Package rediscache caches the available-donations listing in Redis. Every
// lifecycle transition invalidates the cached listing, so readers see at
// worst one TTL window of staleness and never a claimed donation reported as
// available past the invalidation.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/mealbridge/mealbridge/internal/app/domain/donation"
	"github.com/mealbridge/mealbridge/internal/logging"
)

const availableKey = "donations:available"

// DefaultTTL bounds staleness when an invalidation is lost.
const DefaultTTL = 30 * time.Second

// Cache is a read-through cache for donation listings. A nil *Cache is valid
// and disables caching.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logging.Logger
}

// New builds a cache around an existing Redis client.
func New(client *redis.Client, ttl time.Duration, log *logging.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logging.NewDefault("rediscache")
	}
	return &Cache{client: client, ttl: ttl, log: log}
}

// GetAvailable returns the cached listing and whether it was present. Cache
// faults degrade to a miss; the caller falls through to the store.
func (c *Cache) GetAvailable(ctx context.Context) ([]donation.Donation, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, availableKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithContext(ctx).WithError(err).Warn("cache read failed")
		}
		return nil, false
	}
	var listing []donation.Donation
	if err := json.Unmarshal(raw, &listing); err != nil {
		c.log.WithContext(ctx).WithError(err).Warn("cache entry corrupt, dropping")
		_ = c.client.Del(ctx, availableKey).Err()
		return nil, false
	}
	return listing, true
}

// SetAvailable stores the listing. Best-effort; a write fault only costs the
// next reader a store round trip.
func (c *Cache) SetAvailable(ctx context.Context, listing []donation.Donation) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(listing)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, availableKey, raw, c.ttl).Err(); err != nil {
		c.log.WithContext(ctx).WithError(err).Warn("cache write failed")
	}
}

// Invalidate drops the cached listing. Called after every donation create or
// transition.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, availableKey).Err(); err != nil {
		c.log.WithContext(ctx).WithError(err).Warn("cache invalidation failed")
	}
}
