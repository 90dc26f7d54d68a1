// Package idempotency implements the Idempotency Cache (spec §4.2): a
// bounded map of eventKey -> firstSeenAt with a 24-hour TTL, backed by
// pkg/cache's generic TTL cache (which already does the size-triggered
// lazy sweep spec §4.2 calls for). Keys are hashed with blake2b before
// storage so that arbitrarily long (entityID, eventType, timestamp)
// composites cost a fixed amount of map memory.
package idempotency

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/lattice-signal/telemetry-engine/pkg/cache"
)

// DefaultTTL is the spec §6 `idempotency.ttlHours` default.
const DefaultTTL = 24 * time.Hour

// SizeTrigger is the spec §4.2 sweep watermark: "(> 1000 entries) walks
// the map and removes entries older than the TTL".
const SizeTrigger = 1000

// Cache is the consumer runtime's per-record replay guard.
type Cache struct {
	ttl    *cache.TTLCache
	ttlDur time.Duration
	mirror Mirror
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithMirror attaches a distributed mirror consulted on a local-cache miss,
// so two partition workers on different processes that both see an event
// within the same TTL window still agree on "already processed" (spec §4.2
// describes the cache as a single bounded map; a multi-process deployment
// of this engine needs a shared backstop behind it). See RedisMirror.
func WithMirror(m Mirror) Option {
	return func(c *Cache) { c.mirror = m }
}

// New creates an Idempotency Cache with the given TTL (0 uses DefaultTTL).
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		ttl:    cache.NewNamespacedTTLCache("idem:", cache.CacheConfig{
			DefaultTTL:      ttl,
			MaxSize:         SizeTrigger,
			CleanupInterval: time.Hour,
		}),
		ttlDur: ttl,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// hash reduces an event key to a fixed-size hex digest before storage.
func hash(eventKey string) string {
	sum := blake2b.Sum256([]byte(eventKey))
	return hex.EncodeToString(sum[:])
}

// Seen reports whether eventKey has already been processed within the TTL
// window, and its first-seen time if so (spec §4.1 step 3: "Check
// idempotency cache; if hit and within TTL, acknowledge and return"). On a
// local miss with a mirror configured, it consults the mirror before
// reporting unseen, so a replay delivered to a different process is still
// caught.
func (c *Cache) Seen(ctx context.Context, eventKey string) (time.Time, bool) {
	key := hash(eventKey)
	if v, ok := c.ttl.Get(ctx, key); ok {
		if t, ok := v.(time.Time); ok {
			return t, true
		}
	}
	if c.mirror == nil {
		return time.Time{}, false
	}
	t, ok := c.mirror.Seen(ctx, key)
	if ok {
		c.ttl.Set(ctx, key, t)
	}
	return t, ok
}

// MarkProcessed inserts eventKey into the cache with the current time as
// its first-seen timestamp (spec §4.1 step 5: "Insert eventKey into
// idempotency cache on success"), mirroring it to the distributed backstop
// when one is configured.
func (c *Cache) MarkProcessed(ctx context.Context, eventKey string, at time.Time) {
	key := hash(eventKey)
	c.ttl.Set(ctx, key, at)
	if c.mirror != nil {
		c.mirror.Mark(ctx, key, at, c.ttlDur)
	}
}

// Size returns the current entry count, used to decide whether an
// out-of-band sweep is warranted ahead of schedule.
func (c *Cache) Size() int {
	return c.ttl.Size()
}

// Sweep forces an immediate eviction pass.
func (c *Cache) Sweep() int {
	return c.ttl.Sweep()
}
