package idempotency

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Mirror is a distributed backstop consulted on a local cache miss. It lets
// the Idempotency Cache survive a process restart or a multi-instance
// deployment without re-delivering already-processed events.
type Mirror interface {
	Seen(ctx context.Context, key string) (time.Time, bool)
	Mark(ctx context.Context, key string, at time.Time, ttl time.Duration)
}

// RedisMirror backs Mirror with a Redis key per event, value the
// first-seen unix nanosecond timestamp, expiring with the same TTL as the
// local cache so the two never disagree about a key's lifetime.
type RedisMirror struct {
	client *redis.Client
}

// NewRedisMirror wraps an existing go-redis client.
func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{client: client}
}

func (m *RedisMirror) Seen(ctx context.Context, key string) (time.Time, bool) {
	v, err := m.client.Get(ctx, "idem:"+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// Treat a transient Redis error as "unseen" rather than blocking
			// the consumer runtime on the mirror's availability; the local
			// cache and durable store's dedup are still the primary guard.
		}
		return time.Time{}, false
	}
	nanos, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, nanos).UTC(), true
}

func (m *RedisMirror) Mark(ctx context.Context, key string, at time.Time, ttl time.Duration) {
	_ = m.client.Set(ctx, "idem:"+key, at.UnixNano(), ttl).Err()
}
