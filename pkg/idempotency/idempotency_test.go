package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SeenAfterMark(t *testing.T) {
	c := New(time.Hour)
	ctx := context.Background()

	_, ok := c.Seen(ctx, "entity1|PAGE_LOAD|123")
	assert.False(t, ok)

	now := time.Now()
	c.MarkProcessed(ctx, "entity1|PAGE_LOAD|123", now)

	seenAt, ok := c.Seen(ctx, "entity1|PAGE_LOAD|123")
	require.True(t, ok)
	assert.WithinDuration(t, now, seenAt, time.Millisecond)
}

func TestCache_ReplaySuppression(t *testing.T) {
	c := New(time.Hour)
	ctx := context.Background()
	key := "s1|PAGE_LOAD|1000"

	_, ok := c.Seen(ctx, key)
	assert.False(t, ok, "first delivery is not yet in the cache")
	c.MarkProcessed(ctx, key, time.Now())

	_, ok = c.Seen(ctx, key)
	assert.True(t, ok, "replayed delivery must hit the cache")
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New(5 * time.Millisecond)
	ctx := context.Background()
	c.MarkProcessed(ctx, "k", time.Now())

	time.Sleep(15 * time.Millisecond)
	_, ok := c.Seen(ctx, "k")
	assert.False(t, ok, "entry should have expired")
}

func TestCache_DifferentKeysIndependent(t *testing.T) {
	c := New(time.Hour)
	ctx := context.Background()
	c.MarkProcessed(ctx, "a", time.Now())

	_, ok := c.Seen(ctx, "b")
	assert.False(t, ok)
}
