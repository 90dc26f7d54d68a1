package emitter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []struct {
		Channel string
		Payload interface{}
	}
}

func (r *recordingPublisher) Publish(ctx context.Context, channel string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, struct {
		Channel string
		Payload interface{}
	}{channel, payload})
	return nil
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.published)
}

func TestEmitter_EmitPublishesToCorrectTopic(t *testing.T) {
	pub := &recordingPublisher{}
	e := New(pub, 0, 0)

	d := Derived("cpu-scaling-requests", "SCALE_UP", "svc-a", "corr-1", time.Now(), map[string]any{"cpu": 0.95})
	require.NoError(t, e.Emit(context.Background(), d))

	require.Equal(t, 1, pub.count())
	assert.Equal(t, "cpu-scaling-requests", pub.published[0].Channel)
}

func TestOutbox_BufferAndFlush(t *testing.T) {
	pub := &recordingPublisher{}
	e := New(pub, 0, 0)

	ob := &Outbox{}
	ob.Buffer(Derived("performance-alerts", "SLOW_RESPONSE", "svc-a", "corr-1", time.Now(), nil))
	ob.Buffer(Derived("slow-query-alerts", "SLOW_QUERY", "svc-a", "corr-1", time.Now(), nil))

	assert.Len(t, ob.Events(), 2)
	require.NoError(t, e.Flush(context.Background(), ob))
	assert.Equal(t, 2, pub.count())
}

func TestDerived_StampsRequiredFields(t *testing.T) {
	now := time.Now()
	d := Derived("topic", "TYPE", "entity-1", "corr-9", now, nil)
	assert.Equal(t, "entity-1", d.EntityID)
	assert.Equal(t, "corr-9", d.CorrelationID)
	assert.Equal(t, now, d.Timestamp)
	assert.NotNil(t, d.Payload)
}

func TestEmitter_RateLimiting(t *testing.T) {
	pub := &recordingPublisher{}
	e := New(pub, 1000, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	d := Derived("api-circuit-breaker", "TRIP_CIRCUIT_BREAKER", "svc-a", "corr-1", time.Now(), nil)
	require.NoError(t, e.Emit(ctx, d))
	require.NoError(t, e.Emit(ctx, d))
	assert.Equal(t, 2, pub.count())
}
