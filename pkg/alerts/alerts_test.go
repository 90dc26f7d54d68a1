package alerts

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu        sync.Mutex
	dispatched []Alert
	mirrored   []Alert
}

func (f *fakeSink) Dispatch(a Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, a)
	return nil
}

func (f *fakeSink) MirrorToMonitoring(a Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mirrored = append(f.mirrored, a)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dispatched)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestManager_ChannelRouting(t *testing.T) {
	cases := []struct {
		severity Severity
		want     []Channel
	}{
		{Info, []Channel{ChatChannel}},
		{Warning, []Channel{ChatChannel, EmailChannel}},
		{High, []Channel{ChatChannel, EmailChannel, PagingChannel}},
		{Critical, []Channel{ChatChannel, EmailChannel, SMSChannel, PagingChannel}},
	}
	for _, c := range cases {
		a := Alert{Severity: c.severity}
		assert.Equal(t, c.want, a.Channels())
	}
}

func TestManager_CooldownSuppression(t *testing.T) {
	sink := &fakeSink{}
	clock := &fakeClock{now: time.Now()}
	m := New(sink, WithClock(clock.Now))

	_, raised := m.Raise("CPU_HIGH", Critical, "svc-a", "cpu hot")
	assert.True(t, raised)
	assert.Equal(t, 1, sink.count())

	_, raised = m.Raise("CPU_HIGH", Critical, "svc-a", "cpu hot again")
	assert.False(t, raised, "second raise within cooldown must be suppressed")
	assert.Equal(t, 1, sink.count())

	clock.Advance(CriticalCooldown + time.Second)
	_, raised = m.Raise("CPU_HIGH", Critical, "svc-a", "cpu hot yet again")
	assert.True(t, raised, "raise after cooldown expiry must go through")
	assert.Equal(t, 2, sink.count())
}

func TestManager_DifferentEntitiesIndependent(t *testing.T) {
	sink := &fakeSink{}
	m := New(sink)

	_, r1 := m.Raise("CPU_HIGH", Warning, "svc-a", "x")
	_, r2 := m.Raise("CPU_HIGH", Warning, "svc-b", "x")
	assert.True(t, r1)
	assert.True(t, r2)
	assert.Equal(t, 2, sink.count())
}

func TestManager_ResolveClearsAndCooldowns(t *testing.T) {
	sink := &fakeSink{}
	clock := &fakeClock{now: time.Now()}
	m := New(sink, WithClock(clock.Now))

	m.Raise("CPU_HIGH", Warning, "svc-a", "x")
	_, ok := m.Active("CPU_HIGH", "svc-a")
	require.True(t, ok)

	resolved, ok := m.Resolve("CPU_HIGH", "svc-a")
	require.True(t, ok)
	require.NotNil(t, resolved.ResolvedAt)

	_, ok = m.Active("CPU_HIGH", "svc-a")
	assert.False(t, ok, "resolved alert is no longer active")

	// re-raise still inside the resolved alert's cooldown window is suppressed.
	_, raised := m.Raise("CPU_HIGH", Warning, "svc-a", "x again")
	assert.False(t, raised)

	_, ok = m.Resolve("CPU_HIGH", "svc-a")
	assert.False(t, ok, "resolving an already-resolved alert is a no-op")
}

func TestManager_ResolveWithNoActiveAlertIsNoop(t *testing.T) {
	m := New(&fakeSink{})
	_, ok := m.Resolve("UNKNOWN", "svc-a")
	assert.False(t, ok)
}
