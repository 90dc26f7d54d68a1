package depgraph

import (
	"testing"
	"time"

	"github.com/lattice-signal/telemetry-engine/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_ObserveAndInvariants(t *testing.T) {
	g := New()
	now := time.Now()

	g.Observe("serviceA", "checkout", CallStats{Success: true, At: now})
	g.Observe("serviceA", "checkout", CallStats{Success: false, At: now})

	e, ok := g.Edge("serviceA", "checkout")
	require.True(t, ok)
	assert.Equal(t, int64(2), e.Calls)
	assert.LessOrEqual(t, e.Success+e.Failure, e.Calls)

	services := g.Services()
	assert.Contains(t, services, "serviceA")
	assert.Contains(t, services, "checkout")
}

func TestGraph_ConsecutiveFailuresResetOnSuccess(t *testing.T) {
	g := New()
	now := time.Now()
	for i := 0; i < 5; i++ {
		g.Observe("serviceA", "/checkout", CallStats{Success: false, At: now})
	}
	assert.Equal(t, int64(5), g.Failures("serviceA", "/checkout"))

	g.Observe("serviceA", "/checkout", CallStats{Success: true, At: now})
	assert.Equal(t, int64(0), g.Failures("serviceA", "/checkout"), "a single success must reset the counter")
}

func TestGraph_CircuitBreakerTrip(t *testing.T) {
	g := New()
	now := time.Now()
	// default breaker window is 10 events at a 50% failure rate; a full
	// window of failures, with the last event a failure, trips it.
	for i := 0; i < 10; i++ {
		g.Observe("serviceA", "/checkout", CallStats{Success: false, At: now})
	}
	e, ok := g.Edge("serviceA", "/checkout")
	require.True(t, ok)
	assert.Equal(t, resilience.StateOpen, e.Breaker.State())

	g.Observe("serviceA", "/checkout", CallStats{Success: true, At: now})
	assert.Equal(t, int64(0), g.Failures("serviceA", "/checkout"), "consecutive-failure counter still resets on success")
}

func TestGraph_IsRoot(t *testing.T) {
	g := New()
	now := time.Now()
	g.Observe("A", "B", CallStats{Success: true, At: now})

	assert.True(t, g.IsRoot("A"))
	assert.False(t, g.IsRoot("B"))
}

func TestGraph_CascadeDetection(t *testing.T) {
	// A -> B, A -> C, B -> D, C -> D; B fails, D should be at cascade risk.
	g := New()
	now := time.Now()
	g.Observe("A", "B", CallStats{Success: true, At: now})
	g.Observe("A", "C", CallStats{Success: true, At: now})
	g.Observe("C", "D", CallStats{Success: true, At: now})

	for i := 0; i < 10; i++ {
		g.Observe("B", "D", CallStats{Success: false, At: now})
	}

	risk := g.CascadeRisk("B")
	assert.True(t, risk["D"])
	assert.False(t, risk["C"], "C's edge to D is healthy and must not appear")
}

func TestGraph_PathsRespectIsolationAndMaxDepth(t *testing.T) {
	g := New()
	now := time.Now()
	g.Observe("A", "B", CallStats{Success: true, At: now})
	g.Observe("B", "C", CallStats{Success: true, At: now})
	g.UpsertService("C", 0, true, now) // isolated

	paths := g.Paths("A", 5)
	for _, p := range paths {
		for _, v := range p {
			assert.NotEqual(t, "C", v, "isolated vertex must be excluded from enumeration")
		}
	}
}

func TestGraph_CriticalPath(t *testing.T) {
	g := New()
	now := time.Now()
	// A -> B (healthy), A -> C (mostly failing)
	for i := 0; i < 8; i++ {
		g.Observe("A", "B", CallStats{Success: true, At: now})
	}
	for i := 0; i < 8; i++ {
		g.Observe("A", "C", CallStats{Success: i < 2, At: now})
	}

	result, ok := g.CriticalPath("A")
	require.True(t, ok)
	assert.Contains(t, result.Path, "C")
	assert.Equal(t, "C", result.Bottleneck)
}

func TestEdge_SuccessRateUndefinedWithoutCalls(t *testing.T) {
	e := Edge{}
	_, ok := e.SuccessRate()
	assert.False(t, ok)
}
