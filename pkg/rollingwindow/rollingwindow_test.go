package rollingwindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_StatsAndPercentile(t *testing.T) {
	s := New(Config{MaxSamples: 100, MaxAge: time.Hour})
	base := time.Now()
	for i, v := range []float64{10, 20, 30, 40, 50} {
		s.Record("svc-a", "latency_ms", v, base.Add(time.Duration(i)*time.Second))
	}

	stats := s.Stats("svc-a", "latency_ms")
	require.Equal(t, 5, stats.Count)
	assert.Equal(t, 30.0, stats.Mean)
	assert.Equal(t, 10.0, stats.Min)
	assert.Equal(t, 50.0, stats.Max)

	p50, ok := s.Percentile("svc-a", "latency_ms", 0.5)
	require.True(t, ok)
	assert.Equal(t, 30.0, p50)

	_, ok = s.Percentile("svc-a", "latency_ms", 0.42)
	assert.False(t, ok, "unsupported percentile should be rejected")
}

func TestStore_MaxSamplesEviction(t *testing.T) {
	s := New(Config{MaxSamples: 3, MaxAge: time.Hour})
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.Record("svc-a", "cpu", float64(i), base.Add(time.Duration(i)*time.Second))
	}
	assert.Equal(t, 3, s.Count("svc-a", "cpu"))
	samples := s.Samples("svc-a", "cpu")
	assert.Equal(t, []float64{2, 3, 4}, []float64{samples[0].Value, samples[1].Value, samples[2].Value})
}

func TestStore_MaxAgeEviction(t *testing.T) {
	s := New(Config{MaxSamples: 100, MaxAge: 10 * time.Millisecond})
	old := time.Now().Add(-time.Hour)
	s.Record("svc-a", "cpu", 1, old)
	s.Record("svc-a", "cpu", 2, time.Now())

	assert.Equal(t, 1, s.Count("svc-a", "cpu"), "stale sample should be filtered at query time")
}

func TestStore_Slope(t *testing.T) {
	s := New(Config{MaxSamples: 100, MaxAge: time.Hour})
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.Record("svc-a", "queue_depth", float64(i)*2, base.Add(time.Duration(i)*time.Second))
	}
	slope, ok := s.Slope("svc-a", "queue_depth")
	require.True(t, ok)
	assert.InDelta(t, 2.0, slope, 0.001)
}

func TestStore_EmptyWindow(t *testing.T) {
	s := New(DefaultConfig())
	assert.Equal(t, 0, s.Count("svc-x", "unknown"))
	assert.Equal(t, Stats{}, s.Stats("svc-x", "unknown"))
	_, ok := s.Slope("svc-x", "unknown")
	assert.False(t, ok)
}

func TestStore_Cleanup(t *testing.T) {
	s := New(Config{MaxSamples: 100, MaxAge: 5 * time.Millisecond})
	s.Record("svc-a", "cpu", 1, time.Now().Add(-time.Hour))
	time.Sleep(10 * time.Millisecond)
	s.Cleanup()

	s.mu.RLock()
	w := s.windows[key{entityID: "svc-a", metric: "cpu"}]
	s.mu.RUnlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	assert.Empty(t, w.samples)
}
