package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-signal/telemetry-engine/pkg/baseline"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
	"github.com/lattice-signal/telemetry-engine/pkg/rollingwindow"
	"github.com/lattice-signal/telemetry-engine/pkg/threshold"
)

func TestPerformanceMetricsHandler_SlowRequestTriggersDerivedEventAndAlert(t *testing.T) {
	eng := &Engines{
		Windows: rollingwindow.New(rollingwindow.DefaultConfig()),
		Now:     time.Now,
	}
	h := NewPerformanceMetricsHandler(eng)

	out, err := h.Handle(context.Background(), envelope(events.FamilyPerformanceMetrics, "REQUEST_COMPLETED", "svc-a",
		map[string]any{"duration_ms": 6000.0}))
	require.NoError(t, err)

	require.Len(t, out.Derived, 1)
	assert.Equal(t, "SLOW_RESPONSE", out.Derived[0].Type)
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, "SLOW_RESPONSE", out.Alerts[0].Type)
}

func TestPerformanceMetricsHandler_FastRequestNoDerivedEvent(t *testing.T) {
	eng := &Engines{Windows: rollingwindow.New(rollingwindow.DefaultConfig()), Now: time.Now}
	h := NewPerformanceMetricsHandler(eng)

	out, err := h.Handle(context.Background(), envelope(events.FamilyPerformanceMetrics, "REQUEST_COMPLETED", "svc-a",
		map[string]any{"duration_ms": 50.0}))
	require.NoError(t, err)
	assert.Empty(t, out.Derived)
	assert.Empty(t, out.Alerts)
}

func TestPerformanceMetricsHandler_RequestStartedPersistsInProgress(t *testing.T) {
	eng := &Engines{Now: time.Now}
	h := NewPerformanceMetricsHandler(eng)

	out, err := h.Handle(context.Background(), envelope(events.FamilyPerformanceMetrics, "REQUEST_STARTED", "svc-a", nil))
	require.NoError(t, err)
	rec, ok := out.Record.(Record)
	require.True(t, ok)
	assert.Equal(t, "IN_PROGRESS", rec.Status)
}

func TestPerformanceMetricsHandler_ThresholdTransitionRaisesAlert(t *testing.T) {
	thresholds := threshold.New()
	thresholds.Configure("svc-a", "db_query_duration_ms", threshold.Set{Warning: 500, Critical: 2000, Direction: threshold.Upper})
	eng := &Engines{
		Windows:    rollingwindow.New(rollingwindow.DefaultConfig()),
		Thresholds: thresholds,
		Now:        time.Now,
	}
	h := NewPerformanceMetricsHandler(eng)

	out, err := h.Handle(context.Background(), envelope(events.FamilyPerformanceMetrics, "DATABASE_QUERY", "svc-a",
		map[string]any{"duration_ms": 2500.0}))
	require.NoError(t, err)

	var sawCritical bool
	for _, a := range out.Alerts {
		if a.Type == "DB_QUERY_DURATION_MS" {
			sawCritical = true
		}
	}
	assert.True(t, sawCritical)
}

func TestPerformanceMetricsHandler_AnomalyDetection(t *testing.T) {
	eng := &Engines{
		Windows:   rollingwindow.New(rollingwindow.DefaultConfig()),
		Baselines: baseline.New(),
		Now:       time.Now,
	}
	h := NewPerformanceMetricsHandler(eng)

	for i := 0; i < 30; i++ {
		v := 0.94
		if i%2 == 0 {
			v = 0.96
		}
		_, err := h.Handle(context.Background(), envelope(events.FamilyPerformanceMetrics, "CACHE_OPERATION", "svc-a",
			map[string]any{"hit_rate": v}))
		require.NoError(t, err)
	}

	out, err := h.Handle(context.Background(), envelope(events.FamilyPerformanceMetrics, "CACHE_OPERATION", "svc-a",
		map[string]any{"hit_rate": 0.05}))
	require.NoError(t, err)

	var sawAnomaly bool
	for _, a := range out.Alerts {
		if a.Type == "ANOMALY_DETECTED" {
			sawAnomaly = true
		}
	}
	assert.True(t, sawAnomaly)
}

func TestMetricFamilyHandler_UnknownEventTypeFallsBack(t *testing.T) {
	eng := &Engines{Now: time.Now}
	h := NewPerformanceMetricsHandler(eng)

	out, err := h.Handle(context.Background(), envelope(events.FamilyPerformanceMetrics, "NOT_A_REAL_TYPE", "svc-a", nil))
	require.NoError(t, err)
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, "UNRECOGNIZED_EVENT_TYPE", out.Alerts[0].Type)
}
