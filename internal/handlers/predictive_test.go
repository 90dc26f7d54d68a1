package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
	"github.com/lattice-signal/telemetry-engine/pkg/rollingwindow"
)

func TestPredictiveAnalyticsHandler_FraudAboveThresholdRaisesCriticalAndHoldsTransaction(t *testing.T) {
	eng := &Engines{Now: time.Now}
	h := NewPredictiveAnalyticsHandler(eng)

	out, err := h.Handle(context.Background(), envelope(events.FamilyPredictiveAnalytics, "FRAUD_PREDICTION", "txn-1",
		map[string]any{"fraud_probability": 0.9}))
	require.NoError(t, err)

	require.Len(t, out.Alerts, 1)
	assert.Equal(t, alerts.Critical, out.Alerts[0].Severity)
	require.Len(t, out.Derived, 1)
	assert.Equal(t, "fraud-blocking", out.Derived[0].Topic)
}

func TestPredictiveAnalyticsHandler_FraudBelowThresholdIsSilent(t *testing.T) {
	eng := &Engines{Now: time.Now}
	h := NewPredictiveAnalyticsHandler(eng)

	out, err := h.Handle(context.Background(), envelope(events.FamilyPredictiveAnalytics, "FRAUD_PREDICTION", "txn-2",
		map[string]any{"fraud_probability": 0.2}))
	require.NoError(t, err)
	assert.Empty(t, out.Alerts)
	assert.Empty(t, out.Derived)
}

func TestPredictiveAnalyticsHandler_CapacityPredictionNearExhaustionScalesUp(t *testing.T) {
	now := time.Now()
	eng := &Engines{Now: func() time.Time { return now }}
	h := NewPredictiveAnalyticsHandler(eng)

	env := envelope(events.FamilyPredictiveAnalytics, "CAPACITY_PREDICTION", "cluster-1", map[string]any{
		"confidence":    0.9,
		"exhaustion_at": now.Add(12 * time.Hour).Format(time.RFC3339),
	})
	env.Timestamp = now

	out, err := h.Handle(context.Background(), env)
	require.NoError(t, err)
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, "CAPACITY_EXHAUSTION", out.Alerts[0].Type)
	require.Len(t, out.Derived, 1)
	assert.Equal(t, "auto-scaling-triggers", out.Derived[0].Topic)
}

func TestPredictiveAnalyticsHandler_ModelPerformanceRecordsAccuracy(t *testing.T) {
	windows := rollingwindow.New(rollingwindow.DefaultConfig())
	eng := &Engines{Windows: windows, Now: time.Now}
	h := NewPredictiveAnalyticsHandler(eng)

	_, err := h.Handle(context.Background(), envelope(events.FamilyPredictiveAnalytics, "MODEL_PERFORMANCE", "model-a",
		map[string]any{"model": "model-a", "accuracy": 0.72}))
	require.NoError(t, err)

	stats := windows.Stats("model-a", "model_accuracy")
	require.Equal(t, 1, stats.Count)
	assert.InDelta(t, 0.72, stats.Mean, 0.001)
}

func TestPredictiveAnalyticsHandler_PassiveForecastNeverAlerts(t *testing.T) {
	eng := &Engines{Now: time.Now}
	h := NewPredictiveAnalyticsHandler(eng)

	out, err := h.Handle(context.Background(), envelope(events.FamilyPredictiveAnalytics, "TREND_ANALYSIS", "metric-1", nil))
	require.NoError(t, err)
	assert.Empty(t, out.Alerts)
}
