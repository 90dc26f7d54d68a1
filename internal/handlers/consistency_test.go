package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

func TestConsistencyHandler_ViolationRaisesHighAlertAndDerivedEvent(t *testing.T) {
	h := NewConsistencyHandler()
	out, err := h.Handle(context.Background(), envelope(events.FamilyConsistencyAlerts, "DATA_MISMATCH", "order-1", nil))
	require.NoError(t, err)

	require.Len(t, out.Alerts, 1)
	assert.Equal(t, consistencyAlertType, out.Alerts[0].Type)
	assert.Equal(t, alerts.High, out.Alerts[0].Severity)
	require.Len(t, out.Derived, 1)
	assert.Equal(t, "data-quality-events", out.Derived[0].Topic)
}

func TestConsistencyHandler_SchemaDriftIsWarningSeverity(t *testing.T) {
	h := NewConsistencyHandler()
	out, err := h.Handle(context.Background(), envelope(events.FamilyConsistencyAlerts, "SCHEMA_DRIFT", "order-1", nil))
	require.NoError(t, err)
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, alerts.Warning, out.Alerts[0].Severity)
}

func TestConsistencyHandler_RestoredResolves(t *testing.T) {
	h := NewConsistencyHandler()
	out, err := h.Handle(context.Background(), envelope(events.FamilyConsistencyAlerts, "CONSISTENCY_RESTORED", "order-1", nil))
	require.NoError(t, err)
	require.Len(t, out.Resolved, 1)
	assert.Equal(t, consistencyAlertType, out.Resolved[0].Type)
	assert.Empty(t, out.Alerts)
	assert.Empty(t, out.Derived)
}
