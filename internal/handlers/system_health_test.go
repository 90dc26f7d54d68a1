package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

func envelope(family events.Family, typ events.Type, entityID string, p map[string]any) *events.Envelope {
	return &events.Envelope{
		Family: family, Type: typ, EntityID: entityID, Timestamp: time.Now(),
		CorrelationID: "corr-1", Payload: p,
	}
}

func TestSystemHealthHandler_CriticalRaisesAlert(t *testing.T) {
	h := NewSystemHealthHandler()
	out, err := h.Handle(context.Background(), envelope(events.FamilySystemHealth, "CRITICAL", "svc-a", nil))
	require.NoError(t, err)
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, healthAlertType, out.Alerts[0].Type)
	assert.Equal(t, alerts.Critical, out.Alerts[0].Severity)
}

func TestSystemHealthHandler_HealthyResolves(t *testing.T) {
	h := NewSystemHealthHandler()
	out, err := h.Handle(context.Background(), envelope(events.FamilySystemHealth, "HEALTHY", "svc-a", nil))
	require.NoError(t, err)
	require.Len(t, out.Resolved, 1)
	assert.Equal(t, healthAlertType, out.Resolved[0].Type)
	assert.Empty(t, out.Alerts)
}

func TestSystemHealthHandler_MissingEntityIDErrors(t *testing.T) {
	h := NewSystemHealthHandler()
	_, err := h.Handle(context.Background(), envelope(events.FamilySystemHealth, "DEGRADED", "", nil))
	assert.Error(t, err)
}

func TestSystemHealthHandler_UnknownTypeFallsBack(t *testing.T) {
	h := NewSystemHealthHandler()
	out, err := h.Handle(context.Background(), envelope(events.FamilySystemHealth, "BOGUS", "svc-a", nil))
	require.NoError(t, err)
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, "UNRECOGNIZED_EVENT_TYPE", out.Alerts[0].Type)
}
