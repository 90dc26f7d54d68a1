package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

func TestPaymentProviderHandler_CriticalProviderDownTriggersFailoverAndPaging(t *testing.T) {
	h := NewPaymentProviderHandler()
	out, err := h.Handle(context.Background(), envelope(events.FamilyPaymentProviderStatus, "PROVIDER_DOWN", "stripe",
		map[string]any{"provider": "stripe"}))
	require.NoError(t, err)

	require.Len(t, out.Alerts, 1)
	assert.Equal(t, alerts.Critical, out.Alerts[0].Severity)
	require.Len(t, out.Derived, 2)
	assert.Equal(t, "critical-provider-down-alerts", out.Derived[0].Topic)
	assert.Equal(t, "provider-status-fallback-events", out.Derived[1].Topic)
}

func TestPaymentProviderHandler_NonCriticalProviderDownNoFailover(t *testing.T) {
	h := NewPaymentProviderHandler()
	out, err := h.Handle(context.Background(), envelope(events.FamilyPaymentProviderStatus, "PROVIDER_DOWN", "braintree",
		map[string]any{"provider": "braintree"}))
	require.NoError(t, err)

	require.Len(t, out.Alerts, 1)
	assert.Equal(t, alerts.High, out.Alerts[0].Severity)
	assert.Empty(t, out.Derived)
}

func TestPaymentProviderHandler_RecoveredResolvesBothAlertTypes(t *testing.T) {
	h := NewPaymentProviderHandler()
	out, err := h.Handle(context.Background(), envelope(events.FamilyPaymentProviderStatus, "PROVIDER_RECOVERED", "stripe",
		map[string]any{"provider": "stripe"}))
	require.NoError(t, err)
	require.Len(t, out.Resolved, 2)
}
