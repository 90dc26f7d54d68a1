package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/depgraph"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

func newTestEngines() *Engines {
	return &Engines{Graph: depgraph.New(), Now: time.Now}
}

func TestServiceDependencyHandler_FailureObservesEdgeAndRaisesAlert(t *testing.T) {
	eng := newTestEngines()
	h := NewServiceDependencyHandler(eng)

	out, err := h.Handle(context.Background(), envelope(events.FamilyServiceDependency, "DEPENDENCY_FAILURE", "checkout",
		map[string]any{"target": "payments"}))
	require.NoError(t, err)
	// The single failed call leaves the edge at a 0 success rate, so the
	// cascade check adds a second alert after DEPENDENCY_FAILURE.
	require.Len(t, out.Alerts, 2)
	assert.Equal(t, "DEPENDENCY_FAILURE", out.Alerts[0].Type)

	edge, ok := eng.Graph.Edge("checkout", "payments")
	require.True(t, ok)
	assert.EqualValues(t, 1, edge.Failure)
}

func TestServiceDependencyHandler_CascadeRiskEmitsDerivedEvent(t *testing.T) {
	eng := newTestEngines()
	h := NewServiceDependencyHandler(eng)
	ctx := context.Background()

	// Drive checkout->payments success rate below the unhealthy threshold so
	// a further failure at checkout is flagged as a cascade risk onto
	// payments.
	for i := 0; i < 3; i++ {
		eng.Graph.Observe("checkout", "payments", depgraph.CallStats{Success: false, At: time.Now()})
	}

	out, err := h.Handle(ctx, envelope(events.FamilyServiceDependency, "DEPENDENCY_FAILURE", "checkout",
		map[string]any{"target": "payments"}))
	require.NoError(t, err)

	require.Len(t, out.Derived, 1)
	assert.Equal(t, "cascading-failure-risks", out.Derived[0].Topic)

	var sawCritical bool
	for _, a := range out.Alerts {
		if a.Type == "CASCADING_FAILURE_RISK" {
			sawCritical = true
			assert.Equal(t, alerts.Critical, a.Severity)
		}
	}
	assert.True(t, sawCritical)
}

func TestServiceDependencyHandler_ServiceMapUpsertsService(t *testing.T) {
	eng := newTestEngines()
	h := NewServiceDependencyHandler(eng)

	_, err := h.Handle(context.Background(), envelope(events.FamilyServiceDependency, "SERVICE_MAP", "checkout",
		map[string]any{"criticality": 0.9, "isolated": false}))
	require.NoError(t, err)

	assert.Contains(t, eng.Graph.Services(), "checkout")
}

func TestServiceDependencyHandler_RecoveryResolvesAlert(t *testing.T) {
	eng := newTestEngines()
	h := NewServiceDependencyHandler(eng)

	out, err := h.Handle(context.Background(), envelope(events.FamilyServiceDependency, "RECOVERY", "checkout",
		map[string]any{"target": "payments"}))
	require.NoError(t, err)
	require.Len(t, out.Resolved, 1)
	assert.Equal(t, "DEPENDENCY_FAILURE", out.Resolved[0].Type)
}
