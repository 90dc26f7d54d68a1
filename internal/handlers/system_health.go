package handlers

import (
	"context"
	"fmt"

	"github.com/lattice-signal/telemetry-engine/internal/consumer"
	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

// healthAlertType is the single per-entity alert type system-health
// transitions raise and resolve, so a later HEALTHY/RECOVERING signal
// clears whatever severity the entity last escalated to.
const healthAlertType = "SERVICE_UNHEALTHY"

type healthSpec struct {
	severity alerts.Severity
	resolves bool
}

var healthSpecs = map[events.Type]healthSpec{
	"HEALTHY":     {resolves: true},
	"DEGRADED":    {severity: alerts.Warning},
	"UNHEALTHY":   {severity: alerts.High},
	"CRITICAL":    {severity: alerts.Critical},
	"RECOVERING":  {resolves: true},
	"MAINTENANCE": {severity: alerts.Info},
	"UNKNOWN":     {severity: alerts.Info},
}

// SystemHealthHandler implements the System health family (spec §4.9): a
// direct component-status feed with no numeric metric, so transitions map
// straight onto alert severities instead of going through a threshold
// evaluator.
type SystemHealthHandler struct{}

// NewSystemHealthHandler builds the System health family handler.
func NewSystemHealthHandler() *SystemHealthHandler { return &SystemHealthHandler{} }

func (h *SystemHealthHandler) Family() events.Family { return events.FamilySystemHealth }

func (h *SystemHealthHandler) EventTypes() []events.Type {
	out := make([]events.Type, 0, len(healthSpecs))
	for t := range healthSpecs {
		out = append(out, t)
	}
	return out
}

func (h *SystemHealthHandler) Handle(ctx context.Context, env *events.Envelope) (*consumer.Outcome, error) {
	spec, ok := healthSpecs[env.Type]
	if !ok {
		return genericFallback(env), nil
	}
	entityID, err := requireEntity(env)
	if err != nil {
		return nil, err
	}

	out := &consumer.Outcome{
		Record: NewRecord(env, entityID, map[string]any{"status": string(env.Type)}),
	}
	if spec.resolves {
		out.Resolved = []consumer.ResolveRequest{{Type: healthAlertType, EntityID: entityID}}
		return out, nil
	}
	out.Alerts = []consumer.AlertRequest{{
		Type: healthAlertType, Severity: spec.severity, EntityID: entityID,
		Message: fmt.Sprintf("component %s reported %s", entityID, env.Type),
	}}
	return out, nil
}
