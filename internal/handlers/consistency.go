package handlers

import (
	"context"
	"fmt"

	"github.com/lattice-signal/telemetry-engine/internal/consumer"
	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

// consistencyAlertType is the single alert type every data-quality
// violation raises and CONSISTENCY_RESTORED clears (spec §4.9 Consistency
// alerts family: one active-issue state per entity, not one per violation
// kind).
const consistencyAlertType = "DATA_CONSISTENCY_VIOLATION"

// ConsistencyHandler implements the Consistency alerts family (spec §4.9):
// data-quality violations reported by upstream reconciliation jobs.
type ConsistencyHandler struct{}

// NewConsistencyHandler builds the Consistency alerts family handler.
func NewConsistencyHandler() *ConsistencyHandler { return &ConsistencyHandler{} }

func (h *ConsistencyHandler) Family() events.Family { return events.FamilyConsistencyAlerts }

func (h *ConsistencyHandler) EventTypes() []events.Type {
	return []events.Type{
		"DATA_MISMATCH", "REFERENTIAL_INTEGRITY_VIOLATION", "DUPLICATE_RECORDS",
		"ORPHANED_RECORDS", "CHECKSUM_MISMATCH", "CROSS_SYSTEM_INCONSISTENCY",
		"TEMPORAL_INCONSISTENCY", "SCHEMA_DRIFT", "CONSISTENCY_RESTORED",
	}
}

func (h *ConsistencyHandler) Handle(ctx context.Context, env *events.Envelope) (*consumer.Outcome, error) {
	entityID, err := requireEntity(env)
	if err != nil {
		return nil, err
	}

	out := &consumer.Outcome{
		Record: NewRecord(env, entityID, map[string]any{"violation": string(env.Type)}),
	}

	if env.Type == "CONSISTENCY_RESTORED" {
		out.Resolved = []consumer.ResolveRequest{{Type: consistencyAlertType, EntityID: entityID}}
		return out, nil
	}

	severity := alerts.High
	if env.Type == "SCHEMA_DRIFT" {
		severity = alerts.Warning
	}
	out.Alerts = []consumer.AlertRequest{{
		Type: consistencyAlertType, Severity: severity, EntityID: entityID,
		Message: fmt.Sprintf("%s detected for %s", env.Type, entityID),
	}}
	out.Derived = []events.Derived{{
		Topic: "data-quality-events", Type: string(env.Type), EntityID: entityID,
		CorrelationID: env.CorrelationID, Timestamp: env.Timestamp, Payload: payload(env),
	}}
	return out, nil
}
