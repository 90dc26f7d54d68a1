// Package handlers implements the family handlers (spec §4.9): one per
// event family, each following the same five-step contract (validate,
// parse, update state, evaluate, persist) while dispatching on eventType
// with a plain switch, per spec §9's "keep that shape" guidance. Three
// families whose event types are fundamentally metric observations
// (Performance metrics, Performance monitoring, Resource utilization) share
// a single table-driven MetricFamilyHandler; the remaining families have
// bespoke handlers for their non-metric state machines.
package handlers

import (
	"fmt"
	"time"

	"github.com/lattice-signal/telemetry-engine/internal/consumer"
	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/baseline"
	"github.com/lattice-signal/telemetry-engine/pkg/corekit"
	engerrors "github.com/lattice-signal/telemetry-engine/pkg/errors"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
	"github.com/lattice-signal/telemetry-engine/pkg/depgraph"
	"github.com/lattice-signal/telemetry-engine/pkg/rollingwindow"
	"github.com/lattice-signal/telemetry-engine/pkg/threshold"
	"github.com/lattice-signal/telemetry-engine/pkg/uxscore"
)

// Engines bundles the analytical state engines every family handler reads
// and writes. Handlers never hold their own copies of this state (spec §3
// "Ownership") — they call into these engines and translate the returned
// signals into alerts and derived events.
type Engines struct {
	Windows    *rollingwindow.Store
	Baselines  *baseline.Engine
	Thresholds *threshold.Evaluator
	Graph      *depgraph.Graph
	UX         *uxscore.Tracker
	Now        func() time.Time
}

func (e *Engines) now() time.Time {
	if e == nil || e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Record is the narrow persisted row every family writes (spec §3
// "Persisted-record shapes"): entity, timestamp, correlation id,
// family-specific fields, and optional status for long-running records
// (REQUEST_STARTED with no matching REQUEST_COMPLETED, per SPEC_FULL.md
// §9A, stays IN_PROGRESS).
type Record struct {
	Family        events.Family
	EventType     events.Type
	EntityID      string
	Timestamp     time.Time
	CorrelationID string
	Status        string
	Fields        map[string]any
}

// NewRecord builds the common persisted-record shape for an envelope.
func NewRecord(env *events.Envelope, entityID string, fields map[string]any) Record {
	return Record{
		Family:        env.Family,
		EventType:     env.Type,
		EntityID:      entityID,
		Timestamp:     env.Timestamp,
		CorrelationID: env.CorrelationID,
		Fields:        fields,
	}
}

// requireEntity enforces spec §4.9 step 1 ("validate required fields;
// emit INVALID_FORMAT... on failure" — generalized here to
// VALIDATION_FAILURE, since the envelope itself already parsed).
func requireEntity(env *events.Envelope) (string, error) {
	id, err := corekit.RequireAndTrim(env.EntityID, "entity_id")
	if err != nil {
		return "", engerrors.ValidationFailure("entity_id", "entity_id is required")
	}
	return id, nil
}

// payload returns the envelope's decoded payload as a generic field map, or
// nil if it wasn't decoded into that shape.
func payload(env *events.Envelope) map[string]any {
	if p, ok := env.Payload.(map[string]any); ok {
		return p
	}
	return nil
}

// translateTransition converts a threshold.Transition into the alert/resolve
// requests the runtime's transactional envelope applies on commit (spec
// §4.5: "Each transition produces an event to the Alert Manager... OK ->
// RESOLVED").
func translateTransition(tr *threshold.Transition, alertType string) ([]consumer.AlertRequest, []consumer.ResolveRequest) {
	if tr == nil {
		return nil, nil
	}
	if tr.To == threshold.OK {
		return nil, []consumer.ResolveRequest{{Type: alertType, EntityID: tr.EntityID}}
	}
	severity := alerts.Warning
	if tr.To == threshold.Critical {
		severity = alerts.Critical
	}
	msg := fmt.Sprintf("%s transitioned to %s for %s (value=%.2f)", tr.Metric, tr.To, tr.EntityID, tr.Value)
	return []consumer.AlertRequest{{Type: alertType, Severity: severity, EntityID: tr.EntityID, Message: msg}}, nil
}

// genericFallback is SPEC_FULL.md §4.9A's catch-all branch for an event
// type a handler doesn't recognize: persist the raw envelope, audit it, and
// raise an INFO alert instead of rejecting to DLT outright, so a schema
// addition upstream never becomes a breaking change downstream.
func genericFallback(env *events.Envelope) *consumer.Outcome {
	entityID := env.EntityID
	return &consumer.Outcome{
		Record: NewRecord(env, entityID, map[string]any{"raw": string(env.Raw)}),
		Alerts: []consumer.AlertRequest{{
			Type:     "UNRECOGNIZED_EVENT_TYPE",
			Severity: alerts.Info,
			EntityID: entityID,
			Message:  fmt.Sprintf("unrecognized event type %s in family %s", env.Type, env.Family),
		}},
	}
}
