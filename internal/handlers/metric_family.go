package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/lattice-signal/telemetry-engine/internal/consumer"
	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/corekit"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

// EventSpec describes how one event type within a metric-oriented family is
// handled: which rolling-window/baseline/threshold key it updates, whether
// it triggers a derived-event emission (spec §4.8), and whether it instead
// resolves a previously-raised alert (a RECOVERY-shaped event type).
type EventSpec struct {
	// Metric is the rolling-window/baseline/threshold key. Ignored when
	// SkipMetric is set.
	Metric string
	// ValueField is the payload field holding the numeric observation;
	// defaults to "value".
	ValueField string
	// SkipMetric marks a pure control event (e.g. an already-classified
	// alert or a session-start marker) that carries no numeric observation.
	SkipMetric bool
	// SkipAnomaly suppresses the baseline anomaly check for event types that
	// are themselves already-classified alerts (e.g. LATENCY_SPIKE).
	SkipAnomaly bool

	DerivedTopic  string
	DerivedType   string
	DerivedWhen   func(value float64) bool
	AlertType     string
	AlertSeverity alerts.Severity

	// Resolves names an alert type to unconditionally resolve — for
	// RECOVERY/RESOLVED-shaped event types.
	Resolves string
	// Status overrides the persisted record's status (e.g. "IN_PROGRESS"
	// for REQUEST_STARTED, per SPEC_FULL.md §9A).
	Status string
}

// MetricFamilyHandler implements Handler for a family whose event types are
// fundamentally metric observations dispatched through rolling windows,
// baselines, and thresholds: Performance metrics, Performance monitoring,
// and Resource utilization (spec §4.9).
type MetricFamilyHandler struct {
	family events.Family
	specs  map[events.Type]EventSpec
	eng    *Engines
}

// NewMetricFamilyHandler builds a handler for family dispatching through specs.
func NewMetricFamilyHandler(family events.Family, specs map[events.Type]EventSpec, eng *Engines) *MetricFamilyHandler {
	return &MetricFamilyHandler{family: family, specs: specs, eng: eng}
}

func (h *MetricFamilyHandler) Family() events.Family { return h.family }

func (h *MetricFamilyHandler) EventTypes() []events.Type {
	out := make([]events.Type, 0, len(h.specs))
	for t := range h.specs {
		out = append(out, t)
	}
	return out
}

func (h *MetricFamilyHandler) Handle(ctx context.Context, env *events.Envelope) (*consumer.Outcome, error) {
	spec, ok := h.specs[env.Type]
	if !ok {
		return genericFallback(env), nil
	}

	entityID, err := requireEntity(env)
	if err != nil {
		return nil, err
	}

	p := payload(env)
	at := env.Timestamp
	if at.IsZero() {
		at = h.eng.now()
	}

	var outAlerts []consumer.AlertRequest
	var outResolved []consumer.ResolveRequest
	var derived []events.Derived
	fields := map[string]any{}

	var value float64
	if !spec.SkipMetric {
		field := spec.ValueField
		if field == "" {
			field = "value"
		}
		value = corekit.GetFloat64(p, field)
		fields[field] = value

		if h.eng.Windows != nil {
			h.eng.Windows.Record(entityID, spec.Metric, value, at)
		}
		if !spec.SkipAnomaly && h.eng.Baselines != nil {
			obs := h.eng.Baselines.Observe(entityID, spec.Metric, value, at)
			if obs.Ready && obs.Anomalous {
				outAlerts = append(outAlerts, consumer.AlertRequest{
					Type:     "ANOMALY_DETECTED",
					Severity: alerts.Warning,
					EntityID: entityID,
					Message:  fmt.Sprintf("%s anomalous for %s (z=%.2f)", spec.Metric, entityID, obs.ZScore),
				})
			}
		}
		if h.eng.Thresholds != nil {
			if tr := h.eng.Thresholds.Evaluate(entityID, spec.Metric, value); tr != nil {
				a, r := translateTransition(tr, strings.ToUpper(spec.Metric))
				outAlerts = append(outAlerts, a...)
				outResolved = append(outResolved, r...)
			}
		}
	}

	if spec.Resolves != "" {
		outResolved = append(outResolved, consumer.ResolveRequest{Type: spec.Resolves, EntityID: entityID})
	}

	if spec.DerivedWhen != nil && spec.DerivedWhen(value) {
		derived = append(derived, events.Derived{
			Topic: spec.DerivedTopic, Type: spec.DerivedType, EntityID: entityID,
			CorrelationID: env.CorrelationID, Timestamp: at, Payload: p,
		})
		if spec.AlertType != "" {
			outAlerts = append(outAlerts, consumer.AlertRequest{
				Type: spec.AlertType, Severity: spec.AlertSeverity, EntityID: entityID,
				Message: fmt.Sprintf("%s triggered for %s", spec.AlertType, entityID),
			})
		}
	}

	record := NewRecord(env, entityID, fields)
	record.Status = spec.Status

	return &consumer.Outcome{Record: record, Alerts: outAlerts, Resolved: outResolved, Derived: derived}, nil
}
