package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/lattice-signal/telemetry-engine/internal/consumer"
	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/corekit"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

// predictiveSpec names the payload field an event type's actionability
// threshold is read from, the threshold itself (spec §4.9: "Thresholds for
// actionable predictions"), and what firing produces.
type predictiveSpec struct {
	field         string
	threshold     float64
	alertType     string
	severity      alerts.Severity
	derivedTopic  string
	derivedType   string
}

var predictiveSpecs = map[events.Type]predictiveSpec{
	"ANOMALY_FORECAST": {
		field: "probability", threshold: 0.80,
		alertType: "ANOMALY_FORECAST", severity: alerts.Warning,
	},
	"FAILURE_PREDICTION": {
		field: "probability", threshold: 0.70,
		alertType: "FAILURE_PREDICTED", severity: alerts.High,
		derivedTopic: "root-cause-analysis", derivedType: "FAILURE_PREDICTED",
	},
	"INCIDENT_PREDICTION": {
		field: "probability", threshold: 0.70,
		alertType: "INCIDENT_PREDICTED", severity: alerts.High,
	},
	"USER_BEHAVIOR_PREDICTION": {
		field: "churn_probability", threshold: 0.60,
		alertType: "CHURN_RISK", severity: alerts.Warning,
	},
	"FRAUD_PREDICTION": {
		field: "fraud_probability", threshold: 0.75,
		alertType: "FRAUD_PREDICTED", severity: alerts.Critical,
		derivedTopic: "fraud-blocking", derivedType: "TRANSACTION_HOLD",
	},
	"PREDICTIVE_ALERT": {
		field: "confidence", threshold: 0.75,
		alertType: "PREDICTIVE_ALERT", severity: alerts.Warning,
	},
}

// capacityExhaustionWindow is the lookahead within which a capacity
// prediction is urgent enough to trigger auto-scaling (spec §4.8 scenario).
const capacityExhaustionWindow = 24 * time.Hour

// PredictiveAnalyticsHandler implements the Predictive analytics family
// (spec §4.9): ML-runtime forecasts and predictions, gated by per-type
// confidence/probability thresholds before they become alerts or derived
// events. Non-actionable predictions (below threshold) are still persisted
// for audit and model-evaluation purposes.
type PredictiveAnalyticsHandler struct {
	eng *Engines
}

// NewPredictiveAnalyticsHandler builds the Predictive analytics family handler.
func NewPredictiveAnalyticsHandler(eng *Engines) *PredictiveAnalyticsHandler {
	return &PredictiveAnalyticsHandler{eng: eng}
}

func (h *PredictiveAnalyticsHandler) Family() events.Family { return events.FamilyPredictiveAnalytics }

func (h *PredictiveAnalyticsHandler) EventTypes() []events.Type {
	return []events.Type{
		"TIME_SERIES_PREDICTION", "ANOMALY_FORECAST", "CAPACITY_PREDICTION", "FAILURE_PREDICTION",
		"USER_BEHAVIOR_PREDICTION", "FRAUD_PREDICTION", "REVENUE_FORECAST", "PERFORMANCE_PREDICTION",
		"INCIDENT_PREDICTION", "DEMAND_FORECAST", "TREND_ANALYSIS", "SEASONALITY_DETECTION",
		"CORRELATION_ANALYSIS", "MODEL_PERFORMANCE", "PREDICTIVE_ALERT",
	}
}

func (h *PredictiveAnalyticsHandler) Handle(ctx context.Context, env *events.Envelope) (*consumer.Outcome, error) {
	entityID, err := requireEntity(env)
	if err != nil {
		return nil, err
	}
	p := payload(env)
	at := env.Timestamp
	if at.IsZero() {
		at = h.eng.now()
	}

	out := &consumer.Outcome{Record: NewRecord(env, entityID, map[string]any{"prediction": string(env.Type)})}

	switch env.Type {
	case "CAPACITY_PREDICTION":
		confidence := corekit.GetFloat64(p, "confidence")
		exhaustionAt := parseTimeField(p, "exhaustion_at")
		if confidence >= 0.85 && !exhaustionAt.IsZero() && exhaustionAt.Sub(at) < capacityExhaustionWindow {
			out.Alerts = append(out.Alerts, consumer.AlertRequest{
				Type: "CAPACITY_EXHAUSTION", Severity: alerts.High, EntityID: entityID,
				Message: fmt.Sprintf("%s predicted to exhaust capacity within %s", entityID, exhaustionAt.Sub(at)),
			})
			out.Derived = append(out.Derived, events.Derived{
				Topic: "auto-scaling-triggers", Type: "SCALE_UP", EntityID: entityID,
				CorrelationID: env.CorrelationID, Timestamp: at,
				Payload: map[string]any{"exhaustion_at": exhaustionAt, "confidence": confidence},
			})
		}

	case "MODEL_PERFORMANCE":
		modelName := corekit.TrimOrDefault(corekit.GetString(p, "model"), entityID)
		accuracy := corekit.GetFloat64(p, "accuracy")
		if h.eng.Windows != nil {
			h.eng.Windows.Record(modelName, "model_accuracy", accuracy, at)
		}

	default:
		if spec, ok := predictiveSpecs[env.Type]; ok {
			value := corekit.GetFloat64(p, spec.field)
			if value >= spec.threshold {
				out.Alerts = append(out.Alerts, consumer.AlertRequest{
					Type: spec.alertType, Severity: spec.severity, EntityID: entityID,
					Message: fmt.Sprintf("%s at %.2f for %s", spec.alertType, value, entityID),
				})
				if spec.derivedTopic != "" {
					out.Derived = append(out.Derived, events.Derived{
						Topic: spec.derivedTopic, Type: spec.derivedType, EntityID: entityID,
						CorrelationID: env.CorrelationID, Timestamp: at, Payload: p,
					})
				}
			}
		} else if !isPassiveForecast(env.Type) {
			return genericFallback(env), nil
		}
	}

	return out, nil
}

// isPassiveForecast reports whether an event type is a forecast the family
// persists for audit and trend analysis but never alerts on directly.
func isPassiveForecast(t events.Type) bool {
	switch t {
	case "TIME_SERIES_PREDICTION", "REVENUE_FORECAST", "PERFORMANCE_PREDICTION",
		"DEMAND_FORECAST", "TREND_ANALYSIS", "SEASONALITY_DETECTION", "CORRELATION_ANALYSIS":
		return true
	}
	return false
}

// parseTimeField reads a payload timestamp field encoded either as an
// RFC3339 string or a Unix-seconds float64.
func parseTimeField(p map[string]any, field string) time.Time {
	if p == nil {
		return time.Time{}
	}
	switch v := p[field].(type) {
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}
		}
		return t
	case float64:
		return time.Unix(int64(v), 0).UTC()
	default:
		return time.Time{}
	}
}
