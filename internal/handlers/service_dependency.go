package handlers

import (
	"context"
	"fmt"

	"github.com/lattice-signal/telemetry-engine/internal/consumer"
	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/corekit"
	"github.com/lattice-signal/telemetry-engine/pkg/depgraph"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

// ServiceDependencyHandler implements the Service-dependency family (spec
// §4.9), wiring call-outcome and topology events into the dependency graph
// engine (spec §4.6) and translating its cascade/critical-path analysis into
// alerts and derived events (spec §4.8 "cascading-failure-risks").
type ServiceDependencyHandler struct {
	eng *Engines
}

// NewServiceDependencyHandler builds the Service-dependency family handler.
func NewServiceDependencyHandler(eng *Engines) *ServiceDependencyHandler {
	return &ServiceDependencyHandler{eng: eng}
}

func (h *ServiceDependencyHandler) Family() events.Family { return events.FamilyServiceDependency }

func (h *ServiceDependencyHandler) EventTypes() []events.Type {
	return []events.Type{
		"DEPENDENCY_DATA", "DEPENDENCY_HEALTH", "DEPENDENCY_FAILURE", "SERVICE_MAP",
		"DEPENDENCY_ALERT", "CRITICAL_PATH", "CIRCUIT_BREAKER", "TIMEOUT", "RETRY",
		"RECOVERY", "CASCADE_FAILURE", "OPTIMIZATION", "ISOLATION", "DISCOVERY",
	}
}

func (h *ServiceDependencyHandler) Handle(ctx context.Context, env *events.Envelope) (*consumer.Outcome, error) {
	entityID, err := requireEntity(env)
	if err != nil {
		return nil, err
	}
	p := payload(env)
	at := env.Timestamp
	if at.IsZero() {
		at = h.eng.now()
	}
	graph := h.eng.Graph

	out := &consumer.Outcome{Record: NewRecord(env, entityID, map[string]any{"target": corekit.GetString(p, "target")})}

	switch env.Type {
	case "SERVICE_MAP":
		graph.UpsertService(entityID, corekit.GetFloat64(p, "criticality"), corekit.GetBool(p, "isolated"), at)

	case "DISCOVERY":
		graph.UpsertService(entityID, corekit.GetFloat64(p, "criticality"), false, at)

	case "ISOLATION":
		graph.UpsertService(entityID, corekit.GetFloat64(p, "criticality"), true, at)
		out.Alerts = append(out.Alerts, consumer.AlertRequest{
			Type: "SERVICE_ISOLATED", Severity: alerts.Info, EntityID: entityID,
			Message: fmt.Sprintf("%s isolated from traffic", entityID),
		})

	case "DEPENDENCY_DATA", "DEPENDENCY_HEALTH", "TIMEOUT", "RETRY":
		target := corekit.GetString(p, "target")
		success := corekit.GetBool(p, "success")
		if env.Type == "TIMEOUT" {
			success = false
		}
		if target != "" && graph != nil {
			graph.Observe(entityID, target, depgraph.CallStats{Success: success, At: at})
		}

	case "DEPENDENCY_FAILURE":
		target := corekit.GetString(p, "target")
		if target != "" && graph != nil {
			graph.Observe(entityID, target, depgraph.CallStats{Success: false, At: at})
		}
		out.Alerts = append(out.Alerts, consumer.AlertRequest{
			Type: "DEPENDENCY_FAILURE", Severity: alerts.High, EntityID: entityID,
			Message: fmt.Sprintf("%s -> %s call failed", entityID, target),
		})
		if graph != nil {
			if affected := graph.CascadeRisk(entityID); len(affected) > 0 {
				impacted := make([]string, 0, len(affected))
				for svc := range affected {
					impacted = append(impacted, svc)
				}
				out.Derived = append(out.Derived, events.Derived{
					Topic: "cascading-failure-risks", Type: "CASCADE_RISK", EntityID: entityID,
					CorrelationID: env.CorrelationID, Timestamp: at,
					Payload: map[string]any{"impacted_services": impacted},
				})
				out.Alerts = append(out.Alerts, consumer.AlertRequest{
					Type: "CASCADING_FAILURE_RISK", Severity: alerts.Critical, EntityID: entityID,
					Message: fmt.Sprintf("failure at %s risks cascading to %d dependents", entityID, len(impacted)),
				})
			}
		}

	case "CASCADE_FAILURE":
		out.Alerts = append(out.Alerts, consumer.AlertRequest{
			Type: "CASCADING_FAILURE_RISK", Severity: alerts.Critical, EntityID: entityID,
			Message: fmt.Sprintf("cascading failure reported at %s", entityID),
		})
		out.Derived = append(out.Derived, events.Derived{
			Topic: "cascading-failure-risks", Type: "CASCADE_FAILURE", EntityID: entityID,
			CorrelationID: env.CorrelationID, Timestamp: at, Payload: p,
		})

	case "RECOVERY":
		target := corekit.GetString(p, "target")
		if target != "" && graph != nil {
			graph.Observe(entityID, target, depgraph.CallStats{Success: true, At: at})
		}
		out.Resolved = append(out.Resolved, consumer.ResolveRequest{Type: "DEPENDENCY_FAILURE", EntityID: entityID})

	case "CIRCUIT_BREAKER":
		if corekit.GetString(p, "state") == "open" {
			out.Alerts = append(out.Alerts, consumer.AlertRequest{
				Type: "CIRCUIT_BREAKER_OPEN", Severity: alerts.High, EntityID: entityID,
				Message: fmt.Sprintf("circuit breaker open for %s", entityID),
			})
			out.Derived = append(out.Derived, events.Derived{
				Topic: "api-circuit-breaker", Type: "TRIP_CIRCUIT_BREAKER", EntityID: entityID,
				CorrelationID: env.CorrelationID, Timestamp: at, Payload: p,
			})
		}

	case "CRITICAL_PATH":
		if graph != nil {
			if res, ok := graph.CriticalPath(entityID); ok {
				out.Derived = append(out.Derived, events.Derived{
					Topic: "root-cause-analysis", Type: "CRITICAL_PATH", EntityID: entityID,
					CorrelationID: env.CorrelationID, Timestamp: at,
					Payload: map[string]any{"path": res.Path, "bottleneck": res.Bottleneck, "total_risk": res.TotalRisk},
				})
			}
		}

	case "DEPENDENCY_ALERT":
		out.Alerts = append(out.Alerts, consumer.AlertRequest{
			Type: "DEPENDENCY_ALERT", Severity: alerts.Warning, EntityID: entityID,
			Message: corekit.TrimOrDefault(corekit.GetString(p, "message"), "dependency alert reported"),
		})

	case "OPTIMIZATION":
		out.Derived = append(out.Derived, events.Derived{
			Topic: "optimization-recommendations", Type: "OPTIMIZATION", EntityID: entityID,
			CorrelationID: env.CorrelationID, Timestamp: at, Payload: p,
		})

	default:
		return genericFallback(env), nil
	}

	return out, nil
}
