package handlers

import (
	"context"
	"fmt"

	"github.com/lattice-signal/telemetry-engine/internal/consumer"
	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/corekit"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

// criticalProviders names the payment providers whose outage triggers
// automatic failover and on-call paging rather than a plain alert (spec
// §4.9 Payment provider status scenario).
var criticalProviders = map[string]bool{
	"stripe": true, "paypal": true, "adyen": true,
}

// PaymentProviderHandler implements the Payment provider status family
// (spec §4.9): a small availability feed for the providers that sit in the
// checkout path, with extra urgency for the providers the business depends
// on most.
type PaymentProviderHandler struct{}

// NewPaymentProviderHandler builds the Payment provider status family
// handler.
func NewPaymentProviderHandler() *PaymentProviderHandler { return &PaymentProviderHandler{} }

func (h *PaymentProviderHandler) Family() events.Family { return events.FamilyPaymentProviderStatus }

func (h *PaymentProviderHandler) EventTypes() []events.Type {
	return []events.Type{"PROVIDER_DOWN", "PROVIDER_DEGRADED", "PROVIDER_RECOVERED"}
}

func (h *PaymentProviderHandler) Handle(ctx context.Context, env *events.Envelope) (*consumer.Outcome, error) {
	entityID, err := requireEntity(env)
	if err != nil {
		return nil, err
	}
	p := payload(env)
	provider := corekit.TrimOrDefault(corekit.GetString(p, "provider"), entityID)
	critical := criticalProviders[provider]

	out := &consumer.Outcome{
		Record: NewRecord(env, entityID, map[string]any{"provider": provider, "status": string(env.Type)}),
	}

	switch env.Type {
	case "PROVIDER_DOWN":
		severity := alerts.High
		if critical {
			severity = alerts.Critical
		}
		out.Alerts = append(out.Alerts, consumer.AlertRequest{
			Type: "PROVIDER_DOWN", Severity: severity, EntityID: entityID,
			Message: fmt.Sprintf("payment provider %s is down", provider),
		})
		if critical {
			out.Derived = append(out.Derived, events.Derived{
				Topic: "critical-provider-down-alerts", Type: "PROVIDER_DOWN", EntityID: entityID,
				CorrelationID: env.CorrelationID, Timestamp: env.Timestamp,
				Payload: map[string]any{"provider": provider},
			})
			out.Derived = append(out.Derived, events.Derived{
				Topic: "provider-status-fallback-events", Type: "FAILOVER", EntityID: entityID,
				CorrelationID: env.CorrelationID, Timestamp: env.Timestamp,
				Payload: map[string]any{"provider": provider, "reason": "critical payment provider down"},
			})
		}

	case "PROVIDER_DEGRADED":
		out.Alerts = append(out.Alerts, consumer.AlertRequest{
			Type: "PROVIDER_DEGRADED", Severity: alerts.Warning, EntityID: entityID,
			Message: fmt.Sprintf("payment provider %s degraded", provider),
		})
		out.Derived = append(out.Derived, events.Derived{
			Topic: "provider-health-alerts", Type: "PROVIDER_DEGRADED", EntityID: entityID,
			CorrelationID: env.CorrelationID, Timestamp: env.Timestamp,
			Payload: map[string]any{"provider": provider},
		})

	case "PROVIDER_RECOVERED":
		out.Resolved = append(out.Resolved,
			consumer.ResolveRequest{Type: "PROVIDER_DOWN", EntityID: entityID},
			consumer.ResolveRequest{Type: "PROVIDER_DEGRADED", EntityID: entityID},
		)

	default:
		return genericFallback(env), nil
	}

	return out, nil
}
