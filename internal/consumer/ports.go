// Package consumer implements the Consumer Runtime (spec §4.1): an
// explicit SubscriptionConfig table, one goroutine per partition per
// subscription, idempotent at-least-once dispatch, and retry/circuit
// breaker/dead-letter routing around each family handler call. Collaborators
// (persistent store, retry-topic/DLT publisher, alert sink, derived-event
// emitter) are small interfaces per spec §9's dependency-inversion
// guidance; tests supply fakes.
package consumer

import (
	"context"

	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

// Outcome is what a Handler hands back to the runtime for the transactional
// envelope (SPEC_FULL.md §4.9A): the durable record to persist (if any),
// alerts to raise, and derived events to publish through the outbox. The
// handler never touches offsets or topics directly.
type Outcome struct {
	Record   any
	Alerts   []AlertRequest
	Resolved []ResolveRequest
	Derived  []events.Derived
}

// AlertRequest is a handler's request to raise an alert; the runtime routes
// it through the configured AlertSink once the transactional envelope
// commits.
type AlertRequest struct {
	Type     string
	Severity alerts.Severity
	EntityID string
	Message  string
}

// ResolveRequest is a handler's request to clear an active alert (spec §4.5:
// a threshold transition back to OK produces a RESOLVED signal).
type ResolveRequest struct {
	Type     string
	EntityID string
}

// Handler is implemented once per event family (spec §4.9 / SPEC_FULL.md
// §4.9A). Family()/EventTypes() let the handler self-describe which
// envelopes it accepts, generalizing the teacher's
// SupportedEvents()/SupportedContracts() capability filter.
type Handler interface {
	Family() events.Family
	EventTypes() []events.Type
	Handle(ctx context.Context, env *events.Envelope) (*Outcome, error)
}

// Decoder parses a raw wire record into an envelope. Malformed input is
// reported as an error and routed straight to the dead-letter topic with
// reason INVALID_FORMAT (spec §4.1 step 1); the message-log client that
// produces the raw bytes is itself external to this core (spec §1).
type Decoder func(raw []byte, partition int32, offset int64) (*events.Envelope, error)

// DeadLetterEntry is the audit record a permanently failing or malformed
// record leaves behind (spec §4.1 "Dead-letter handling").
type DeadLetterEntry struct {
	Topic     string
	Partition int32
	Offset    int64
	Reason    string
	Payload   []byte
}

// Store is the external persistence collaborator (spec §1: "the persistent
// store" is out of scope; this is its interface boundary).
type Store interface {
	Persist(ctx context.Context, family events.Family, record any) error
	RecordDeadLetter(ctx context.Context, entry DeadLetterEntry) error
}

// AlertSink raises alerts produced by handler outcomes and by the runtime
// itself (DLT_EVENT, CIRCUIT_OPEN operational alerts).
type AlertSink interface {
	Raise(alertType string, severity alerts.Severity, entityID, message string) (alerts.Alert, bool)
	Resolve(alertType, entityID string) (alerts.Alert, bool)
}

// Emitter publishes a single derived event as part of the transactional
// outbox step.
type Emitter interface {
	Emit(ctx context.Context, d events.Derived) error
}

// RetryPublisher republishes envelopes onto retry/dead-letter/fallback
// topics (spec §4.1 / §6 naming: "<topic>.retry.<n>", "<topic>.dlt",
// fallback-on-circuit-open).
type RetryPublisher interface {
	PublishRetry(ctx context.Context, topic string, attempt int, env *events.Envelope) error
	PublishDLT(ctx context.Context, topic string, env *events.Envelope, entry DeadLetterEntry) error
	PublishFallback(ctx context.Context, topic string, env *events.Envelope) error
}
