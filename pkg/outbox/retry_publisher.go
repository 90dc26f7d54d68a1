package outbox

import (
	"context"
	"fmt"

	"github.com/lattice-signal/telemetry-engine/internal/consumer"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

// retryEnvelope is the JSON shape published on a retry/DLT/fallback
// channel: the envelope header plus raw payload bytes, enough for a
// downstream consumer to rehydrate it without this process's in-memory
// Envelope.Payload decoding.
type retryEnvelope struct {
	Family        events.Family `json:"family"`
	Type          events.Type   `json:"type"`
	EntityID      string        `json:"entity_id"`
	CorrelationID string        `json:"correlation_id"`
	Partition     int32         `json:"partition"`
	Offset        int64         `json:"offset"`
	Attempt       int           `json:"attempt"`
	Raw           []byte        `json:"raw"`
}

// RetryPublisher republishes envelopes onto the retry/dead-letter/fallback
// topics named in spec §4.1/§6, over the same Postgres NOTIFY/LISTEN bus
// the Derived-Event Emitter flushes through.
type RetryPublisher struct {
	bus *Bus
}

// NewRetryPublisher wraps an existing outbox Bus.
func NewRetryPublisher(bus *Bus) *RetryPublisher {
	return &RetryPublisher{bus: bus}
}

func envelopeToWire(env *events.Envelope, attempt int) retryEnvelope {
	return retryEnvelope{
		Family:        env.Family,
		Type:          env.Type,
		EntityID:      env.EntityID,
		CorrelationID: env.CorrelationID,
		Partition:     env.Partition,
		Offset:        env.Offset,
		Attempt:       attempt,
		Raw:           env.Raw,
	}
}

// PublishRetry republishes env onto "<topic>.<attempt>", where topic is the
// subscription's retry topic ("<source>.retry" by default), giving
// "<source>.retry.<attempt>" (spec §4.1: transient failures go through up to
// RetryTopicConfig's five retry-topic attempts before moving to dead-letter).
func (p *RetryPublisher) PublishRetry(ctx context.Context, topic string, attempt int, env *events.Envelope) error {
	channel := fmt.Sprintf("%s.%d", topic, attempt)
	return p.bus.Publish(ctx, channel, envelopeToWire(env, attempt))
}

// PublishDLT republishes env onto topic, the subscription's dead-letter
// topic ("<source>.dlt" by default), alongside the dead-letter reason the
// runtime recorded in the durable store.
func (p *RetryPublisher) PublishDLT(ctx context.Context, topic string, env *events.Envelope, entry consumer.DeadLetterEntry) error {
	channel := topic
	payload := struct {
		retryEnvelope
		Reason string `json:"reason"`
	}{envelopeToWire(env, env.Attempt), entry.Reason}
	return p.bus.Publish(ctx, channel, payload)
}

// PublishFallback republishes env onto topic, the subscription's fallback
// topic ("<source>.fallback" by default), when a circuit breaker is open and
// the handler call is skipped rather than attempted (spec §4.1 "Circuit
// breaker" / §9A fallback routing).
func (p *RetryPublisher) PublishFallback(ctx context.Context, topic string, env *events.Envelope) error {
	channel := topic
	return p.bus.Publish(ctx, channel, envelopeToWire(env, env.Attempt))
}
