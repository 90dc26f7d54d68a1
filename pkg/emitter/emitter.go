// Package emitter implements the Derived-Event Emitter (spec §4.8): it
// publishes follow-on control events to well-defined outbound topics, every
// one stamped with a correlation id, timestamp, and originating entity. In
// the per-record transactional envelope (spec §5), emissions are buffered
// in an Outbox and flushed by pkg/outbox's Postgres NOTIFY/LISTEN bus only
// once the surrounding transaction commits.
package emitter

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

// Publisher is the minimal surface the emitter needs from the outbound bus
// (satisfied by *outbox.Bus); kept as an interface so tests can supply a
// recording fake instead of a live Postgres connection.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// Emitter publishes spec §4.8/§6 derived events, rate-limited so a burst of
// triggering conditions (e.g. every partition's handler tripping the same
// breaker at once) cannot flood a downstream topic.
type Emitter struct {
	pub     Publisher
	limiter *rate.Limiter
}

// New creates an Emitter publishing through pub. ratePerSecond bounds the
// sustained publish rate through a golang.org/x/time/rate limiter; burst allows a short
// spike above that rate. A ratePerSecond of 0 disables limiting.
func New(pub Publisher, ratePerSecond float64, burst int) *Emitter {
	e := &Emitter{pub: pub}
	if ratePerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return e
}

// Outbox buffers derived events produced while handling one record so they
// can be published atomically with the record's persistence, per the
// transactional envelope in spec §5.
type Outbox struct {
	events []events.Derived
}

// Buffer appends a derived event to the outbox without publishing it.
func (o *Outbox) Buffer(d events.Derived) {
	o.events = append(o.events, d)
}

// Events returns the buffered derived events, oldest first.
func (o *Outbox) Events() []events.Derived {
	return o.events
}

// Emit publishes one derived event directly (used by periodic analyzers,
// which have no surrounding per-record transaction to buffer through).
func (e *Emitter) Emit(ctx context.Context, d events.Derived) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return e.pub.Publish(ctx, d.Topic, d)
}

// Flush publishes every event buffered in an Outbox, in order, stopping (and
// returning the error) on the first publish failure — the transactional
// envelope's publish step treats a partial flush as a failed step so the
// whole record retries rather than risk a half-emitted batch of derived
// events (spec §5: "transactional outbox pattern so that derived events are
// visible only on commit").
func (e *Emitter) Flush(ctx context.Context, o *Outbox) error {
	for _, d := range o.events {
		if err := e.Emit(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// NewCorrelationID mints a fresh correlation id for scheduler-originated
// emissions (spec §6: "fresh UUID for scheduler-originated").
type NewCorrelationID func() string

// Derived builds a spec §4.8-shaped derived event with the required
// correlationId/timestamp/entityId fields populated.
func Derived(topic, typ, entityID, correlationID string, at time.Time, payload map[string]any) events.Derived {
	if payload == nil {
		payload = map[string]any{}
	}
	return events.Derived{
		Topic:         topic,
		Type:          typ,
		EntityID:      entityID,
		CorrelationID: correlationID,
		Timestamp:     at,
		Payload:       payload,
	}
}
