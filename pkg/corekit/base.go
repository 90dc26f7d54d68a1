package corekit

import (
	"context"
	"strings"
)

// EntityChecker validates that a monitored entity (a service name, session
// ID, or payment provider ID depending on the family) is known to the
// engine. A nil checker disables the existence check and only enforces
// presence — used in tests and for families that don't maintain a registry.
type EntityChecker interface {
	EntityExists(ctx context.Context, entityID string) error
}

// Tracer exposes cross-cutting span creation for handler and analyzer code.
// Defaults to NoopTracer when unconfigured.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, func())
}

type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, _ string) (context.Context, func()) {
	return ctx, func() {}
}

// NoopTracer is the default Tracer used when none is configured.
var NoopTracer Tracer = noopTracer{}

// EntityBase bundles the entity-existence check and tracer every family
// handler and analyzer needs, mirroring the shared-helper shape each
// consumer-side component embeds.
type EntityBase struct {
	entities EntityChecker
	tracer   Tracer
}

// NewEntityBase constructs a helper bound to the provided entity checker.
func NewEntityBase(entities EntityChecker) *EntityBase {
	return &EntityBase{entities: entities, tracer: NoopTracer}
}

// SetTracer configures the tracer used for cross-cutting spans.
func (b *EntityBase) SetTracer(tracer Tracer) {
	if tracer == nil {
		b.tracer = NoopTracer
		return
	}
	b.tracer = tracer
}

// EnsureEntity validates presence and optional existence of an entity ID.
func (b *EntityBase) EnsureEntity(ctx context.Context, entityID string) error {
	if strings.TrimSpace(entityID) == "" {
		return RequiredError("entity_id")
	}
	if b.entities == nil {
		return nil
	}
	return b.entities.EntityExists(ctx, entityID)
}

// NormalizeEntity trims and validates an entity identifier, returning the
// trimmed ID after confirming existence (when a checker is configured).
func (b *EntityBase) NormalizeEntity(ctx context.Context, entityID string) (string, error) {
	trimmed := strings.TrimSpace(entityID)
	if trimmed == "" {
		return "", RequiredError("entity_id")
	}
	if b.entities == nil {
		return trimmed, nil
	}
	if err := b.entities.EntityExists(ctx, trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}

// Tracer returns the currently configured tracer (defaults to no-op).
func (b *EntityBase) Tracer() Tracer {
	if b == nil || b.tracer == nil {
		return NoopTracer
	}
	return b.tracer
}
