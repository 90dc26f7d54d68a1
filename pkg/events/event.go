// Package events defines the wire-level data model shared by every
// consumer, family handler, and analytical engine in the telemetry core:
// the immutable event envelope, the enumerated families and event types it
// carries, and the derived-event shape emitted back onto outbound topics.
package events

import (
	"fmt"
	"time"
)

// Family identifies which producer domain an event belongs to. Families are
// a fixed, enumerated schema (spec §1 Non-goals) — this is not a general
// stream-processing framework where new families show up at runtime.
type Family string

const (
	FamilyPerformanceMetrics     Family = "performance_metrics"
	FamilySystemHealth           Family = "system_health"
	FamilyPerformanceMonitoring  Family = "performance_monitoring"
	FamilyResourceUtilization    Family = "resource_utilization"
	FamilyServiceDependency      Family = "service_dependency"
	FamilyPaymentProviderStatus  Family = "payment_provider_status"
	FamilyConsistencyAlerts      Family = "consistency_alerts"
	FamilyUserExperience         Family = "user_experience"
	FamilyPredictiveAnalytics    Family = "predictive_analytics"
)

// Type is an event type scoped within a Family. The same string value may
// be reused across families (e.g. "OPTIMIZATION" appears in both resource
// utilization and service dependency); callers must pair Type with Family.
type Type string

// Envelope is the immutable, at-least-once-delivered unit of work the
// Consumer Runtime hands to a family handler. Every field here is set by
// the runtime before dispatch; handlers never mutate it.
type Envelope struct {
	Family        Family
	Type          Type
	EntityID      string
	Timestamp     time.Time
	Partition     int32
	Offset        int64
	CorrelationID string
	Topic         string

	// Attempt counts retry-topic republishes of this envelope (0 on first
	// delivery). The partition loop increments it when routing a transient
	// failure to <topic>.retry.n and compares it against the retry-topic
	// schedule's max attempts before giving up to the dead-letter topic.
	Attempt int

	// Payload carries the family-specific decoded fields as the
	// map[string]any Decode builds, which handlers read as such; the generic fallback branch
	// (spec SPEC_FULL.md §4.9A) only needs Raw.
	Payload any
	Raw     []byte
}

// Key returns the idempotency key for this event: the tuple the spec
// defines as uniquely identifying an event for replay detection.
func (e *Envelope) Key() string {
	return fmt.Sprintf("%s|%s|%d", e.EntityID, e.Type, e.Timestamp.UnixNano())
}

// ConsumerCorrelationID formats the consumer-originated correlation id
// shape from spec §6: "<family>-<entityId>-p<partition>-o<offset>".
func ConsumerCorrelationID(family Family, entityID string, partition int32, offset int64) string {
	return fmt.Sprintf("%s-%s-p%d-o%d", family, entityID, partition, offset)
}

// Derived is a follow-on control event published by the engine to a
// well-defined outbound topic (spec §4.8 / §6). Every derived event carries
// a correlation id, timestamp, and the originating entity, so downstream
// consumers can trace it back to the triggering envelope.
type Derived struct {
	Topic         string
	Type          string
	EntityID      string
	CorrelationID string
	Timestamp     time.Time
	Payload       map[string]any
}
