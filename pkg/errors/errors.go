// Package errors provides the engine's unified error type: a small set of
// observable kinds (spec §7) that the partition loop type-switches on to
// decide between DLT, retry topic, and fallback routing.
package errors

import (
	"errors"
	"fmt"
)

// Kind is one of the engine's eight observable error kinds.
type Kind string

const (
	KindMalformedEvent             Kind = "MALFORMED_EVENT"
	KindValidationFailure          Kind = "VALIDATION_FAILURE"
	KindTransientStoreFailure      Kind = "TRANSIENT_STORE_FAILURE"
	KindTransientPublishFailure    Kind = "TRANSIENT_PUBLISH_FAILURE"
	KindTransientCollaboratorError Kind = "TRANSIENT_COLLABORATOR_FAILURE"
	KindDeadlineExceeded           Kind = "DEADLINE_EXCEEDED"
	KindCircuitOpen                Kind = "CIRCUIT_OPEN"
	KindPermanentFailure           Kind = "PERMANENT_FAILURE"
)

// Retryable reports whether the partition loop should route an error of
// this kind to a retry topic (true) or straight to DLT (false).
func (k Kind) Retryable() bool {
	switch k {
	case KindTransientStoreFailure, KindTransientPublishFailure,
		KindTransientCollaboratorError, KindDeadlineExceeded:
		return true
	default:
		return false
	}
}

// EngineError is a structured error carrying the kind, a human message,
// optional structured details (e.g. the field that failed validation), and
// the wrapped cause.
type EngineError struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a structured detail and returns the receiver for
// chaining.
func (e *EngineError) WithDetails(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an EngineError with no wrapped cause.
func New(kind Kind, message string) *EngineError {
	return &EngineError{Kind: kind, Message: message}
}

// Wrap creates an EngineError around an existing error.
func Wrap(kind Kind, message string, err error) *EngineError {
	return &EngineError{Kind: kind, Message: message, Err: err}
}

// Malformed builds a MALFORMED_EVENT error for the parse stage.
func Malformed(reason string, err error) *EngineError {
	return Wrap(KindMalformedEvent, reason, err).WithDetails("reason", "INVALID_FORMAT")
}

// ValidationFailure builds a VALIDATION_FAILURE error for a missing or
// invalid required field.
func ValidationFailure(field, reason string) *EngineError {
	return New(KindValidationFailure, reason).WithDetails("field", field)
}

// StoreFailure wraps a persistence-layer error as TRANSIENT_STORE_FAILURE.
func StoreFailure(operation string, err error) *EngineError {
	return Wrap(KindTransientStoreFailure, "store operation failed", err).WithDetails("operation", operation)
}

// PublishFailure wraps an outbound-emit error as TRANSIENT_PUBLISH_FAILURE.
func PublishFailure(topic string, err error) *EngineError {
	return Wrap(KindTransientPublishFailure, "publish failed", err).WithDetails("topic", topic)
}

// CollaboratorFailure wraps an external-collaborator error (ML runtime,
// notifier) as TRANSIENT_COLLABORATOR_FAILURE.
func CollaboratorFailure(collaborator string, err error) *EngineError {
	return Wrap(KindTransientCollaboratorError, "collaborator call failed", err).WithDetails("collaborator", collaborator)
}

// DeadlineExceeded builds a DEADLINE_EXCEEDED error for the 10s handler
// budget.
func DeadlineExceeded(budget string) *EngineError {
	return New(KindDeadlineExceeded, "handler exceeded its budget").WithDetails("budget", budget)
}

// CircuitOpen builds a CIRCUIT_OPEN error for a tripped family breaker.
func CircuitOpen(family string) *EngineError {
	return New(KindCircuitOpen, "circuit breaker open").WithDetails("family", family)
}

// Permanent builds a PERMANENT_FAILURE error for exhausted retries.
func Permanent(reason string, err error) *EngineError {
	return Wrap(KindPermanentFailure, reason, err)
}

// As extracts an *EngineError from an error chain.
func As(err error) (*EngineError, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) an EngineError, and
// KindPermanentFailure otherwise — any error the engine did not itself
// classify is treated as non-retryable so it cannot loop forever.
func KindOf(err error) Kind {
	if ee, ok := As(err); ok {
		return ee.Kind
	}
	return KindPermanentFailure
}
