// Package corekit holds small generic helpers shared across the engine's
// internal packages: store-facing sentinel errors, map/string/slice
// normalization and validation, pagination clamping, and observation hooks.
// It has no engine-specific types of its own — pkg/errors owns the
// retry/DLQ classification the Consumer Runtime dispatches on.
package corekit

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a record already exists (duplicate).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input data.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates a state conflict (e.g., concurrent modification).
	ErrConflict = errors.New("conflict")

	// ErrRateLimited indicates the caller exceeded rate limits.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates a collaborator is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates an operation exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrInternal indicates an unexpected internal error.
	ErrInternal = errors.New("internal error")

	// ErrHookFailed indicates a lifecycle hook failed.
	ErrHookFailed = errors.New("lifecycle hook failed")
)

// NotFoundError provides detailed not-found errors with resource context.
type NotFoundError struct {
	Resource string // e.g., "baseline", "threshold_override", "session"
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError provides detailed validation errors with field context.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// RequiredError creates a validation error for a required field.
func RequiredError(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}

// ConflictError provides detailed conflict errors.
type ConflictError struct {
	Resource string
	ID       string
	Message  string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %q: %s", e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("%s %q already exists", e.Resource, e.ID)
}

func (e *ConflictError) Unwrap() error { return ErrAlreadyExists }

func NewConflictError(resource, id, message string) error {
	return &ConflictError{Resource: resource, ID: id, Message: message}
}

// ServiceError wraps an error with the originating component and operation,
// for uniform logging across stores, analyzers, and collaborators.
type ServiceError struct {
	Component string
	Operation string
	Err       error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Component, e.Operation, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func WrapServiceError(component, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Component: component, Operation: operation, Err: err}
}

// HookError represents a lifecycle hook error.
type HookError struct {
	Component string
	HookType  string // PreStart, PostStart, PreStop, PostStop
	HookName  string
	Err       error
}

func (e *HookError) Error() string {
	if e.HookName != "" {
		return fmt.Sprintf("%s: %s hook %q failed: %v", e.Component, e.HookType, e.HookName, e.Err)
	}
	return fmt.Sprintf("%s: %s hook failed: %v", e.Component, e.HookType, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

func NewHookError(component, hookType string, err error) *HookError {
	return &HookError{Component: component, HookType: hookType, Err: err}
}

func IsHookError(err error) bool {
	return errors.Is(err, ErrHookFailed)
}

func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsValidationError(err error) bool { return errors.Is(err, ErrInvalidInput) }
func IsConflict(err error) bool      { return errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrConflict) }
