// Package resilience provides the fault-tolerance primitives the Consumer
// Runtime wraps around every family handler call: a sliding-window circuit
// breaker and bounded exponential-backoff retry.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Common errors.
var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config for a per-family circuit breaker, per spec §4.1: a 50% failure
// rate over a 10-event sliding window opens the breaker for 30s; in
// half-open, a fixed number of probes decide whether to close or re-open.
type Config struct {
	WindowSize    int           // events considered for the failure rate
	FailureRate   float64       // fraction of WindowSize that trips the breaker
	Timeout       time.Duration // time spent open before a probe is allowed
	HalfOpenMax   int           // probes evaluated while half-open
	OnStateChange func(from, to State)
}

// DefaultConfig returns the spec's family-breaker defaults.
func DefaultConfig() Config {
	return Config{
		WindowSize:  10,
		FailureRate: 0.5,
		Timeout:     30 * time.Second,
		HalfOpenMax: 3,
	}
}

// CircuitBreaker implements a sliding-window failure-rate breaker.
type CircuitBreaker struct {
	mu sync.RWMutex

	config Config
	state  State

	outcomes    []bool // ring buffer of recent successes (true) / failures (false)
	next        int
	filled      int
	halfOpenRes []bool
	lastTrip    time.Time
}

// New creates a new CircuitBreaker.
func New(cfg Config) *CircuitBreaker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 10
	}
	if cfg.FailureRate <= 0 {
		cfg.FailureRate = 0.5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		config:   cfg,
		state:    StateClosed,
		outcomes: make([]bool, cfg.WindowSize),
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Execute runs fn with circuit breaker protection.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}
	err := fn()
	cb.afterRequest(err == nil)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastTrip) > cb.config.Timeout {
			cb.setState(StateHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	case StateHalfOpen:
		if len(cb.halfOpenRes) >= cb.config.HalfOpenMax {
			return ErrTooManyRequests
		}
	}
	return nil
}

// RecordOutcome folds in the outcome of a call that happened outside
// Execute's gating — e.g. a dependency-graph edge observed from an
// already-delivered telemetry event rather than a live call this process
// made itself. It applies the same state-transition rules as Execute
// without consulting beforeRequest, and returns the resulting state.
func (cb *CircuitBreaker) RecordOutcome(success bool) State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.onHalfOpenResult(success)
		return cb.state
	}
	cb.record(success)
	if !success && cb.tripped() {
		cb.setState(StateOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.onHalfOpenResult(success)
		return
	}

	cb.record(success)
	if !success && cb.tripped() {
		cb.setState(StateOpen)
	}
}

// record appends an outcome to the sliding window.
func (cb *CircuitBreaker) record(success bool) {
	cb.outcomes[cb.next] = success
	cb.next = (cb.next + 1) % len(cb.outcomes)
	if cb.filled < len(cb.outcomes) {
		cb.filled++
	}
}

// tripped reports whether the window's failure rate meets the threshold.
// The window must be full before it can trip, matching the spec's "over a
// 10-event sliding window" framing.
func (cb *CircuitBreaker) tripped() bool {
	if cb.filled < len(cb.outcomes) {
		return false
	}
	failures := 0
	for _, ok := range cb.outcomes {
		if !ok {
			failures++
		}
	}
	rate := float64(failures) / float64(len(cb.outcomes))
	return rate >= cb.config.FailureRate
}

func (cb *CircuitBreaker) onHalfOpenResult(success bool) {
	if !success {
		cb.setState(StateOpen)
		return
	}
	cb.halfOpenRes = append(cb.halfOpenRes, true)
	if len(cb.halfOpenRes) >= cb.config.HalfOpenMax {
		cb.setState(StateClosed)
	}
}

func (cb *CircuitBreaker) setState(newState State) {
	if cb.state == newState {
		return
	}
	old := cb.state
	cb.state = newState
	if newState == StateOpen {
		cb.lastTrip = time.Now()
	}
	cb.filled = 0
	cb.next = 0
	cb.halfOpenRes = nil

	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(old, newState)
	}
}
