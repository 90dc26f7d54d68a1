package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_ClosedState(t *testing.T) {
	cb := New(DefaultConfig())

	err := cb.Execute(context.Background(), func() error {
		return nil
	})

	if err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed, got %v", cb.State())
	}
}

func TestCircuitBreaker_OpensAtFailureRate(t *testing.T) {
	cb := New(Config{WindowSize: 10, FailureRate: 0.5, Timeout: time.Second})
	testErr := errors.New("test error")

	// 4 failures out of 10 does not trip.
	for i := 0; i < 4; i++ {
		cb.Execute(context.Background(), func() error { return testErr })
	}
	for i := 0; i < 6; i++ {
		cb.Execute(context.Background(), func() error { return nil })
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed at 40%% failure rate, got %v", cb.State())
	}

	// A further 6 failures push the 10-event window to 50% failures.
	for i := 0; i < 6; i++ {
		cb.Execute(context.Background(), func() error { return testErr })
	}
	if cb.State() != StateOpen {
		t.Errorf("expected open at 50%% failure rate, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb := New(Config{WindowSize: 2, FailureRate: 0.5, Timeout: 10 * time.Millisecond, HalfOpenMax: 2})

	for i := 0; i < 2; i++ {
		cb.Execute(context.Background(), func() error { return errors.New("fail") })
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 2; i++ {
		cb.Execute(context.Background(), func() error { return nil })
	}

	if cb.State() != StateClosed {
		t.Errorf("expected closed after half-open successes, got %v", cb.State())
	}
}

func TestCircuitBreaker_RejectsWhenOpen(t *testing.T) {
	cb := New(Config{WindowSize: 1, FailureRate: 0.5, Timeout: time.Hour})

	cb.Execute(context.Background(), func() error { return errors.New("fail") })

	err := cb.Execute(context.Background(), func() error { return nil })

	if err != ErrCircuitOpen {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New(Config{WindowSize: 1, FailureRate: 0.5, Timeout: 10 * time.Millisecond, HalfOpenMax: 2})

	cb.Execute(context.Background(), func() error { return errors.New("fail") })
	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(context.Background(), func() error { return errors.New("still failing") })
	if err == nil {
		t.Fatalf("expected probe failure to be returned")
	}
	if cb.State() != StateOpen {
		t.Errorf("expected a failed probe to reopen the breaker, got %v", cb.State())
	}
}
