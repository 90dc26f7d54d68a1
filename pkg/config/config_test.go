package config

import (
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Errorf("expected 24h idempotency TTL, got %v", cfg.IdempotencyTTL)
	}
	if cfg.AnomalySensitivity != 3.0 {
		t.Errorf("expected anomaly sensitivity 3.0, got %v", cfg.AnomalySensitivity)
	}
	if cfg.AlertCooldownCritical != 5*time.Minute {
		t.Errorf("expected 5m critical cooldown, got %v", cfg.AlertCooldownCritical)
	}
	if cc := cfg.Consumers["performance_monitoring"]; cc.Concurrency != 6 {
		t.Errorf("expected performance_monitoring concurrency 6, got %d", cc.Concurrency)
	}
	if cc := cfg.Consumers["performance_metrics"]; cc.Concurrency != 4 {
		t.Errorf("expected default concurrency 4, got %d", cc.Concurrency)
	}
}

func TestResolveDuration_FallsBackOnInvalid(t *testing.T) {
	t.Setenv("SOME_DURATION", "not-a-duration")
	if got := ResolveDuration("SOME_DURATION", time.Second); got != time.Second {
		t.Errorf("expected fallback of 1s, got %v", got)
	}
}

func TestSplitAndTrimCSV(t *testing.T) {
	got := SplitAndTrimCSV(" a, b ,, c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
