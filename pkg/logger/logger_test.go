package logger

import (
	"context"
	"testing"
)

func TestWithContext_CarriesCorrelationID(t *testing.T) {
	l := New("test", "info", "text")
	ctx := WithCorrelationID(context.Background(), "perf-svc1-p0-o42")

	entry := l.WithContext(ctx)
	if entry.Data["correlation_id"] != "perf-svc1-p0-o42" {
		t.Fatalf("expected correlation_id field, got %v", entry.Data)
	}
}

func TestGetCorrelationID_EmptyWhenUnset(t *testing.T) {
	if id := GetCorrelationID(context.Background()); id != "" {
		t.Fatalf("expected empty correlation id, got %q", id)
	}
}

func TestNewCorrelationID_NonEmpty(t *testing.T) {
	if NewCorrelationID() == "" {
		t.Fatalf("expected a non-empty generated correlation id")
	}
}
