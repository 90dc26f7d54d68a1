package errors

import (
	"errors"
	"testing"
)

func TestEngineError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := StoreFailure("insert", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected Is to unwrap to cause")
	}
	if err.Kind != KindTransientStoreFailure {
		t.Fatalf("expected TRANSIENT_STORE_FAILURE, got %s", err.Kind)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(errors.New("plain")) != KindPermanentFailure {
		t.Fatalf("expected unclassified errors to be permanent")
	}
	if KindOf(CircuitOpen("system_health")) != KindCircuitOpen {
		t.Fatalf("expected CIRCUIT_OPEN to round-trip through KindOf")
	}
}

func TestRetryable(t *testing.T) {
	cases := map[Kind]bool{
		KindMalformedEvent:             false,
		KindValidationFailure:          false,
		KindTransientStoreFailure:      true,
		KindTransientPublishFailure:    true,
		KindTransientCollaboratorError: true,
		KindDeadlineExceeded:           true,
		KindCircuitOpen:                false,
		KindPermanentFailure:           false,
	}
	for kind, want := range cases {
		if got := kind.Retryable(); got != want {
			t.Errorf("%s.Retryable() = %v, want %v", kind, got, want)
		}
	}
}
