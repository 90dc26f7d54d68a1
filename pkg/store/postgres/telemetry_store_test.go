package postgres

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/lattice-signal/telemetry-engine/internal/consumer"
	"github.com/lattice-signal/telemetry-engine/internal/handlers"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

func newMockStore(t *testing.T) (*TelemetryStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewTelemetryStore(sqlx.NewDb(db, "postgres")), mock
}

func TestTelemetryStorePersistRecord(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO telemetry_records`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := handlers.Record{
		Family:        events.FamilyPerformanceMetrics,
		EventType:     "RESPONSE_TIME",
		EntityID:      "svc-1",
		Timestamp:     time.Now().UTC(),
		CorrelationID: "corr-1",
		Fields:        map[string]any{"cpu": 0.5},
	}

	if err := store.Persist(context.Background(), events.FamilyPerformanceMetrics, rec); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTelemetryStorePersistOpaqueFallback(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO telemetry_records`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Persist(context.Background(), events.FamilySystemHealth, "raw-value"); err != nil {
		t.Fatalf("persist opaque: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTelemetryStoreRecordDeadLetter(t *testing.T) {
	store, mock := newMockStore(t)

	entry := consumer.DeadLetterEntry{
		Topic:     "performance-metrics",
		Partition: 2,
		Offset:    42,
		Reason:    "INVALID_FORMAT",
		Payload:   []byte(`{bad json`),
	}

	mock.ExpectExec(`INSERT INTO telemetry_dead_letters`).
		WithArgs(entry.Topic, entry.Partition, entry.Offset, entry.Reason, entry.Payload).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.RecordDeadLetter(context.Background(), entry); err != nil {
		t.Fatalf("record dead letter: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
