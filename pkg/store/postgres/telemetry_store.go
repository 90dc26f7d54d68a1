package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lattice-signal/telemetry-engine/internal/consumer"
	"github.com/lattice-signal/telemetry-engine/internal/handlers"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

// TelemetryStore is the durable persistence collaborator the Consumer
// Runtime calls through consumer.Store: one append-only table for every
// family's persisted records (spec §3 "Persisted-record shapes"), one for
// dead-letter audit entries (spec §4.1 "Dead-letter handling"). It wraps
// *sqlx.DB for the named-parameter insert BaseStore's raw database/sql
// helpers don't offer.
type TelemetryStore struct {
	db *sqlx.DB
}

// NewTelemetryStore wraps an existing *sqlx.DB. Call Migrate(db.DB) once at
// startup before constructing this.
func NewTelemetryStore(db *sqlx.DB) *TelemetryStore {
	return &TelemetryStore{db: db}
}

type recordRow struct {
	Family        string `db:"family"`
	EventType     string `db:"event_type"`
	EntityID      string `db:"entity_id"`
	CorrelationID string `db:"correlation_id"`
	Status        string `db:"status"`
	OccurredAt    any    `db:"occurred_at"`
	Fields        []byte `db:"fields"`
}

// Persist inserts the family handler's outcome record (spec §4.9 step 5).
// Handlers build handlers.Record via handlers.NewRecord; anything else
// (a future handler returning a bespoke shape) is stored as an opaque JSON
// blob under a synthetic "value" field so persistence never rejects a
// well-formed outcome.
func (s *TelemetryStore) Persist(ctx context.Context, family events.Family, record any) error {
	row, err := toRecordRow(family, record)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO telemetry_records
			(family, event_type, entity_id, correlation_id, status, occurred_at, fields)
		VALUES
			(:family, :event_type, :entity_id, :correlation_id, :status, :occurred_at, :fields)
	`
	_, err = s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("persist %s record: %w", family, err)
	}
	return nil
}

func toRecordRow(family events.Family, record any) (recordRow, error) {
	if rec, ok := record.(handlers.Record); ok {
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			return recordRow{}, fmt.Errorf("marshal record fields: %w", err)
		}
		return recordRow{
			Family:        string(family),
			EventType:     string(rec.EventType),
			EntityID:      rec.EntityID,
			CorrelationID: rec.CorrelationID,
			Status:        rec.Status,
			OccurredAt:    rec.Timestamp,
			Fields:        fields,
		}, nil
	}

	fields, err := json.Marshal(map[string]any{"value": record})
	if err != nil {
		return recordRow{}, fmt.Errorf("marshal opaque record: %w", err)
	}
	return recordRow{
		Family: string(family),
		Fields: fields,
	}, nil
}

// RecordDeadLetter persists a permanently failing or malformed record for
// audit (spec §4.1 "Dead-letter handling").
func (s *TelemetryStore) RecordDeadLetter(ctx context.Context, entry consumer.DeadLetterEntry) error {
	const query = `
		INSERT INTO telemetry_dead_letters (topic, partition, offset_id, reason, payload)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query, entry.Topic, entry.Partition, entry.Offset, entry.Reason, entry.Payload)
	if err != nil {
		return fmt.Errorf("record dead letter: %w", err)
	}
	return nil
}
