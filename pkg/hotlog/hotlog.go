// Package hotlog provides the Consumer Runtime's per-record logger. The
// partition workers log one line per processed record; at that volume
// logrus's reflection-heavy Fields started showing up in profiles, so this
// path uses zap's strongly-typed field constructors instead.
package hotlog

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin wrapper over zap.Logger exposing the handful of calls
// the partition loop needs.
type Logger struct {
	z *zap.Logger
}

// New builds a Logger at the given level ("debug", "info", "warn", "error").
func New(level string) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	z, err := cfg.Build()
	if err != nil {
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// RecordProcessed logs a single successfully processed record.
func (l *Logger) RecordProcessed(topic string, partition int32, offset int64, family, eventType, correlationID string) {
	l.z.Info("record processed",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("family", family),
		zap.String("event_type", eventType),
		zap.String("correlation_id", correlationID),
	)
}

// RecordSkippedIdempotent logs a record suppressed by the idempotency cache.
func (l *Logger) RecordSkippedIdempotent(topic string, partition int32, offset int64, key string) {
	l.z.Debug("record skipped, idempotency hit",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("event_key", key),
	)
}

// RecordFailed logs a record whose handler invocation failed, along with
// the routing decision (retry topic name or dlt).
func (l *Logger) RecordFailed(topic string, partition int32, offset int64, route string, err error) {
	l.z.Warn("record processing failed",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("route", route),
		zap.Error(err),
	)
}

// Sync flushes any buffered log entries; callers should invoke this during
// shutdown.
func (l *Logger) Sync() error {
	return l.z.Sync()
}
