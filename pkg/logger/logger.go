// Package logger provides structured logging with correlation-id support
// for engine lifecycle, analyzer, and alert logging. The Consumer Runtime's
// per-record hot path uses pkg/hotlog instead.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys carried alongside a logger.
type ContextKey string

const (
	// CorrelationIDKey is the context key for the event correlation id.
	CorrelationIDKey ContextKey = "correlation_id"
	// FamilyKey is the context key for the event family.
	FamilyKey ContextKey = "family"
	// ComponentKey is the context key for the owning component name.
	ComponentKey ContextKey = "component"
)

// Logger wraps logrus.Logger with engine-specific context helpers.
type Logger struct {
	*logrus.Logger
	component string
}

// New creates a new Logger instance.
func New(component, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, component: component}
}

// NewFromEnv constructs a logger using LOG_LEVEL and LOG_FORMAT environment
// variables. Defaults to "info" and "json" when unset.
func NewFromEnv(component string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(component, level, format)
}

// SetOutput sets the logger output.
func (l *Logger) SetOutput(output io.Writer) {
	l.Logger.SetOutput(output)
}

// WithContext creates a log entry carrying whatever correlation/family
// context values are present.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("component", l.component)

	if correlationID := ctx.Value(CorrelationIDKey); correlationID != nil {
		entry = entry.WithField("correlation_id", correlationID)
	}
	if family := ctx.Value(FamilyKey); family != nil {
		entry = entry.WithField("family", family)
	}
	return entry
}

// WithFields creates a log entry with custom fields plus the component tag.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["component"] = l.component
	return l.Logger.WithFields(fields)
}

// WithError creates a log entry carrying an error field.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"component": l.component,
		"error":     err.Error(),
	})
}

// Context helpers

// NewCorrelationID generates a fresh scheduler-originated correlation id
// per spec §6.
func NewCorrelationID() string {
	return uuid.New().String()
}

// WithCorrelationID attaches a correlation id to a context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// GetCorrelationID retrieves the correlation id from a context.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithFamily attaches an event family name to a context.
func WithFamily(ctx context.Context, family string) context.Context {
	return context.WithValue(ctx, FamilyKey, family)
}

// Domain logging helpers

// LogEventProcessed logs a successfully processed envelope.
func (l *Logger) LogEventProcessed(ctx context.Context, eventType, entityID string, duration time.Duration) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"event_type":  eventType,
		"entity_id":   entityID,
		"duration_ms": duration.Milliseconds(),
	}).Info("event processed")
}

// LogEventFailed logs a handler failure and the routing decision taken.
func (l *Logger) LogEventFailed(ctx context.Context, eventType string, err error, route string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"event_type": eventType,
		"route":      route,
	}).WithError(err).Error("event processing failed")
}

// LogCircuitStateChange logs a family breaker transition.
func (l *Logger) LogCircuitStateChange(family, from, to string) {
	l.WithFields(map[string]interface{}{
		"family": family,
		"from":   from,
		"to":     to,
	}).Warn("circuit breaker state changed")
}

// LogAlertRaised logs an alert construction.
func (l *Logger) LogAlertRaised(alertType, severity, entity string) {
	l.WithFields(map[string]interface{}{
		"alert_type": alertType,
		"severity":   severity,
		"entity":     entity,
	}).Info("alert raised")
}

// LogAnalyzerRun logs a periodic analyzer tick.
func (l *Logger) LogAnalyzerRun(task string, duration time.Duration, err error) {
	entry := l.WithFields(map[string]interface{}{
		"task":        task,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("analyzer task failed")
		return
	}
	entry.Debug("analyzer task completed")
}

// Global default logger, initialized once at startup.
var defaultLogger *Logger

// InitDefault initializes the default logger.
func InitDefault(component, level, format string) {
	defaultLogger = New(component, level, format)
}

// Default returns the default logger, lazily initializing a fallback if
// InitDefault was never called.
func Default() *Logger {
	if defaultLogger == nil {
		defaultLogger = New("telemetry-engine", "info", "json")
	}
	return defaultLogger
}

// FormatDuration formats a duration in milliseconds for log messages.
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
}
