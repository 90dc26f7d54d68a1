package alerts

import (
	"context"

	"github.com/lattice-signal/telemetry-engine/pkg/logger"
)

// Notifier is the minimal surface the Sink needs to fan an alert out to its
// channels (spec §1: channel delivery — chat/email/sms/paging — is an
// external collaborator). A structured-log notifier satisfies this for
// deployments with no outbound notification provider wired yet.
type Notifier interface {
	Notify(channel, alertType, severity, entityID, message string)
}

// Mirror is the minimal surface the Sink needs to publish an alert onto the
// `monitoring.alerts` topic (spec §1/§4.7), satisfied by *outbox.Bus.
type Mirror interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// MonitoringChannel is the outbound topic name spec §4.7 mirrors every
// dispatched alert onto.
const MonitoringChannel = "monitoring.alerts"

// LogSink implements Sink by logging a line per outbound channel and
// mirroring the alert onto the monitoring topic through an outbox Mirror.
// It is the default Sink wired at startup; a deployment with a real chat/
// email/SMS/paging provider would implement Notifier against that provider
// instead of the log-only default.
type LogSink struct {
	notifier Notifier
	mirror   Mirror
}

// NewLogSink builds a Sink over notifier (channel fan-out) and mirror
// (monitoring-topic publish). mirror may be nil, in which case mirroring is
// skipped.
func NewLogSink(notifier Notifier, mirror Mirror) *LogSink {
	return &LogSink{notifier: notifier, mirror: mirror}
}

// Dispatch fans the alert out to every channel its severity routes to
// (spec §4.7's severity -> channel table).
func (s *LogSink) Dispatch(alert Alert) error {
	if s.notifier == nil {
		return nil
	}
	for _, ch := range alert.Channels() {
		s.notifier.Notify(string(ch), alert.Type, string(alert.Severity), alert.EntityID, alert.Message)
	}
	return nil
}

// MirrorToMonitoring publishes the alert onto the monitoring.alerts topic
// (spec §4.7) so external dashboards see it without polling the engine.
func (s *LogSink) MirrorToMonitoring(alert Alert) error {
	if s.mirror == nil {
		return nil
	}
	return s.mirror.Publish(context.Background(), MonitoringChannel, alert)
}

// LoggerNotifier implements Notifier over pkg/logger, the default when no
// real chat/email/SMS/paging provider is configured.
type LoggerNotifier struct {
	log *logger.Logger
}

// NewLoggerNotifier wraps an existing engine logger.
func NewLoggerNotifier(log *logger.Logger) *LoggerNotifier {
	return &LoggerNotifier{log: log}
}

func (n *LoggerNotifier) Notify(channel, alertType, severity, entityID, message string) {
	n.log.WithFields(map[string]interface{}{
		"channel":   channel,
		"type":      alertType,
		"severity":  severity,
		"entity_id": entityID,
	}).Info(message)
}
