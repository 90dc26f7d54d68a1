// Package metrics provides Prometheus metrics collection for the engine:
// a fixed set of named collectors (registry.go) covering the counters and
// gauges called out across the spec's testable properties, plus a generic
// lazily-registering Recorder (recorder.go) for ad hoc per-component
// metrics that do not warrant a dedicated field.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lattice-signal/telemetry-engine/pkg/runtimeenv"
)

// Metrics holds the engine's named Prometheus collectors.
type Metrics struct {
	// Consumer Runtime
	EventsProcessedTotal *prometheus.CounterVec   // family, event_type
	EventsDroppedTotal   *prometheus.CounterVec   // family, reason
	DLQTotal             *prometheus.CounterVec   // family, topic
	ErrorsTotal          *prometheus.CounterVec   // family, kind
	HandlerDuration      *prometheus.HistogramVec // family, event_type

	// Circuit breakers
	CircuitBreakerState *prometheus.GaugeVec // family: 0=closed 1=half-open 2=open

	// Alert Manager
	AlertsRaisedTotal     *prometheus.CounterVec // type, severity
	AlertsSuppressedTotal *prometheus.CounterVec // type, reason

	// Periodic Analyzers
	AnalyzerRunsTotal *prometheus.CounterVec   // task, status
	AnalyzerDuration  *prometheus.HistogramVec // task

	// Process self-monitoring
	ProcessCPUPercent  prometheus.Gauge
	ProcessMemoryBytes prometheus.Gauge
	ServiceUptime      prometheus.Gauge
	ServiceInfo        *prometheus.GaugeVec
}

// New creates a Metrics instance registered against the default registerer.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsProcessedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_processed_total",
			Help: "Total events successfully processed by family handlers.",
		}, []string{"family", "event_type"}),

		EventsDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total events dropped before dispatch (e.g. queue full).",
		}, []string{"family", "reason"}),

		DLQTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dlq_total",
			Help: "Total records routed to a dead-letter topic.",
		}, []string{"family", "topic"}),

		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total errors observed, by family and error kind.",
		}, []string{"family", "kind"}),

		HandlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "handler_duration_seconds",
			Help:    "Family handler invocation duration in seconds.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"family", "event_type"}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Family circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"family"}),

		AlertsRaisedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_raised_total",
			Help: "Total alerts raised, by type and severity.",
		}, []string{"type", "severity"}),

		AlertsSuppressedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_suppressed_total",
			Help: "Total alerts suppressed by cooldown or dedup.",
		}, []string{"type", "reason"}),

		AnalyzerRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analyzer_runs_total",
			Help: "Total periodic analyzer runs, by task and outcome.",
		}, []string{"task", "status"}),

		AnalyzerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analyzer_duration_seconds",
			Help:    "Periodic analyzer run duration in seconds.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		}, []string{"task"}),

		ProcessCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "process_cpu_percent",
			Help: "Process CPU usage percent, sampled via gopsutil.",
		}),
		ProcessMemoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "process_memory_bytes",
			Help: "Process resident memory in bytes, sampled via gopsutil.",
		}),
		ServiceUptime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "service_uptime_seconds",
			Help: "Service uptime in seconds.",
		}),
		ServiceInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "service_info",
			Help: "Service build/environment information.",
		}, []string{"service", "version", "environment"}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.EventsProcessedTotal,
			m.EventsDroppedTotal,
			m.DLQTotal,
			m.ErrorsTotal,
			m.HandlerDuration,
			m.CircuitBreakerState,
			m.AlertsRaisedTotal,
			m.AlertsSuppressedTotal,
			m.AnalyzerRunsTotal,
			m.AnalyzerDuration,
			m.ProcessCPUPercent,
			m.ProcessMemoryBytes,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", getEnvironment()).Set(1)
	return m
}

// RecordProcessed increments the processed counter and observes handler
// latency for one family/event-type pair.
func (m *Metrics) RecordProcessed(family, eventType string, duration time.Duration) {
	m.EventsProcessedTotal.WithLabelValues(family, eventType).Inc()
	m.HandlerDuration.WithLabelValues(family, eventType).Observe(duration.Seconds())
}

// RecordError increments the error counter for a family/kind pair.
func (m *Metrics) RecordError(family, kind string) {
	m.ErrorsTotal.WithLabelValues(family, kind).Inc()
}

// RecordDLQ increments the dead-letter counter for a family/topic pair.
func (m *Metrics) RecordDLQ(family, topic string) {
	m.DLQTotal.WithLabelValues(family, topic).Inc()
}

// SetCircuitState records a family breaker's numeric state.
func (m *Metrics) SetCircuitState(family string, state int) {
	m.CircuitBreakerState.WithLabelValues(family).Set(float64(state))
}

// RecordAlert increments the alerts-raised counter.
func (m *Metrics) RecordAlert(alertType, severity string) {
	m.AlertsRaisedTotal.WithLabelValues(alertType, severity).Inc()
}

// RecordAlertSuppressed increments the alerts-suppressed counter.
func (m *Metrics) RecordAlertSuppressed(alertType, reason string) {
	m.AlertsSuppressedTotal.WithLabelValues(alertType, reason).Inc()
}

// RecordAnalyzerRun increments the analyzer-runs counter and observes its
// duration.
func (m *Metrics) RecordAnalyzerRun(task, status string, duration time.Duration) {
	m.AnalyzerRunsTotal.WithLabelValues(task, status).Inc()
	m.AnalyzerDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// UpdateUptime updates the service uptime gauge.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// Helper functions

func getEnvironment() string {
	return string(runtimeenv.Env())
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
//   - production: disabled unless explicitly enabled via METRICS_ENABLED
//   - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return !runtimeenv.IsProduction()
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Global metrics instance.
var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = New("telemetry-engine")
	}
	return globalMetrics
}
