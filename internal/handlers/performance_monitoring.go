package handlers

import (
	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

// NewPerformanceMonitoringHandler builds the Performance monitoring family
// handler (spec §4.9): a direct per-metric-type feed into rolling
// window/baseline/threshold, with derived-event triggers for the resource
// and SLA breaches spec §4.8 and §6 call out (CPU/memory autoscaling
// hints, error-rate analysis, queue lag).
func NewPerformanceMonitoringHandler(eng *Engines) *MetricFamilyHandler {
	specs := map[events.Type]EventSpec{
		"RESPONSE_TIME": {Metric: "response_time_ms"},
		"THROUGHPUT":    {Metric: "throughput"},

		"CPU_UTILIZATION": {
			Metric: "cpu_usage",
			DerivedWhen: func(v float64) bool { return v > 90 },
			DerivedTopic: "cpu-scaling-requests", DerivedType: "SCALE_UP",
			AlertType: "CPU_HIGH", AlertSeverity: alerts.Warning,
		},
		"MEMORY_UTILIZATION": {
			Metric: "memory_usage",
			DerivedWhen: func(v float64) bool { return v > 95 },
			DerivedTopic: "memory-leak-detection", DerivedType: "MEMORY_LEAK_SCAN",
			AlertType: "MEMORY_HIGH", AlertSeverity: alerts.Warning,
		},

		"DISK_IO":    {Metric: "disk_io"},
		"NETWORK_IO": {Metric: "network_io"},

		"ERROR_RATE": {
			Metric: "error_rate",
			DerivedWhen: func(v float64) bool { return v > 1.0 },
			DerivedTopic: "error-analysis-requests", DerivedType: "ERROR_RATE_HIGH",
			AlertType: "ERROR_RATE_HIGH", AlertSeverity: alerts.Warning,
		},
		"QUEUE_LENGTH": {
			Metric: "queue_length",
			DerivedWhen: func(v float64) bool { return v > 1000 },
			DerivedTopic: "queue-lag-alerts", DerivedType: "QUEUE_LAG",
			AlertType: "QUEUE_LAG", AlertSeverity: alerts.Warning,
		},
		"DATABASE_CONNECTIONS": {Metric: "database_connections"},
		"TRANSACTION_RATE":     {Metric: "transaction_rate"},
	}

	return NewMetricFamilyHandler(events.FamilyPerformanceMonitoring, specs, eng)
}
