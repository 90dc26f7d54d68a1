package handlers

import (
	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

// NewPerformanceMetricsHandler builds the Performance metrics family
// handler (spec §4.9): request/query/cache/batch timing events, each
// recorded into the rolling window + baseline + threshold stack, with
// explicit derived-event triggers for the slow-call cases spec §4.8 names.
func NewPerformanceMetricsHandler(eng *Engines) *MetricFamilyHandler {
	always := func(float64) bool { return true }

	specs := map[events.Type]EventSpec{
		"REQUEST_STARTED": {SkipMetric: true, Status: "IN_PROGRESS"},

		"REQUEST_COMPLETED": {
			Metric: "response_time_ms", ValueField: "duration_ms",
			DerivedWhen: func(v float64) bool { return v > 5000 },
			DerivedTopic: "performance-alerts", DerivedType: "SLOW_RESPONSE",
			AlertType: "SLOW_RESPONSE", AlertSeverity: alerts.Warning,
		},

		"REQUEST_FAILED": {Metric: "request_failures", ValueField: "count"},

		"DATABASE_QUERY": {
			Metric: "db_query_duration_ms", ValueField: "duration_ms",
			DerivedWhen: func(v float64) bool { return v > 1000 },
			DerivedTopic: "slow-query-alerts", DerivedType: "SLOW_QUERY",
			AlertType: "SLOW_QUERY", AlertSeverity: alerts.Warning,
		},

		"CACHE_OPERATION": {Metric: "cache_hit_rate", ValueField: "hit_rate"},

		"EXTERNAL_API_CALL": {
			Metric: "external_api_duration_ms", ValueField: "duration_ms",
			DerivedWhen: func(v float64) bool { return v > 5000 },
			DerivedTopic: "performance-alerts", DerivedType: "SLOW_RESPONSE",
			AlertType: "SLOW_RESPONSE", AlertSeverity: alerts.Warning,
		},

		"MESSAGE_PROCESSING":    {Metric: "message_processing_ms", ValueField: "duration_ms"},
		"BATCH_JOB_EXECUTION": {
			Metric: "batch_job_duration_ms", ValueField: "duration_ms",
			DerivedWhen: func(v float64) bool { return v > 300000 },
			DerivedTopic: "batch-job-alerts", DerivedType: "BATCH_JOB_SLOW",
			AlertType: "BATCH_JOB_ALERT", AlertSeverity: alerts.Warning,
		},
		"TRANSACTION_TIMING": {Metric: "transaction_timing_ms", ValueField: "duration_ms"},
		"SERVICE_DEPENDENCY":  {Metric: "dependency_latency_ms", ValueField: "duration_ms"},
		"RESOURCE_USAGE":      {Metric: "resource_usage_percent", ValueField: "usage_percent"},
		"THROUGHPUT_MEASUREMENT": {Metric: "throughput"},

		"LATENCY_SPIKE": {
			SkipMetric: false, Metric: "latency_spike_ms", SkipAnomaly: true,
			DerivedWhen: always, DerivedTopic: "performance-alerts", DerivedType: "LATENCY_SPIKE",
			AlertType: "LATENCY_SPIKE", AlertSeverity: alerts.High,
		},
		"PERFORMANCE_DEGRADATION": {
			SkipAnomaly: true, Metric: "performance_degradation",
			DerivedWhen: always, DerivedTopic: "performance-alerts", DerivedType: "PERFORMANCE_DEGRADATION",
			AlertType: "PERFORMANCE_DEGRADATION", AlertSeverity: alerts.High,
		},
		"CAPACITY_WARNING": {
			SkipAnomaly: true, Metric: "capacity_warning",
			DerivedWhen: always, DerivedTopic: "capacity-alerts", DerivedType: "CAPACITY_WARNING",
			AlertType: "CAPACITY_WARNING", AlertSeverity: alerts.High,
		},
	}

	return NewMetricFamilyHandler(events.FamilyPerformanceMetrics, specs, eng)
}
