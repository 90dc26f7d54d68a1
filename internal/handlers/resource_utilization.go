package handlers

import (
	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
)

// NewResourceUtilizationHandler builds the Resource utilization family
// handler (spec §4.9): per-resource-type metric ingestion plus the
// already-classified alert/recovery event types (RESOURCE_ALERT,
// RESOURCE_RECOVERY, BOTTLENECK, RESOURCE_EXHAUSTION) that pass straight
// through to the Alert Manager and Derived-Event Emitter.
func NewResourceUtilizationHandler(eng *Engines) *MetricFamilyHandler {
	always := func(float64) bool { return true }

	specs := map[events.Type]EventSpec{
		"RESOURCE_DATA":       {Metric: "resource_usage_percent", ValueField: "usage_percent"},
		"CPU":                 {Metric: "cpu_usage"},
		"MEMORY":              {Metric: "memory_usage"},
		"DISK":                {Metric: "disk_usage"},
		"NETWORK":             {Metric: "network_usage"},
		"CONTAINER_RESOURCE":  {Metric: "container_resource_usage"},

		"RESOURCE_ALERT": {
			SkipAnomaly: true, Metric: "resource_alert",
			DerivedWhen: always, DerivedTopic: "resource-alerts", DerivedType: "RESOURCE_ALERT",
			AlertType: "RESOURCE_ALERT", AlertSeverity: alerts.Warning,
		},
		"RESOURCE_TREND": {SkipAnomaly: true, Metric: "resource_trend"},

		"HIGH_USAGE": {
			SkipAnomaly: true, Metric: "resource_usage_percent",
			DerivedWhen: always, DerivedTopic: "resource-alerts", DerivedType: "HIGH_USAGE",
			AlertType: "HIGH_USAGE", AlertSeverity: alerts.Warning,
		},
		"LOW_USAGE": {SkipAnomaly: true, Metric: "resource_usage_percent"},

		"RESOURCE_EXHAUSTION": {
			SkipAnomaly: true, Metric: "resource_exhaustion",
			DerivedWhen: always, DerivedTopic: "auto-scaling-triggers", DerivedType: "SCALE_UP",
			AlertType: "RESOURCE_EXHAUSTION", AlertSeverity: alerts.High,
		},
		"RESOURCE_RECOVERY": {SkipAnomaly: true, Metric: "resource_usage_percent", Resolves: "RESOURCE_ALERT"},

		"BOTTLENECK": {
			SkipAnomaly: true, Metric: "bottleneck",
			DerivedWhen: always, DerivedTopic: "bottleneck-alerts", DerivedType: "BOTTLENECK",
			AlertType: "BOTTLENECK", AlertSeverity: alerts.High,
		},
		"OPTIMIZATION": {
			SkipAnomaly: true, SkipMetric: true,
			DerivedWhen: always, DerivedTopic: "optimization-recommendations", DerivedType: "OPTIMIZATION",
		},
	}

	return NewMetricFamilyHandler(events.FamilyResourceUtilization, specs, eng)
}
