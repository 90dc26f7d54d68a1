package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConsumerConfig is the per-family subscription knob pair from spec §6:
// `consumer.<family>.concurrency`, `consumer.<family>.enabled`.
type ConsumerConfig struct {
	Concurrency int
	Enabled     bool
}

// ScheduleConfig holds the period for one periodic analyzer (spec §4.10).
type ScheduleConfig struct {
	Period time.Duration
	Jitter float64 // fraction, e.g. 0.1 for 10%
}

// ThresholdSet is a (warning, critical, direction) triple for one metric,
// loaded from the optional static thresholds file and overridable per
// entity at runtime by the Threshold Evaluator.
type ThresholdSet struct {
	Metric    string  `yaml:"metric"`
	Warning   float64 `yaml:"warning"`
	Critical  float64 `yaml:"critical"`
	Direction string  `yaml:"direction"` // "upper" or "lower"
}

// Config is the engine's top-level configuration, populated from
// environment variables with an optional thresholds.yaml overlay.
type Config struct {
	Consumers map[string]ConsumerConfig

	IdempotencyTTL time.Duration

	RollingWindowMaxSamples int
	RollingWindowMaxAge     time.Duration

	AnomalySensitivity float64

	SLAResponseTimeMs       int
	SLAAvailabilityPercent  float64
	SLAErrorRatePercent     float64

	AlertCooldownCritical time.Duration
	AlertCooldownDefault  time.Duration

	Schedule map[string]ScheduleConfig

	PredictionConfidenceThreshold float64
	AnomalyProbabilityThreshold   float64
	FailureProbabilityThreshold   float64
	FraudProbabilityThreshold     float64
	ChurnProbabilityThreshold     float64
	CapacityProbabilityThreshold  float64

	Thresholds []ThresholdSet

	MetricsEnabled bool
	LogLevel       string
	LogFormat      string

	DatabaseDSN string
}

var families = []string{
	"performance_metrics", "system_health", "performance_monitoring",
	"resource_utilization", "service_dependency", "payment_provider_status",
	"consistency_alerts", "user_experience", "predictive_analytics",
}

var scheduleTasks = map[string]time.Duration{
	"aggregate_rolling_stats":    5 * time.Minute,
	"detect_frustration_pattern": 5 * time.Minute,
	"trend_analysis":             15 * time.Minute,
	"critical_path_enumeration":  15 * time.Minute,
	"ux_scorecard_recompute":     10 * time.Minute,
	"heatmap_generation":         time.Hour,
	"session_replay_selection":   15 * time.Minute,
	"ux_report_generation":       time.Hour,
	"baseline_recompute":         time.Hour,
	"prediction_refresh":         5 * time.Minute,
	"model_evaluation":           10 * time.Minute,
	"model_retraining":           time.Hour,
	"old_data_cleanup":           24 * time.Hour,
}

// New builds a Config from defaults, then environment overrides, then an
// optional thresholds.yaml overlay.
func New() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Consumers:               map[string]ConsumerConfig{},
		IdempotencyTTL:          ResolveDuration("IDEMPOTENCY_TTL_HOURS_DURATION", 24*time.Hour),
		RollingWindowMaxSamples: ResolveInt("ROLLING_WINDOW_MAX_SAMPLES", 1000),
		RollingWindowMaxAge:     ResolveDuration("ROLLING_WINDOW_MAX_AGE", 24*time.Hour),
		AnomalySensitivity:      ResolveFloat("ANOMALY_SENSITIVITY", 3.0),
		SLAResponseTimeMs:       ResolveInt("SLA_RESPONSE_TIME_MS", 1000),
		SLAAvailabilityPercent:  ResolveFloat("SLA_AVAILABILITY_PERCENT", 99.9),
		SLAErrorRatePercent:     ResolveFloat("SLA_ERROR_RATE_PERCENT", 1.0),
		AlertCooldownCritical:   ResolveDuration("ALERT_COOLDOWN_CRITICAL", 5*time.Minute),
		AlertCooldownDefault:    ResolveDuration("ALERT_COOLDOWN_DEFAULT", 15*time.Minute),
		Schedule:                map[string]ScheduleConfig{},

		PredictionConfidenceThreshold: ResolveFloat("PREDICTION_CONFIDENCE_THRESHOLD", 0.75),
		AnomalyProbabilityThreshold:   ResolveFloat("ANOMALY_PROBABILITY_THRESHOLD", 0.80),
		FailureProbabilityThreshold:   ResolveFloat("FAILURE_PROBABILITY_THRESHOLD", 0.70),
		FraudProbabilityThreshold:     ResolveFloat("FRAUD_PROBABILITY_THRESHOLD", 0.75),
		ChurnProbabilityThreshold:     ResolveFloat("CHURN_PROBABILITY_THRESHOLD", 0.60),
		CapacityProbabilityThreshold:  ResolveFloat("CAPACITY_PROBABILITY_THRESHOLD", 0.85),

		MetricsEnabled: GetEnvBool("METRICS_ENABLED", true),
		LogLevel:       GetEnv("LOG_LEVEL", "info"),
		LogFormat:      GetEnv("LOG_FORMAT", "json"),
		DatabaseDSN:    GetEnv("DATABASE_URL", ""),
	}

	for _, family := range families {
		cfg.Consumers[family] = ConsumerConfig{
			Concurrency: ResolveInt("CONSUMER_"+upperSnake(family)+"_CONCURRENCY", defaultConcurrency(family)),
			Enabled:     GetEnvBool("CONSUMER_"+upperSnake(family)+"_ENABLED", true),
		}
	}

	for task, defaultPeriod := range scheduleTasks {
		cfg.Schedule[task] = ScheduleConfig{
			Period: ResolveDuration("SCHEDULE_"+upperSnake(task)+"_PERIOD", defaultPeriod),
			Jitter: ResolveFloat("SCHEDULE_"+upperSnake(task)+"_JITTER", 0.10),
		}
	}

	if path := GetEnv("THRESHOLDS_FILE", "thresholds.yaml"); path != "" {
		if thresholds, err := LoadThresholds(path); err == nil {
			cfg.Thresholds = thresholds
		}
	}

	return cfg
}

func defaultConcurrency(family string) int {
	switch family {
	case "performance_monitoring", "system_health", "consistency_alerts":
		// Matches the partition concurrencies called out explicitly in
		// spec §6; every other family uses the library default (4).
		return 6
	default:
		return 4
	}
}

func upperSnake(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// LoadThresholds reads a YAML file of ThresholdSet entries. A missing file
// is not an error — the engine falls back to per-resource env-var defaults.
func LoadThresholds(path string) ([]ThresholdSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var sets []ThresholdSet
	if err := yaml.Unmarshal(data, &sets); err != nil {
		return nil, err
	}
	return sets, nil
}
