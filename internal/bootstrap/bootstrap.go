// Package bootstrap wires every collaborator package into one running
// engine process: configuration, logging, metrics, the analytical engine
// set, the family handlers, the Consumer Runtime's eleven subscriptions, the
// Periodic Analyzers, and the Postgres-backed store/outbox/alert plumbing
// behind them. Grounded on the teacher's service_layer wiring (one
// bootstrap function building a dependency graph of plain structs, no DI
// container or reflection).
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/lattice-signal/telemetry-engine/internal/analyzers"
	"github.com/lattice-signal/telemetry-engine/internal/consumer"
	"github.com/lattice-signal/telemetry-engine/internal/engine"
	"github.com/lattice-signal/telemetry-engine/internal/handlers"
	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/baseline"
	"github.com/lattice-signal/telemetry-engine/pkg/config"
	"github.com/lattice-signal/telemetry-engine/pkg/depgraph"
	"github.com/lattice-signal/telemetry-engine/pkg/emitter"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
	"github.com/lattice-signal/telemetry-engine/pkg/hotlog"
	"github.com/lattice-signal/telemetry-engine/pkg/idempotency"
	"github.com/lattice-signal/telemetry-engine/pkg/logger"
	"github.com/lattice-signal/telemetry-engine/pkg/metrics"
	"github.com/lattice-signal/telemetry-engine/pkg/outbox"
	"github.com/lattice-signal/telemetry-engine/pkg/rollingwindow"
	"github.com/lattice-signal/telemetry-engine/pkg/scheduler"
	postgresstore "github.com/lattice-signal/telemetry-engine/pkg/store/postgres"
	"github.com/lattice-signal/telemetry-engine/pkg/threshold"
	"github.com/lattice-signal/telemetry-engine/pkg/uxscore"

	"github.com/go-redis/redis/v8"
)

// processSampleInterval is the self-monitoring sampler's tick rate.
const processSampleInterval = 15 * time.Second

// subscriptionSpec is one row of spec §6's inbound-topic table: topic name,
// partition concurrency, and the family its handler serves.
type subscriptionSpec struct {
	topic       string
	family      string
	concurrency int
}

var subscriptionSpecs = []subscriptionSpec{
	{"performance-metrics", "performance_metrics", 0},
	{"performance-monitoring-events", "performance_monitoring", 6},
	{"resource-utilization", "resource_utilization", 0},
	{"service-dependency-tracking", "service_dependency", 0},
	{"payment-provider-status-changes", "payment_provider_status", 0},
	{"consistency-alerts", "consistency_alerts", 4},
	{"user-experience-metrics-events", "user_experience", 0},
	{"predictive-analytics", "predictive_analytics", 0},
	{"system-health-events", "system_health", 4},
	{"component-health-alerts", "system_health", 4},
	{"service-availability-events", "system_health", 4},
}

// App bundles every top-level component the running process needs:
// internal/engine orchestrates their Start/Stop order, and cmd/telemetry-engine
// reaches into App for the metrics handler and shutdown hook.
type App struct {
	Config  *config.Config
	Metrics *metrics.Metrics
	Engine  *engine.Engine

	db      *sql.DB
	bus     *outbox.Bus
	sampler *metrics.ProcessSampler
}

// Build wires the full dependency graph from cfg and returns an App ready
// for App.Engine.Start.
func Build(cfg *config.Config) (*App, error) {
	log := logger.NewFromEnv("bootstrap")
	hot := hotlog.New(cfg.LogLevel)

	m := metrics.New("telemetry-engine")
	sampler, err := metrics.NewProcessSampler(m)
	if err != nil {
		log.WithError(err).Warn("process sampler unavailable, self-monitoring disabled")
	}

	db, err := sql.Open("postgres", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open database: %w", err)
	}
	if err := postgresstore.Migrate(db); err != nil {
		return nil, fmt.Errorf("bootstrap: migrate: %w", err)
	}
	store := postgresstore.NewTelemetryStore(sqlx.NewDb(db, "postgres"))

	bus, err := outbox.NewWithDB(db, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: outbox bus: %w", err)
	}
	retryPub := outbox.NewRetryPublisher(bus)
	em := emitter.New(bus, 0, 0)

	idemCache := idempotency.New(cfg.IdempotencyTTL, idempotencyMirrorOption(log)...)

	notifier := alerts.NewLoggerNotifier(log)
	sink := alerts.NewLogSink(notifier, bus)
	alertMgr := alerts.New(sink)

	eng := buildEngines(cfg)
	handlerSet := buildHandlers(eng)

	runtime := consumer.NewRuntime(consumer.RuntimeOptions{
		Log:         hot,
		Metrics:     m,
		Idempotency: idemCache,
		Store:       store,
		Alerts:      alertMgr,
		Emitter:     em,
		Retry:       retryPub,
	})

	for _, spec := range subscriptionSpecs {
		h, ok := handlerSet[spec.family]
		if !ok {
			continue
		}
		concurrency := spec.concurrency
		if concurrency == 0 {
			concurrency = cfg.Consumers[spec.family].Concurrency
		}
		if !cfg.Consumers[spec.family].Enabled {
			continue
		}
		if err := runtime.Subscribe(consumer.SubscriptionConfig{
			Topic:                spec.topic,
			Group:                "telemetry-engine." + spec.family,
			PartitionConcurrency: concurrency,
			Handler:              h,
			Decode:               events.Decode,
		}); err != nil {
			return nil, fmt.Errorf("bootstrap: subscribe %s: %w", spec.topic, err)
		}
	}

	sched := scheduler.New(log)
	periodic := &analyzers.Analyzers{
		Engines: eng,
		Alerts:  alertMgr,
		Emitter: em,
	}
	if err := periodic.Register(sched); err != nil {
		return nil, fmt.Errorf("bootstrap: register analyzers: %w", err)
	}

	e := engine.New()
	if err := e.Register(newRuntimeModule(runtime)); err != nil {
		return nil, err
	}
	if err := e.Register(newSchedulerModule(sched)); err != nil {
		return nil, err
	}
	e.SetModuleDeps("scheduler", "consumer-runtime")

	return &App{
		Config:  cfg,
		Metrics: m,
		Engine:  e,
		db:      db,
		bus:     bus,
		sampler: sampler,
	}, nil
}

// idempotencyMirrorOption wires a Redis distributed mirror behind the
// Idempotency Cache when REDIS_URL is configured; a deployment with no
// Redis stays single-process and falls back to the local TTL cache alone.
func idempotencyMirrorOption(log *logger.Logger) []idempotency.Option {
	addr := config.GetEnv("REDIS_URL", "")
	if addr == "" {
		return nil
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		log.WithError(err).Warn("invalid REDIS_URL, idempotency mirror disabled")
		return nil
	}
	client := redis.NewClient(opts)
	return []idempotency.Option{idempotency.WithMirror(idempotency.NewRedisMirror(client))}
}

func buildEngines(cfg *config.Config) *handlers.Engines {
	windows := rollingwindow.New(rollingwindow.Config{
		MaxSamples: cfg.RollingWindowMaxSamples,
		MaxAge:     cfg.RollingWindowMaxAge,
	})
	baselines := baseline.New(baseline.WithSensitivity(cfg.AnomalySensitivity))
	return &handlers.Engines{
		Windows:    windows,
		Baselines:  baselines,
		Thresholds: threshold.New(),
		Graph:      depgraph.New(),
		UX:         uxscore.New(),
	}
}

func buildHandlers(eng *handlers.Engines) map[string]consumer.Handler {
	return map[string]consumer.Handler{
		"performance_metrics":     handlers.NewPerformanceMetricsHandler(eng),
		"performance_monitoring":  handlers.NewPerformanceMonitoringHandler(eng),
		"resource_utilization":    handlers.NewResourceUtilizationHandler(eng),
		"service_dependency":      handlers.NewServiceDependencyHandler(eng),
		"payment_provider_status": handlers.NewPaymentProviderHandler(),
		"consistency_alerts":      handlers.NewConsistencyHandler(),
		"user_experience":         handlers.NewUserExperienceHandler(eng),
		"predictive_analytics":    handlers.NewPredictiveAnalyticsHandler(eng),
		"system_health":           handlers.NewSystemHealthHandler(),
	}
}

// Shutdown closes the database and outbox bus connections App.Engine.Stop
// doesn't own directly.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.Engine.Stop(ctx); err != nil {
		return err
	}
	if a.bus != nil {
		_ = a.bus.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	return nil
}

// StartSampler launches the process self-monitoring sampler, if available.
func (a *App) StartSampler(ctx context.Context) {
	if a.sampler == nil {
		return
	}
	go a.sampler.Run(ctx, processSampleInterval)
}
