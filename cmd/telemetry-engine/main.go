// Command telemetry-engine runs the ingestion and analysis core: it loads
// configuration, wires every collaborator via internal/bootstrap, starts
// the Consumer Runtime's subscriptions and the Periodic Analyzers, serves
// /metrics, and drains cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lattice-signal/telemetry-engine/internal/bootstrap"
	"github.com/lattice-signal/telemetry-engine/pkg/config"
	"github.com/lattice-signal/telemetry-engine/pkg/metrics"
)

// shutdownGrace bounds how long in-flight records and periodic tasks get
// to drain once a shutdown signal arrives.
const shutdownGrace = 30 * time.Second

func main() {
	log := logrus.WithField("app", "telemetry-engine")

	cfg := config.New()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.WithError(err).Fatal("bootstrap")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Engine.Start(ctx); err != nil {
		log.WithError(err).Fatal("start engine")
	}
	app.StartSampler(ctx)

	var httpServer *http.Server
	if cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		httpServer = &http.Server{Addr: ":" + config.GetEnv("METRICS_PORT", "9090"), Handler: mux}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("metrics server")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}
