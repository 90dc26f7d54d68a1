// Package analyzers implements the 13 Periodic Analyzers (spec §4.10): the
// fixed-delay scheduled tasks that recompute aggregates, baselines, and UX
// scorecards, and flag/retrain prediction models, on top of the same
// analytical engines the Consumer Runtime's family handlers write to.
// Grounded on the teacher's ticker-driven automation jobs (pkg/scheduler);
// every analyzer here is a plain `scheduler.Task` closure bound to the
// shared engine set, registered once at startup.
package analyzers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lattice-signal/telemetry-engine/internal/consumer"
	"github.com/lattice-signal/telemetry-engine/internal/handlers"
	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/baseline"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
	"github.com/lattice-signal/telemetry-engine/pkg/fallback"
	"github.com/lattice-signal/telemetry-engine/pkg/scheduler"
)

// predictionCacheKey is the sole entry fallback.Handler's cache holds: the
// most recent successful ML runtime response, served stale when a tick's
// live call fails rather than letting one flaky call skip a whole period.
const predictionCacheKey = "prediction_refresh"

// predictionCacheTTL bounds how stale a served fallback result may be
// before predictionRefresh prefers reporting the failure instead.
const predictionCacheTTL = 20 * time.Minute

// errPredictionCacheEmpty signals the fallback path that no prior
// successful result exists to serve stale.
var errPredictionCacheEmpty = errors.New("analyzers: no cached prediction result available")

// modelAccuracyMetric is the rolling-window key the Predictive analytics
// handler's MODEL_PERFORMANCE branch records into (internal/handlers's
// predictive.go), and the one Model evaluation reads back.
const modelAccuracyMetric = "model_accuracy"

// modelAccuracyFloor is spec §4.10's retraining trigger: "flag models for
// retraining (accuracy < 0.80)".
const modelAccuracyFloor = 0.80

// replaySelectionClickFloor is spec §4.10's "pick 'interesting' sessions
// (> 50 clicks, rage)" threshold.
const replaySelectionClickFloor = 50

// staleDataAge and stalePredictionAge are spec §4.10's Old-data cleanup
// retention ceilings (30 days, 90 days for predictions). oldDataCleanup does
// not read them.
const (
	staleDataAge       = 30 * 24 * time.Hour
	stalePredictionAge = 90 * 24 * time.Hour
)

// PredictionRuntime is the external ML-serving collaborator the
// Prediction-refresh analyzer calls into (spec §1: "the ML runtime" is out
// of scope; this is its interface boundary).
type PredictionRuntime interface {
	Refresh(ctx context.Context) ([]events.Derived, error)
}

// RetrainRuntime is the external job-submission collaborator the
// Model-retraining analyzer calls for a flagged model (spec §1).
type RetrainRuntime interface {
	SubmitRetrainingJob(ctx context.Context, modelName string) error
}

// Analyzers bundles the collaborators every periodic task needs: the
// shared analytical engines (spec §3 Ownership — analyzers never hold
// their own copies of engine state), the alert sink and derived-event
// emitter the Consumer Runtime's family handlers also write through, and
// the two external runtimes above.
type Analyzers struct {
	Engines  *handlers.Engines
	Alerts   consumer.AlertSink
	Emitter  consumer.Emitter
	Predict  PredictionRuntime
	Retrain  RetrainRuntime
	Now      func() time.Time

	mu        sync.Mutex
	flagged   map[string]bool
	predictFB *fallback.Handler
}

func (a *Analyzers) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *Analyzers) emit(ctx context.Context, d events.Derived) {
	if a.Emitter == nil {
		return
	}
	_ = a.Emitter.Emit(ctx, d)
}

// Register wires every periodic analyzer into sched with spec §4.10's
// period table and the 10% jitter spec §4.10 mandates across the board.
func (a *Analyzers) Register(sched *scheduler.Scheduler) error {
	if a.flagged == nil {
		a.flagged = make(map[string]bool)
	}
	if a.predictFB == nil {
		a.predictFB = fallback.NewHandler(fallback.DefaultConfig())
	}
	const jitter = 0.10

	tasks := []struct {
		name   string
		period time.Duration
		fn     scheduler.Task
	}{
		{"aggregate_rolling_stats", 5 * time.Minute, a.aggregateRollingStats},
		{"detect_frustration_patterns", 5 * time.Minute, a.detectFrustrationPatterns},
		{"trend_analysis", 15 * time.Minute, a.trendAnalysis},
		{"critical_path_enumeration", 15 * time.Minute, a.criticalPathEnumeration},
		{"ux_scorecard_recompute", 10 * time.Minute, a.uxScorecardRecompute},
		{"heatmap_generation", time.Hour, a.heatmapGeneration},
		{"session_replay_selection", 15 * time.Minute, a.sessionReplaySelection},
		{"ux_report_generation", time.Hour, a.uxReportGeneration},
		{"baseline_recompute", time.Hour, a.baselineRecompute},
		{"prediction_refresh", 5 * time.Minute, a.predictionRefresh},
		{"model_evaluation", 10 * time.Minute, a.modelEvaluation},
		{"model_retraining", time.Hour, a.modelRetraining},
		{"old_data_cleanup", 24 * time.Hour, a.oldDataCleanup},
	}
	for _, t := range tasks {
		if err := sched.Every(t.name, t.period, jitter, t.fn); err != nil {
			return err
		}
	}
	return nil
}

// aggregateRollingStats emits per-(entity, metric) rolling-window summaries
// onto the aggregates topic (spec §4.10: "emit aggregates topic").
func (a *Analyzers) aggregateRollingStats(ctx context.Context) error {
	if a.Engines == nil || a.Engines.Windows == nil {
		return nil
	}
	at := a.now()
	for _, k := range a.Engines.Windows.Keys() {
		stats := a.Engines.Windows.Stats(k.EntityID, k.Metric)
		if stats.Count == 0 {
			continue
		}
		a.emit(ctx, events.Derived{
			Topic: "metrics-aggregates", Type: "ROLLING_STATS", EntityID: k.EntityID, Timestamp: at,
			Payload: map[string]any{
				"metric": k.Metric, "count": stats.Count, "mean": stats.Mean,
				"min": stats.Min, "max": stats.Max, "stddev": stats.StdDev,
			},
		})
	}
	return nil
}

// detectFrustrationPatterns raises a UX alert for any session whose
// frustration signals or rage clicks have accumulated (spec §4.10: "UX
// alerts").
func (a *Analyzers) detectFrustrationPatterns(ctx context.Context) error {
	if a.Engines == nil || a.Engines.UX == nil || a.Alerts == nil {
		return nil
	}
	for _, card := range a.Engines.UX.Scorecards() {
		if card.Frustrations == 0 && card.RageClicks == 0 {
			continue
		}
		a.Alerts.Raise("FRUSTRATION_PATTERN", alerts.Warning, card.SessionID,
			"repeated frustration/rage-click pattern detected in session")
	}
	return nil
}

// trendAnalysis emits a slope summary for every tracked metric onto the
// trends topic (spec §4.10: "emit trends topic").
func (a *Analyzers) trendAnalysis(ctx context.Context) error {
	if a.Engines == nil || a.Engines.Windows == nil {
		return nil
	}
	at := a.now()
	for _, k := range a.Engines.Windows.Keys() {
		slope, ok := a.Engines.Windows.Slope(k.EntityID, k.Metric)
		if !ok {
			continue
		}
		a.emit(ctx, events.Derived{
			Topic: "trend-analysis", Type: "TREND", EntityID: k.EntityID, Timestamp: at,
			Payload: map[string]any{"metric": k.Metric, "slope": slope},
		})
	}
	return nil
}

// criticalPathEnumeration emits the highest-risk path from every known
// service onto the critical-path topic (spec §4.10: "emit critical-path
// events").
func (a *Analyzers) criticalPathEnumeration(ctx context.Context) error {
	if a.Engines == nil || a.Engines.Graph == nil {
		return nil
	}
	at := a.now()
	for _, svc := range a.Engines.Graph.Services() {
		res, ok := a.Engines.Graph.CriticalPath(svc)
		if !ok || len(res.Path) < 2 {
			continue
		}
		a.emit(ctx, events.Derived{
			Topic: "critical-path-events", Type: "CRITICAL_PATH", EntityID: svc, Timestamp: at,
			Payload: map[string]any{"path": res.Path, "bottleneck": res.Bottleneck, "total_risk": res.TotalRisk},
		})
	}
	return nil
}

// uxScorecardRecompute publishes every active session's current weighted
// overall score (spec §4.10: "update overall score"). The underlying
// subscores are maintained online by the User-experience handler; this
// task is the point at which the composite is surfaced downstream.
func (a *Analyzers) uxScorecardRecompute(ctx context.Context) error {
	if a.Engines == nil || a.Engines.UX == nil {
		return nil
	}
	at := a.now()
	for _, card := range a.Engines.UX.Scorecards() {
		a.emit(ctx, events.Derived{
			Topic: "ux-scorecards", Type: "SCORECARD_UPDATED", EntityID: card.SessionID, Timestamp: at,
			Payload: map[string]any{"overall": card.Overall, "subscores": card.Subscores},
		})
	}
	return nil
}

// heatmapGeneration renders the aggregate page-click heatmap across active
// sessions (spec §4.10: "render page heatmaps").
func (a *Analyzers) heatmapGeneration(ctx context.Context) error {
	if a.Engines == nil || a.Engines.UX == nil {
		return nil
	}
	heatmap := a.Engines.UX.PageHeatmap()
	if len(heatmap) == 0 {
		return nil
	}
	payload := make(map[string]any, len(heatmap))
	for page, n := range heatmap {
		payload[page] = n
	}
	a.emit(ctx, events.Derived{
		Topic: "ux-heatmaps", Type: "HEATMAP", Timestamp: a.now(), Payload: payload,
	})
	return nil
}

// sessionReplaySelection picks sessions worth replaying for support/UX
// review (spec §4.10: "pick 'interesting' sessions (> 50 clicks, rage)").
func (a *Analyzers) sessionReplaySelection(ctx context.Context) error {
	if a.Engines == nil || a.Engines.UX == nil {
		return nil
	}
	ids := a.Engines.UX.InterestingSessions(replaySelectionClickFloor)
	if len(ids) == 0 {
		return nil
	}
	a.emit(ctx, events.Derived{
		Topic: "session-replay-candidates", Type: "REPLAY_CANDIDATES", Timestamp: a.now(),
		Payload: map[string]any{"session_ids": ids},
	})
	return nil
}

// uxReportGeneration emits a rollup report across every active session's
// scorecard (spec §4.10: "emit report").
func (a *Analyzers) uxReportGeneration(ctx context.Context) error {
	if a.Engines == nil || a.Engines.UX == nil {
		return nil
	}
	cards := a.Engines.UX.Scorecards()
	if len(cards) == 0 {
		return nil
	}
	var total float64
	for _, c := range cards {
		total += c.Overall
	}
	a.emit(ctx, events.Derived{
		Topic: "ux-reports", Type: "UX_REPORT", Timestamp: a.now(),
		Payload: map[string]any{"session_count": len(cards), "average_overall": total / float64(len(cards))},
	})
	return nil
}

// baselineRecompute replaces each metric's online baseline with one
// recomputed from the rolling window's retained samples (spec §4.4 / §4.10:
// "replace running baselines"). This stands in for the spec's "last 7 days
// of persisted samples" using the rolling window as the available sample
// source, since the durable store is an external collaborator (spec §1).
func (a *Analyzers) baselineRecompute(ctx context.Context) error {
	if a.Engines == nil || a.Engines.Windows == nil || a.Engines.Baselines == nil {
		return nil
	}
	for _, k := range a.Engines.Windows.Keys() {
		samples := a.Engines.Windows.Samples(k.EntityID, k.Metric)
		if len(samples) == 0 {
			continue
		}
		values := make([]float64, len(samples))
		at := make([]time.Time, len(samples))
		for i, s := range samples {
			values[i] = s.Value
			at[i] = s.Timestamp
		}
		recomputed := baseline.FromSamples(values, at)
		a.Engines.Baselines.Replace(k.EntityID, k.Metric, recomputed)
	}
	return nil
}

// predictionRefresh calls the ML runtime for fresh predictions and
// publishes whatever it returns (spec §4.10: "call ML runtime, publish").
// A nil runtime makes this a no-op rather than an error, since the runtime
// is itself an optional external collaborator. The live call runs through
// a fallback.Handler so a single flaky tick serves the last successful
// batch of predictions (if still within predictionCacheTTL) instead of
// publishing nothing for that period.
func (a *Analyzers) predictionRefresh(ctx context.Context) error {
	if a.Predict == nil {
		return nil
	}
	if a.predictFB == nil {
		a.predictFB = fallback.NewHandler(fallback.DefaultConfig())
	}

	primary := func(ctx context.Context) (interface{}, error) {
		derived, err := a.Predict.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		a.predictFB.SetCache(predictionCacheKey, derived, predictionCacheTTL)
		return derived, nil
	}
	cached := func(ctx context.Context) (interface{}, error) {
		if v, ok := a.predictFB.GetCache(predictionCacheKey); ok {
			return v, nil
		}
		return nil, errPredictionCacheEmpty
	}

	result := a.predictFB.Execute(ctx, primary, cached)
	if result.Err != nil {
		return result.Err
	}
	derived, _ := result.Value.([]events.Derived)
	for _, d := range derived {
		a.emit(ctx, d)
	}
	return nil
}

// modelEvaluation flags any model whose rolling accuracy has fallen below
// the retraining floor (spec §4.10: "flag models for retraining (accuracy <
// 0.80)"). Model accuracy is recorded by the Predictive analytics family
// handler's MODEL_PERFORMANCE branch into the rolling window under the
// model name as entity id.
func (a *Analyzers) modelEvaluation(ctx context.Context) error {
	if a.Engines == nil || a.Engines.Windows == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.flagged == nil {
		a.flagged = make(map[string]bool)
	}
	for _, k := range a.Engines.Windows.Keys() {
		if k.Metric != modelAccuracyMetric {
			continue
		}
		stats := a.Engines.Windows.Stats(k.EntityID, k.Metric)
		if stats.Count == 0 {
			continue
		}
		if stats.Mean < modelAccuracyFloor {
			a.flagged[k.EntityID] = true
			if a.Alerts != nil {
				a.Alerts.Raise("MODEL_ACCURACY_LOW", alerts.Warning, k.EntityID,
					"model accuracy below retraining floor")
			}
		}
	}
	return nil
}

// modelRetraining submits a retraining job for every model flagged by the
// last evaluation pass (spec §4.10: "if flagged, submit retraining job"),
// clearing the flag once submitted.
func (a *Analyzers) modelRetraining(ctx context.Context) error {
	if a.Retrain == nil {
		return nil
	}
	a.mu.Lock()
	toRetrain := make([]string, 0, len(a.flagged))
	for model, flagged := range a.flagged {
		if flagged {
			toRetrain = append(toRetrain, model)
		}
	}
	a.mu.Unlock()

	for _, model := range toRetrain {
		if err := a.Retrain.SubmitRetrainingJob(ctx, model); err != nil {
			continue
		}
		a.mu.Lock()
		delete(a.flagged, model)
		a.mu.Unlock()
	}
	return nil
}

// oldDataCleanup is the scheduled trigger for the in-memory retention the
// engines already own: Windows.Cleanup trims every rolling window (the
// model-accuracy window included) by that window's own max age and sample
// cap, and UX.Sweep expires idle, aged, or oversized sessions. It applies
// no 30-day or 90-day age of its own and does not touch persisted records.
func (a *Analyzers) oldDataCleanup(ctx context.Context) error {
	if a.Engines == nil {
		return nil
	}
	if a.Engines.Windows != nil {
		a.Engines.Windows.Cleanup()
	}
	if a.Engines.UX != nil {
		a.Engines.UX.Sweep(a.now())
	}
	return nil
}
