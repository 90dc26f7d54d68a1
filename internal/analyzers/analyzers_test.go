package analyzers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-signal/telemetry-engine/internal/handlers"
	"github.com/lattice-signal/telemetry-engine/pkg/alerts"
	"github.com/lattice-signal/telemetry-engine/pkg/baseline"
	"github.com/lattice-signal/telemetry-engine/pkg/depgraph"
	"github.com/lattice-signal/telemetry-engine/pkg/events"
	"github.com/lattice-signal/telemetry-engine/pkg/rollingwindow"
	"github.com/lattice-signal/telemetry-engine/pkg/uxscore"
)

type fakeEmitter struct {
	mu       sync.Mutex
	emitted  []events.Derived
}

func (f *fakeEmitter) Emit(ctx context.Context, d events.Derived) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, d)
	return nil
}
func (f *fakeEmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.emitted)
}

type fakeAlertSink struct {
	mu     sync.Mutex
	raised []string
}

func (f *fakeAlertSink) Raise(alertType string, severity alerts.Severity, entityID, message string) (alerts.Alert, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raised = append(f.raised, alertType+"|"+entityID)
	return alerts.Alert{Type: alertType, EntityID: entityID}, true
}
func (f *fakeAlertSink) Resolve(alertType, entityID string) (alerts.Alert, bool) { return alerts.Alert{}, false }

func TestAggregateRollingStats_EmitsPerKey(t *testing.T) {
	windows := rollingwindow.New(rollingwindow.DefaultConfig())
	windows.Record("svc-a", "cpu_usage", 50, time.Now())
	emitter := &fakeEmitter{}
	a := &Analyzers{Engines: &handlers.Engines{Windows: windows}, Emitter: emitter, Now: time.Now}

	require.NoError(t, a.aggregateRollingStats(context.Background()))
	assert.Equal(t, 1, emitter.count())
}

func TestDetectFrustrationPatterns_RaisesAlertForFrustratedSession(t *testing.T) {
	ux := uxscore.New()
	ux.RecordFrustration("sess-1", time.Now())
	sink := &fakeAlertSink{}
	a := &Analyzers{Engines: &handlers.Engines{UX: ux}, Alerts: sink, Now: time.Now}

	require.NoError(t, a.detectFrustrationPatterns(context.Background()))
	assert.Contains(t, sink.raised, "FRUSTRATION_PATTERN|sess-1")
}

func TestCriticalPathEnumeration_EmitsForMultiHopPath(t *testing.T) {
	graph := depgraph.New()
	now := time.Now()
	graph.Observe("checkout", "payments", depgraph.CallStats{Success: true, At: now})
	graph.Observe("payments", "ledger", depgraph.CallStats{Success: true, At: now})
	emitter := &fakeEmitter{}
	a := &Analyzers{Engines: &handlers.Engines{Graph: graph}, Emitter: emitter, Now: time.Now}

	require.NoError(t, a.criticalPathEnumeration(context.Background()))
	assert.GreaterOrEqual(t, emitter.count(), 1)
}

func TestModelEvaluationThenRetraining_FlagsAndSubmits(t *testing.T) {
	windows := rollingwindow.New(rollingwindow.DefaultConfig())
	windows.Record("model-a", modelAccuracyMetric, 0.5, time.Now())
	sink := &fakeAlertSink{}

	submitted := make(chan string, 1)
	retrain := retrainFunc(func(ctx context.Context, model string) error {
		submitted <- model
		return nil
	})

	a := &Analyzers{Engines: &handlers.Engines{Windows: windows}, Alerts: sink, Retrain: retrain, Now: time.Now}

	require.NoError(t, a.modelEvaluation(context.Background()))
	assert.Contains(t, sink.raised, "MODEL_ACCURACY_LOW|model-a")

	require.NoError(t, a.modelRetraining(context.Background()))
	select {
	case model := <-submitted:
		assert.Equal(t, "model-a", model)
	default:
		t.Fatal("expected a retraining job to be submitted")
	}
}

type retrainFunc func(ctx context.Context, model string) error

func (f retrainFunc) SubmitRetrainingJob(ctx context.Context, model string) error { return f(ctx, model) }

func TestBaselineRecompute_ReplacesEstimatorFromSamples(t *testing.T) {
	windows := rollingwindow.New(rollingwindow.DefaultConfig())
	now := time.Now()
	for i := 0; i < 5; i++ {
		windows.Record("svc-a", "cpu_usage", float64(i), now)
	}
	baselines := baseline.New()
	a := &Analyzers{Engines: &handlers.Engines{Windows: windows, Baselines: baselines}, Now: time.Now}

	require.NoError(t, a.baselineRecompute(context.Background()))
	snap := baselines.Snapshot("svc-a", "cpu_usage")
	assert.EqualValues(t, 5, snap.Count)
}

func TestOldDataCleanup_SweepsUXSessions(t *testing.T) {
	ux := uxscore.New()
	ux.RecordClick("sess-1", "/home", false, time.Now().Add(-48*time.Hour))
	a := &Analyzers{Engines: &handlers.Engines{UX: ux}, Now: time.Now}

	require.NoError(t, a.oldDataCleanup(context.Background()))
	assert.Equal(t, 0, ux.Size())
}
