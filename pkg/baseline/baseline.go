// Package baseline implements the Baseline & Anomaly Engine (spec §4.4): a
// Welford running mean/variance estimator per (entityID, metric), a z-score
// anomaly test gated by a readiness threshold, and seasonal adjustment when
// a seasonality detector reports a strong periodic component.
package baseline

import (
	"math"
	"sync"
	"time"
)

// readyCount is the sample count at which a baseline is considered ready
// (spec §3: "ready once count >= 30").
const readyCount = 30

// DefaultSensitivity is the z-score multiplier k used when none is
// configured (spec §6 `anomaly.sensitivity`).
const DefaultSensitivity = 3.0

// SeasonalityStrengthThreshold is the minimum strength (spec glossary:
// fraction of variance explained by a periodic component) at which the
// seasonal component is subtracted before the z-score test (spec §4.4).
const SeasonalityStrengthThreshold = 0.5

// Estimator is a single Welford running mean/variance accumulator.
type Estimator struct {
	Count      int64
	Mean       float64
	m2         float64 // sum of squared deviations from the mean
	LastUpdate time.Time
}

// Observe folds one sample into the estimator (Welford's online algorithm).
func (e *Estimator) Observe(x float64, at time.Time) {
	e.Count++
	delta := x - e.Mean
	e.Mean += delta / float64(e.Count)
	delta2 := x - e.Mean
	e.m2 += delta * delta2
	e.LastUpdate = at
}

// Variance returns the population variance accumulated so far.
func (e *Estimator) Variance() float64 {
	if e.Count < 2 {
		return 0
	}
	return e.m2 / float64(e.Count)
}

// StdDev returns the population standard deviation accumulated so far.
func (e *Estimator) StdDev() float64 {
	return math.Sqrt(e.Variance())
}

// Ready reports whether this estimator has seen enough samples to score
// anomalies (spec §3: count >= 30).
func (e *Estimator) Ready() bool {
	return e.Count >= readyCount
}

// key identifies one baseline.
type key struct {
	entityID string
	metric   string
}

// SeasonalityLookup resolves the seasonality strength and seasonal
// component (the expected value at time t, absent noise) for a metric, if a
// seasonality detector has reported one. A nil lookup disables seasonal
// adjustment entirely.
type SeasonalityLookup interface {
	Seasonal(entityID, metric string, at time.Time) (strength, component float64, ok bool)
}

// Engine owns every (entityID, metric) baseline the consumer updates
// online, plus the hourly-recomputed authoritative baseline swapped in by
// the baseline-recompute analyzer.
type Engine struct {
	mu          sync.RWMutex
	estimators  map[key]*Estimator
	sensitivity float64
	seasonality SeasonalityLookup
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithSensitivity overrides the default z-score multiplier k.
func WithSensitivity(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.sensitivity = k
		}
	}
}

// WithSeasonality wires a seasonality lookup used to de-trend observations
// before scoring (spec §4.4).
func WithSeasonality(s SeasonalityLookup) Option {
	return func(e *Engine) { e.seasonality = s }
}

// New creates an Engine with the given options applied.
func New(opts ...Option) *Engine {
	e := &Engine{
		estimators:  make(map[key]*Estimator),
		sensitivity: DefaultSensitivity,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) estimatorFor(entityID, metric string) *Estimator {
	k := key{entityID: entityID, metric: metric}

	e.mu.RLock()
	est, ok := e.estimators[k]
	e.mu.RUnlock()
	if ok {
		return est
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if est, ok := e.estimators[k]; ok {
		return est
	}
	est = &Estimator{}
	e.estimators[k] = est
	return est
}

// Observation is the result of scoring one value against its baseline.
type Observation struct {
	Anomalous  bool
	ZScore     float64
	Mean       float64
	StdDev     float64
	Ready      bool
	Adjusted   float64 // value after seasonal subtraction, equal to raw value when no seasonality applies
	Seasonally bool    // true if a seasonal component was subtracted
}

// Observe folds x into the (entityID, metric) baseline and scores it for
// anomaly. Before the baseline is ready (fewer than 30 samples), the
// observation is folded in but reported non-anomalous, per spec §4.4.
func (e *Engine) Observe(entityID, metric string, x float64, at time.Time) Observation {
	est := e.estimatorFor(entityID, metric)

	e.mu.Lock()
	defer e.mu.Unlock()

	adjusted := x
	seasonallyAdjusted := false
	if e.seasonality != nil {
		if strength, component, ok := e.seasonality.Seasonal(entityID, metric, at); ok && strength >= SeasonalityStrengthThreshold {
			adjusted = x - component
			seasonallyAdjusted = true
		}
	}

	wasReady := est.Ready()
	mean, stddev := est.Mean, est.StdDev()

	est.Observe(adjusted, at)

	if !wasReady {
		return Observation{Anomalous: false, Ready: est.Ready(), Adjusted: adjusted, Seasonally: seasonallyAdjusted}
	}

	var z float64
	if stddev > 0 {
		z = (adjusted - mean) / stddev
	}
	anomalous := math.Abs(z) > e.sensitivity

	return Observation{
		Anomalous:  anomalous,
		ZScore:     z,
		Mean:       mean,
		StdDev:     stddev,
		Ready:      true,
		Adjusted:   adjusted,
		Seasonally: seasonallyAdjusted,
	}
}

// Snapshot exposes an estimator's current stats without mutating it, for
// dashboards and the trend-analysis analyzer.
func (e *Engine) Snapshot(entityID, metric string) Estimator {
	est := e.estimatorFor(entityID, metric)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *est
}

// Replace atomically swaps the running estimator for (entityID, metric)
// with one recomputed externally (spec §4.4: "hourly, from the last 7 days
// of persisted samples; the recomputed baseline replaces the online one
// atomically").
func (e *Engine) Replace(entityID, metric string, recomputed Estimator) {
	k := key{entityID: entityID, metric: metric}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.estimators[k] = &recomputed
}

// FromSamples builds an Estimator from a batch of (value, timestamp) pairs
// using Welford's algorithm, for the hourly baseline-recompute analyzer
// that re-derives a baseline from persisted samples rather than the live
// online stream.
func FromSamples(values []float64, at []time.Time) Estimator {
	var est Estimator
	for i, v := range values {
		ts := time.Time{}
		if i < len(at) {
			ts = at[i]
		}
		est.Observe(v, ts)
	}
	return est
}

// Keys returns every (entityID, metric) pair currently tracked.
func (e *Engine) Keys() []struct{ EntityID, Metric string } {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]struct{ EntityID, Metric string }, 0, len(e.estimators))
	for k := range e.estimators {
		out = append(out, struct{ EntityID, Metric string }{k.entityID, k.metric})
	}
	return out
}
