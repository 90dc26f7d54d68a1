package baseline

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// welfordClosedForm computes mean/variance directly, for the convergence
// property in spec §8: "after 30 samples, the baseline's reported mean and
// variance match Welford's closed-form over those samples".
func welfordClosedForm(values []float64) (mean, variance float64) {
	n := float64(len(values))
	for _, v := range values {
		mean += v
	}
	mean /= n
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= n
	return
}

func TestEngine_BaselineConvergence(t *testing.T) {
	e := New()
	values := make([]float64, 30)
	base := time.Now()
	for i := range values {
		values[i] = float64(50 + i%7)
	}

	var last Observation
	for i, v := range values {
		last = e.Observe("svc-a", "cpu", v, base.Add(time.Duration(i)*time.Second))
	}

	wantMean, wantVariance := welfordClosedForm(values)
	snap := e.Snapshot("svc-a", "cpu")
	assert.InDelta(t, wantMean, snap.Mean, 1e-9)
	assert.InDelta(t, wantVariance, snap.Variance(), 1e-9)
	assert.True(t, last.Ready, "30th sample should report a ready baseline")
}

func TestEngine_NotReadyNeverAnomalous(t *testing.T) {
	e := New()
	base := time.Now()
	for i := 0; i < readyCount-1; i++ {
		obs := e.Observe("svc-a", "cpu", 1000000, base.Add(time.Duration(i)*time.Second))
		assert.False(t, obs.Anomalous, "baseline not ready yet, must never flag anomaly")
		assert.False(t, obs.Ready)
	}
}

func TestEngine_AnomalyDetection(t *testing.T) {
	e := New(WithSensitivity(3.0))
	base := time.Now()
	for i := 0; i < readyCount; i++ {
		e.Observe("svc-a", "latency_ms", 100, base.Add(time.Duration(i)*time.Second))
	}
	obs := e.Observe("svc-a", "latency_ms", 100, base.Add(40*time.Second))
	assert.False(t, obs.Anomalous, "identical-to-mean value is never anomalous")

	spike := e.Observe("svc-a", "latency_ms", 100000, base.Add(41*time.Second))
	assert.True(t, spike.Anomalous)
	assert.Greater(t, math.Abs(spike.ZScore), 3.0)
}

type fakeSeasonality struct {
	strength  float64
	component float64
}

func (f fakeSeasonality) Seasonal(entityID, metric string, at time.Time) (float64, float64, bool) {
	return f.strength, f.component, true
}

func TestEngine_SeasonalAdjustment(t *testing.T) {
	e := New(WithSeasonality(fakeSeasonality{strength: 0.9, component: 50}))
	base := time.Now()
	for i := 0; i < readyCount; i++ {
		e.Observe("svc-a", "traffic", 100, base.Add(time.Duration(i)*time.Second))
	}
	// raw value 150 minus a seasonal component of 50 gives 100; the warm-up
	// samples were de-seasoned the same way (mean 50, zero spread), so the
	// z-score is 0 and the point is not flagged
	obs := e.Observe("svc-a", "traffic", 150, base.Add(40*time.Second))
	assert.True(t, obs.Seasonally)
	assert.InDelta(t, 100, obs.Adjusted, 1e-9)
	assert.False(t, obs.Anomalous)
}

func TestEngine_WeakSeasonalityIgnored(t *testing.T) {
	e := New(WithSeasonality(fakeSeasonality{strength: 0.2, component: 50}))
	base := time.Now()
	for i := 0; i < readyCount; i++ {
		e.Observe("svc-a", "traffic", 100, base.Add(time.Duration(i)*time.Second))
	}
	obs := e.Observe("svc-a", "traffic", 100, base.Add(40*time.Second))
	assert.False(t, obs.Seasonally, "strength below 0.5 must not trigger adjustment")
}

func TestEngine_Replace(t *testing.T) {
	e := New()
	e.Observe("svc-a", "cpu", 1, time.Now())
	replacement := Estimator{Count: 40, Mean: 42}
	e.Replace("svc-a", "cpu", replacement)
	snap := e.Snapshot("svc-a", "cpu")
	require.Equal(t, int64(40), snap.Count)
	assert.Equal(t, 42.0, snap.Mean)
}

func TestFromSamples(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	est := FromSamples(values, nil)
	wantMean, wantVariance := welfordClosedForm(values)
	assert.InDelta(t, wantMean, est.Mean, 1e-9)
	assert.InDelta(t, wantVariance, est.Variance(), 1e-9)
}
