package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRecorder_CounterLazilyRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Counter("baseline.anomalies", map[string]string{"metric": "cpu"}, 1)
	r.Counter("baseline.anomalies", map[string]string{"metric": "cpu"}, 2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(mfs) != 1 {
		t.Fatalf("expected exactly one metric family, got %d", len(mfs))
	}
}

func TestSanitizeMetricName(t *testing.T) {
	if got := sanitizeMetricName("baseline.z-score!"); got != "svc_baseline_z_score_" {
		t.Errorf("unexpected sanitized name: %q", got)
	}
}
