package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveStage(t *testing.T) {
	ObserveStage("rerank", "scoped_vector", time.Now().Add(-10*time.Millisecond))
	if n := testutil.CollectAndCount(StageDuration); n == 0 {
		t.Error("expected a stage_duration_seconds series")
	}
}

func TestCountChart(t *testing.T) {
	before := testutil.ToFloat64(ChartsTotal.WithLabelValues("2"))
	CountChart(2)
	CountChart(2)
	if got := testutil.ToFloat64(ChartsTotal.WithLabelValues("2")); got != before+2 {
		t.Errorf("charts_total{tier=2} = %f, want %f", got, before+2)
	}
}

func TestRegisterPipelineMetrics_Idempotent(t *testing.T) {
	RegisterPipelineMetrics()
	RegisterPipelineMetrics()
}
