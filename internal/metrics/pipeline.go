package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Retrieval and insight pipeline metrics.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage", "case"},
	)

	PartialRecordMismatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_record_mismatch_total",
			Help:      "Identifiers dropped because the relational store had no row for them",
		},
	)

	ExclusionRemovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exclusion_removed_total",
			Help:      "Identifiers removed by the negative exclusion filter",
		},
		[]string{"pass"}, // "lexical" / "vector"
	)

	ReloadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_reload_total",
			Help:      "Engine handle reload attempts",
		},
		[]string{"result"}, // "success" / "error"
	)

	HandlesVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_handles_version",
			Help:      "Version of the currently published engine handles",
		},
	)

	ChartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insight_charts_total",
			Help:      "Charts emitted by priority tier",
		},
		[]string{"tier"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(PartialRecordMismatchTotal)
	prometheus.MustRegister(ExclusionRemovedTotal)
	prometheus.MustRegister(ReloadTotal)
	prometheus.MustRegister(HandlesVersion)
	prometheus.MustRegister(ChartsTotal)
	pipelineMetricsRegistered = true
}

// ObserveStage records the time elapsed since start for a pipeline stage.
func ObserveStage(stage, resolution string, start time.Time) {
	StageDuration.WithLabelValues(stage, resolution).Observe(time.Since(start).Seconds())
}

// CountChart increments the emitted chart counter for a tier.
func CountChart(tier int) {
	ChartsTotal.WithLabelValues(strconv.Itoa(tier)).Inc()
}
