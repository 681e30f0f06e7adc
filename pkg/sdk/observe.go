package panelscope

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panelscope",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Total SDK operations by type and outcome.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "panelscope",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("panelscope: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("panelscope: register metric: %w", err)
	}
	return nil
}

// statusOf buckets an error into a low-cardinality status label.
func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidFilterField), errors.Is(err, ErrInvalidFilterValue), errors.Is(err, ErrInvalidIntent):
		return "invalid"
	case errors.Is(err, ErrEmbeddingQuotaExceeded):
		return "quota"
	case errors.Is(err, ErrEmbeddingFailure):
		return "embedding"
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrReloadFailure):
		return "unavailable"
	default:
		return "error"
	}
}

// observer provides logging and metrics for SDK operations.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

func (o *observer) observe(op string, start time.Time, err error, attrs ...any) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	status := statusOf(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger == nil {
		return
	}
	attrs = append(attrs, "op", op, "duration", dur)
	if err != nil {
		o.logger.Warn("operation failed", append(attrs, "status", status, "error", err)...)
		return
	}
	o.logger.Debug("operation completed", attrs...)
}
