package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/metrics"
	"github.com/kailas-cloud/panelscope/internal/usecase/retrieval"
)

// Factory builds a complete, ready-to-serve set of handles.
type Factory func(ctx context.Context) (*Handles, error)

// Manager owns the published handles.
type Manager struct {
	factory Factory
	logger  *zap.Logger
	now     func() time.Time

	current atomic.Pointer[generation]
	version atomic.Uint64
	reloads singleflight.Group
}

// New builds the first generation of handles and publishes it.
func New(ctx context.Context, factory Factory, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{factory: factory, logger: logger, now: time.Now}
	if _, err := m.Reload(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Acquire leases the current handles. Callers must Release the lease.
// Acquire must not be called after Close.
func (m *Manager) Acquire() *Lease {
	for {
		g := m.current.Load()
		if g == nil {
			panic("engine: Acquire after Close")
		}
		if g.acquire() {
			return &Lease{gen: g}
		}
	}
}

// Acquirer adapts the manager to the retrieval pipeline.
func (m *Manager) Acquirer() retrieval.Acquirer {
	return func() (retrieval.Stores, func()) {
		l := m.Acquire()
		return l.Handles().Stores(), l.Release
	}
}

// Version returns the version of the published handles.
func (m *Manager) Version() uint64 {
	l := m.Acquire()
	defer l.Release()
	return l.Handles().Version
}

// Reload builds new handles and publishes them. Concurrent calls share one
// build. On failure the previous handles stay published and the error wraps
// domain.ErrReloadFailure.
func (m *Manager) Reload(ctx context.Context) (*Handles, error) {
	v, err, shared := m.reloads.Do("reload", func() (any, error) {
		return m.reload(ctx)
	})
	if shared {
		m.logger.Debug("Joined in-flight reload")
	}
	if err != nil {
		return nil, err //nolint:wrapcheck // already wrapped in reload
	}
	return v.(*Handles), nil
}

func (m *Manager) reload(ctx context.Context) (*Handles, error) {
	start := time.Now()
	h, err := m.factory(ctx)
	if err == nil && h == nil {
		err = errors.New("factory returned no handles")
	}
	if err != nil {
		metrics.ReloadTotal.WithLabelValues("error").Inc()
		m.logger.Error("Engine reload failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("%w: %w", domain.ErrReloadFailure, err)
	}

	h.Version = m.version.Add(1)
	h.ID = uuid.New()
	h.BuiltAt = m.now()

	old := m.current.Swap(newGeneration(h))
	if old != nil {
		old.release()
	}
	if h.OnPublish != nil {
		h.OnPublish(ctx)
	}

	metrics.ReloadTotal.WithLabelValues("success").Inc()
	metrics.HandlesVersion.Set(float64(h.Version))
	m.logger.Info("Engine handles published",
		zap.String("version", strconv.FormatUint(h.Version, 10)),
		zap.String("id", h.ID.String()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return h, nil
}

// Close retires the published handles. Their resources close once the last
// lease is released.
func (m *Manager) Close() {
	if g := m.current.Swap(nil); g != nil {
		g.release()
	}
}

// PingRelational checks the relational store of the current handles.
func (m *Manager) PingRelational(ctx context.Context) error {
	return m.ping(ctx, func(h *Handles) Pinger { return h.Relational })
}

// PingVector checks the vector store of the current handles.
func (m *Manager) PingVector(ctx context.Context) error {
	return m.ping(ctx, func(h *Handles) Pinger { return h.Vector })
}

func (m *Manager) ping(ctx context.Context, pick func(*Handles) Pinger) error {
	l := m.Acquire()
	defer l.Release()
	p := pick(l.Handles())
	if p == nil {
		return nil
	}
	return p.Ping(ctx) //nolint:wrapcheck // health checks report the raw cause
}

// HealthCheck checks the embedding provider of the current handles.
func (m *Manager) HealthCheck(ctx context.Context) error {
	l := m.Acquire()
	defer l.Release()
	if hc, ok := l.Handles().Embedder.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // health checks report the raw cause
	}
	return nil
}
