package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates every component failed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used in Report.Checks.
const (
	ComponentRelational = "relational"
	ComponentVector     = "vector"
	ComponentEmbedding  = "embedding"
)

// checkTimeout bounds each component check.
const checkTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	relational Pinger
	vector     Pinger
	embedding  EmbeddingChecker
}

// New creates a Service. embedding can be nil.
func New(relational, vector Pinger, embedding EmbeddingChecker) *Service {
	return &Service{relational: relational, vector: vector, embedding: embedding}
}

// Check pings all components concurrently.
func (s *Service) Check(ctx context.Context) Report {
	pings := map[string]func(context.Context) error{
		ComponentRelational: s.relational.Ping,
		ComponentVector:     s.vector.Ping,
	}
	if s.embedding != nil {
		pings[ComponentEmbedding] = s.embedding.HealthCheck
	}

	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(pings))
		failed  int
		g       errgroup.Group
	)
	for name, ping := range pings {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			err := ping(pctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[name] = CheckError
				failed++
			} else {
				results[name] = CheckOK
			}
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	switch {
	case failed == len(pings):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}
	return Report{Status: status, Checks: results}
}
