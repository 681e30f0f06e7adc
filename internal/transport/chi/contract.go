package chi

import (
	"context"

	"github.com/kailas-cloud/panelscope/internal/domain/chart"
	"github.com/kailas-cloud/panelscope/internal/domain/intent"
	"github.com/kailas-cloud/panelscope/internal/domain/record"
	domusage "github.com/kailas-cloud/panelscope/internal/domain/usage"
	"github.com/kailas-cloud/panelscope/internal/usecase/engine"
	healthuc "github.com/kailas-cloud/panelscope/internal/usecase/health"
)

// Resolver runs the retrieval pipeline.
type Resolver interface {
	Resolve(ctx context.Context, in intent.QueryIntent) (record.FinalRecordSet, error)
	ResolvePopulation(ctx context.Context, in intent.QueryIntent) (population, page record.FinalRecordSet, err error)
}

// InsightGenerator prioritizes charts for a record set.
type InsightGenerator interface {
	Generate(ctx context.Context, records []record.Record, in intent.QueryIntent, minCharts int) ([]chart.Spec, error)
}

// Reloader swaps the engine handles.
type Reloader interface {
	Reload(ctx context.Context) (*engine.Handles, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageReporter reports embedding consumption.
type UsageReporter interface {
	Report(ctx context.Context, period domusage.Period) domusage.Report
}
