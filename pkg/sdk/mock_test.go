package panelscope

import (
	"context"

	"github.com/kailas-cloud/panelscope/internal/domain/chart"
	"github.com/kailas-cloud/panelscope/internal/domain/intent"
	"github.com/kailas-cloud/panelscope/internal/domain/record"
	domusage "github.com/kailas-cloud/panelscope/internal/domain/usage"
	"github.com/kailas-cloud/panelscope/internal/usecase/engine"
	healthuc "github.com/kailas-cloud/panelscope/internal/usecase/health"
)

// --- resolveUseCase mock ---

type mockResolveUC struct {
	resolveFn func(ctx context.Context, in intent.QueryIntent) (record.FinalRecordSet, error)
}

func (m *mockResolveUC) Resolve(ctx context.Context, in intent.QueryIntent) (record.FinalRecordSet, error) {
	return m.resolveFn(ctx, in)
}

func (m *mockResolveUC) ResolvePopulation(
	ctx context.Context, in intent.QueryIntent,
) (record.FinalRecordSet, record.FinalRecordSet, error) {
	all, err := m.resolveFn(ctx, in.Unbounded())
	if err != nil {
		return record.FinalRecordSet{}, record.FinalRecordSet{}, err
	}
	return all, all.Head(in.Limit()), nil
}

// --- insightUseCase mock ---

type mockInsightUC struct {
	generateFn func(ctx context.Context, records []record.Record, in intent.QueryIntent, minCharts int) ([]chart.Spec, error)
}

func (m *mockInsightUC) Generate(
	ctx context.Context, records []record.Record, in intent.QueryIntent, minCharts int,
) ([]chart.Spec, error) {
	return m.generateFn(ctx, records, in, minCharts)
}

// --- reloadUseCase mock ---

type mockReloadUC struct {
	reloadFn func(ctx context.Context) (*engine.Handles, error)
}

func (m *mockReloadUC) Reload(ctx context.Context) (*engine.Handles, error) {
	return m.reloadFn(ctx)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- usageUseCase mock ---

type mockUsageUC struct {
	reportFn func(ctx context.Context, p domusage.Period) domusage.Report
}

func (m *mockUsageUC) Report(ctx context.Context, p domusage.Period) domusage.Report {
	return m.reportFn(ctx, p)
}

// --- helpers ---

func testClient(res resolveUseCase, ins insightUseCase) *Client {
	return &Client{resolver: res, insights: ins}
}
