// Package usage reports embedding consumption against the configured budget.
package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/panelscope/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	provider string
	br       BudgetReader
	now      func() time.Time
}

// New creates a Service. br can be nil when no budget is configured; reports
// are then unlimited with zero consumption.
func New(provider string, br BudgetReader) *Service {
	return &Service{provider: provider, br: br, now: time.Now}
}

// Report builds a usage report for the period containing now.
func (s *Service) Report(_ context.Context, period domusage.Period) domusage.Report {
	start, end := period.Bounds(s.now())
	r := domusage.Report{
		Provider:    s.provider,
		Period:      period,
		PeriodStart: start,
		PeriodEnd:   end,
		Quota:       domusage.Quota{Remaining: -1, ResetsAt: end},
	}
	if s.br == nil {
		return r
	}

	if period == domusage.PeriodMonth {
		r.Consumption = domusage.Consumption{Calls: s.br.MonthlyCalls(), Tokens: s.br.MonthlyUsed()}
		r.Quota.Limit = s.br.MonthlyLimit()
		r.Quota.Remaining = s.br.RemainingMonthly()
		return r
	}
	r.Consumption = domusage.Consumption{Calls: s.br.DailyCalls(), Tokens: s.br.DailyUsed()}
	r.Quota.Limit = s.br.DailyLimit()
	r.Quota.Remaining = s.br.RemainingDaily()
	return r
}
