package panelscope

import (
	"context"
	"fmt"
	"time"

	domusage "github.com/kailas-cloud/panelscope/internal/domain/usage"
)

// UsagePeriod is the aggregation granularity for usage reports.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
)

// UsageReport contains embedding usage for the current day or month.
type UsageReport struct {
	Provider    string
	Period      UsagePeriod
	PeriodStart time.Time
	PeriodEnd   time.Time
	Calls       int64
	Tokens      int64
	Budget      BudgetStatus
}

// BudgetStatus tracks token quota state. A zero TokensLimit is unlimited.
type BudgetStatus struct {
	TokensLimit     int64
	TokensRemaining int64
	IsExhausted     bool
	ResetsAt        time.Time
}

// Usage returns an embedding usage report for the given period.
// Counters cover calls made by this client since it started, merged with
// the persisted token totals.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) (_ UsageReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err) }()

	p, err := domusage.ParsePeriod(string(period))
	if err != nil {
		return UsageReport{}, fmt.Errorf("usage: %w", err)
	}

	r := c.usageSvc.Report(ctx, p)
	return UsageReport{
		Provider:    r.Provider,
		Period:      UsagePeriod(r.Period),
		PeriodStart: r.PeriodStart,
		PeriodEnd:   r.PeriodEnd,
		Calls:       r.Consumption.Calls,
		Tokens:      r.Consumption.Tokens,
		Budget: BudgetStatus{
			TokensLimit:     r.Quota.Limit,
			TokensRemaining: r.Quota.Remaining,
			IsExhausted:     r.Quota.Exhausted(),
			ResetsAt:        r.Quota.ResetsAt,
		},
	}, nil
}

// usageUseCase is the internal interface for usage reports.
type usageUseCase interface {
	Report(ctx context.Context, period domusage.Period) domusage.Report
}
