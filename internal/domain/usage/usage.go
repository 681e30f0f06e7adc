// Package usage describes embedding consumption reports.
package usage

import (
	"fmt"
	"time"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod maps a query value to a Period. Empty means a day.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// Bounds returns the UTC window of the period containing t.
func (p Period) Bounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	if p == PeriodMonth {
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// Consumption is what the embedding provider was asked for in a period.
type Consumption struct {
	Calls  int64
	Tokens int64
}

// Quota is the token budget state. Limit zero means unlimited, in which case
// Remaining is -1 and the quota is never exhausted.
type Quota struct {
	Limit     int64
	Remaining int64
	ResetsAt  time.Time
}

// Unlimited reports whether no cap is configured.
func (q Quota) Unlimited() bool { return q.Limit <= 0 }

// Exhausted reports whether the cap has been reached.
func (q Quota) Exhausted() bool { return !q.Unlimited() && q.Remaining <= 0 }

// Report is an embedding usage report for one provider and period.
type Report struct {
	Provider    string
	Period      Period
	PeriodStart time.Time
	PeriodEnd   time.Time
	Consumption Consumption
	Quota       Quota
}
