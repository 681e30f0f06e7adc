// Package embedding guards query embedding with a per-provider token budget.
package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/panelscope/internal/domain"
)

// BudgetAction defines behavior when the token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// ParseBudgetAction maps a config value to an action. Anything but "reject" warns.
func ParseBudgetAction(s string) BudgetAction {
	if s == string(BudgetActionReject) {
		return BudgetActionReject
	}
	return BudgetActionWarn
}

// BudgetStore persists budget counters. IncrBy may be called repeatedly for one key.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// BudgetTracker counts tokens per UTC day and month.
// Check is in-memory only; Record updates memory first and then writes behind to the store.
type BudgetTracker struct {
	mu             sync.Mutex
	dailyUsed      int64
	monthlyUsed    int64
	dailyCalls     int64
	monthlyCalls   int64
	dailyLimit     int64
	monthlyLimit   int64
	action         BudgetAction
	provider       string
	prefix         string
	lastDayReset   time.Time
	lastMonthReset time.Time
	store          BudgetStore
	now            func() time.Time
	logger         *zap.Logger
}

// NewBudgetTracker creates a tracker. Zero limits mean unlimited.
func NewBudgetTracker(
	provider, prefix string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &BudgetTracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		provider:     provider,
		prefix:       prefix,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
	now := b.now()
	b.lastDayReset = truncateToDay(now)
	b.lastMonthReset = truncateToMonth(now)
	return b
}

// WithStore loads the current counters from store and then attaches it.
// It may be called again when the store is replaced. The store is read without
// holding the tracker lock, so Check and Record never wait on it.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	now := b.now()
	dailyKey, monthlyKey := b.dailyKey(now), b.monthlyKey(now)

	daily, dailyErr := store.Get(ctx, dailyKey)
	if dailyErr != nil {
		b.logger.Warn("Failed to load daily budget from store", zap.Error(dailyErr))
	}
	monthly, monthlyErr := store.Get(ctx, monthlyKey)
	if monthlyErr != nil {
		b.logger.Warn("Failed to load monthly budget from store", zap.Error(monthlyErr))
	}

	b.mu.Lock()
	b.store = store
	b.resetIfNeeded()
	// Counters read before a rollover belong to the previous period.
	current := b.now()
	if dailyErr == nil && b.dailyKey(current) == dailyKey {
		b.dailyUsed = max(b.dailyUsed, daily)
	}
	if monthlyErr == nil && b.monthlyKey(current) == monthlyKey {
		b.monthlyUsed = max(b.monthlyUsed, monthly)
	}
	dailyUsed, monthlyUsed := b.dailyUsed, b.monthlyUsed
	b.mu.Unlock()

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", dailyUsed),
		zap.Int64("monthly_used", monthlyUsed),
	)
	return b
}

func (b *BudgetTracker) dailyKey(t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:daily:%s", b.prefix, b.provider, t.Format("2006-01-02"))
}

func (b *BudgetTracker) monthlyKey(t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:monthly:%s", b.prefix, b.provider, t.Format("2006-01"))
}

// Check reports whether a new request is allowed.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()

	dailyExceeded := b.dailyLimit > 0 && b.dailyUsed >= b.dailyLimit
	monthlyExceeded := b.monthlyLimit > 0 && b.monthlyUsed >= b.monthlyLimit
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if b.action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("daily_limit", b.dailyLimit),
		zap.Int64("monthly_used", b.monthlyUsed),
		zap.Int64("monthly_limit", b.monthlyLimit),
	)
	return nil
}

// Record registers consumed tokens.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	b.resetIfNeeded()
	b.dailyUsed += tokens
	b.monthlyUsed += tokens
	b.dailyCalls++
	b.monthlyCalls++
	store := b.store
	now := b.now()
	dailyKey := b.dailyKey(now)
	monthlyKey := b.monthlyKey(now)
	b.mu.Unlock()

	if store == nil {
		return
	}

	// The caller's context may already be done; persistence must not depend on it.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.IncrBy(ctx, dailyKey, tokens); err != nil {
		b.logger.Warn("Failed to persist daily budget", zap.String("key", dailyKey), zap.Error(err))
	}
	if err := store.IncrBy(ctx, monthlyKey, tokens); err != nil {
		b.logger.Warn("Failed to persist monthly budget", zap.String("key", monthlyKey), zap.Error(err))
	}
}

// RemainingDaily returns tokens left today, or -1 when unlimited.
func (b *BudgetTracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.dailyLimit, b.dailyUsed)
}

// RemainingMonthly returns tokens left this month, or -1 when unlimited.
func (b *BudgetTracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.monthlyLimit, b.monthlyUsed)
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

// DailyUsed returns tokens consumed today.
func (b *BudgetTracker) DailyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.dailyUsed
}

// MonthlyUsed returns tokens consumed this month.
func (b *BudgetTracker) MonthlyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.monthlyUsed
}

// DailyCalls returns provider calls recorded today by this process.
func (b *BudgetTracker) DailyCalls() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.dailyCalls
}

// MonthlyCalls returns provider calls recorded this month by this process.
func (b *BudgetTracker) MonthlyCalls() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.monthlyCalls
}

// DailyLimit returns the daily token cap; zero is unlimited.
func (b *BudgetTracker) DailyLimit() int64 { return b.dailyLimit }

// MonthlyLimit returns the monthly token cap; zero is unlimited.
func (b *BudgetTracker) MonthlyLimit() int64 { return b.monthlyLimit }

// resetIfNeeded zeroes counters when the day or month rolls over. Callers hold mu.
func (b *BudgetTracker) resetIfNeeded() {
	now := b.now()
	today := truncateToDay(now)
	thisMonth := truncateToMonth(now)

	if today.After(b.lastDayReset) {
		b.dailyUsed = 0
		b.dailyCalls = 0
		b.lastDayReset = today
	}
	if thisMonth.After(b.lastMonthReset) {
		b.monthlyUsed = 0
		b.monthlyCalls = 0
		b.lastMonthReset = thisMonth
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
