// Package budget persists embedding token counters in the key-value store.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/panelscope/internal/db"
)

// store is the consumer interface for budget operations.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Default TTLs outlive their period so a late reader still sees the final count.
const (
	DefaultDailyTTL   = 48 * time.Hour
	DefaultMonthlyTTL = 62 * 24 * time.Hour
)

// Store keeps budget counters as integer keys with a TTL.
type Store struct {
	store    store
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a budget store. Daily keys expire after dailyTTL, monthly keys after monthTTL.
// Non-positive TTLs use the defaults.
func New(s store, dailyTTL, monthTTL time.Duration) *Store {
	if dailyTTL <= 0 {
		dailyTTL = DefaultDailyTTL
	}
	if monthTTL <= 0 {
		monthTTL = DefaultMonthlyTTL
	}
	return &Store{
		store:    s,
		dailyTTL: dailyTTL,
		monthTTL: monthTTL,
	}
}

// IncrBy increments the counter and sets its TTL on first write.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	if err := s.store.IncrBy(ctx, key, val); err != nil {
		return fmt.Errorf("budget INCRBY %s: %w", key, err)
	}

	ttl := s.ttlForKey(key)
	if err := s.store.Expire(ctx, key, ttl, true); err != nil {
		return fmt.Errorf("budget EXPIRE %s: %w", key, err)
	}

	return nil
}

// Get returns the current budget value. Returns 0 if the key does not exist.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget GET %s parse: %w", key, err)
	}
	return val, nil
}

// ttlForKey picks the TTL from the period segment of {prefix}budget:{provider}:{period}:{date}.
func (s *Store) ttlForKey(key string) time.Duration {
	if strings.Contains(key, ":daily:") {
		return s.dailyTTL
	}
	return s.monthTTL
}
