// Package worker bounds CPU-heavy work (insight scans, cosine post-processing) on an ants pool.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// ErrPanic wraps a panic recovered inside a task.
var ErrPanic = errors.New("worker task panicked")

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	pool *ants.Pool
}

// New creates a pool of size goroutines.
func New(size int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("worker pool size must be positive, got %d", size)
	}
	p, err := ants.NewPool(size, ants.WithPreAlloc(false))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Pool{pool: p}, nil
}

// Size returns the pool capacity.
func (p *Pool) Size() int { return p.pool.Cap() }

// Do runs fn on the pool and waits for it. A cancelled context returns early;
// the task itself still runs to completion.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context error passthrough
	}
	done := make(chan error, 1)
	if err := p.pool.Submit(func() { done <- safeCall(fn) }); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // context error passthrough
	}
}

// Map runs fn(0..n-1) on the pool and waits for all submitted tasks.
// It returns the first error; tasks not yet submitted are skipped once one fails.
func (p *Pool) Map(ctx context.Context, n int, fn func(i int) error) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			setErr(err)
			break
		}
		if failed() {
			break
		}
		wg.Add(1)
		if err := p.pool.Submit(func() {
			defer wg.Done()
			if err := safeCall(func() error { return fn(i) }); err != nil {
				setErr(err)
			}
		}); err != nil {
			wg.Done()
			setErr(fmt.Errorf("submit: %w", err))
			break
		}
	}
	wg.Wait()
	return firstErr
}

// Close releases the pool and waits up to timeout for running tasks.
func (p *Pool) Close(timeout time.Duration) error {
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		return fmt.Errorf("release worker pool: %w", err)
	}
	return nil
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn()
}
