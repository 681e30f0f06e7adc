package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/panelscope/internal/domain"
)

func newTestManager(t *testing.T, f *testFactory) *Manager {
	t.Helper()
	m, err := New(context.Background(), f.build, nil)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestNew_PublishesFirstGeneration(t *testing.T) {
	f := &testFactory{}
	m := newTestManager(t, f)

	l := m.Acquire()
	defer l.Release()
	h := l.Handles()
	assert.Equal(t, uint64(1), h.Version)
	assert.NotEqual(t, [16]byte{}, [16]byte(h.ID))
	assert.False(t, h.BuiltAt.IsZero())
	assert.Equal(t, int64(1), h.Panels.(fakePanels).res.id)
}

func TestNew_FactoryError(t *testing.T) {
	f := &testFactory{err: errBoom}
	_, err := New(context.Background(), f.build, nil)
	require.ErrorIs(t, err, domain.ErrReloadFailure)
	require.ErrorIs(t, err, errBoom)
}

func TestReload_SwapsAndClosesAfterLastLease(t *testing.T) {
	f := &testFactory{}
	m := newTestManager(t, f)

	lease := m.Acquire()
	h, err := m.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), h.Version)
	assert.Equal(t, uint64(2), m.Version())

	first := f.generation(0)
	assert.False(t, first.closed.Load(), "leased generation closed early")
	assert.Equal(t, uint64(1), lease.Handles().Version, "lease must keep its generation")

	lease.Release()
	lease.Release()
	assert.True(t, first.closed.Load())
	assert.False(t, f.generation(1).closed.Load())
}

func TestReload_FailureKeepsPrevious(t *testing.T) {
	f := &testFactory{}
	m := newTestManager(t, f)

	f.fail(errBoom)
	_, err := m.Reload(context.Background())
	require.ErrorIs(t, err, domain.ErrReloadFailure)

	assert.Equal(t, uint64(1), m.Version())
	assert.False(t, f.generation(0).closed.Load())

	f.fail(nil)
	h, err := m.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), h.Version)
}

func TestReload_OnPublishSeesNewGeneration(t *testing.T) {
	var (
		m    *Manager
		seen []uint64
	)
	f := &testFactory{}
	f.onPublish = func(context.Context) {
		if m != nil {
			seen = append(seen, m.Version())
		}
	}
	m = newTestManager(t, f)

	_, err := m.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, seen)

	f.fail(errBoom)
	_, err = m.Reload(context.Background())
	require.Error(t, err)
	assert.Equal(t, []uint64{2}, seen, "failed reload must not publish")
}

func TestReload_ConcurrentCallsCoalesce(t *testing.T) {
	f := &testFactory{}
	m := newTestManager(t, f)

	f.mu.Lock()
	f.gate = make(chan struct{})
	f.started = make(chan struct{}, 1)
	f.mu.Unlock()

	const callers = 8
	versions := make([]uint64, callers)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h, err := m.Reload(context.Background())
		if err == nil {
			versions[0] = h.Version
		}
	}()
	<-f.started
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := m.Reload(context.Background())
			if err == nil {
				versions[i] = h.Version
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, 2, f.builds())
	for i, v := range versions {
		assert.Equalf(t, uint64(2), v, "caller %d", i)
	}
}

func TestAcquire_NoTornHandlesDuringReload(t *testing.T) {
	f := &testFactory{}
	m := newTestManager(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				l := m.Acquire()
				h := l.Handles()
				p, a := h.Panels.(fakePanels).res, h.Answers.(fakeAnswers).res
				if p != a {
					errs <- "panels and answers from different generations"
				}
				if p.closed.Load() {
					errs <- "leased generation already closed"
				}
				l.Release()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			if _, err := m.Reload(context.Background()); err != nil {
				errs <- err.Error()
			}
		}
	}()
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
	n := f.builds()
	for i := 0; i < n-1; i++ {
		assert.Truef(t, f.generation(i).closed.Load(), "retired generation %d left open", i+1)
	}
}

func TestClose_ClosesWhenUnleased(t *testing.T) {
	f := &testFactory{}
	m, err := New(context.Background(), f.build, nil)
	require.NoError(t, err)

	m.Close()
	assert.True(t, f.generation(0).closed.Load())
	m.Close()
}

func TestAcquirer(t *testing.T) {
	f := &testFactory{}
	m := newTestManager(t, f)

	stores, release := m.Acquirer()()
	require.NotNil(t, stores.Panels)
	_, err := m.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, f.generation(0).closed.Load())
	release()
	assert.True(t, f.generation(0).closed.Load())
}

func TestHealthPings(t *testing.T) {
	f := &testFactory{pingErr: errBoom}
	m := newTestManager(t, f)

	require.ErrorIs(t, m.PingRelational(context.Background()), errBoom)
	require.NoError(t, m.PingVector(context.Background()))
	require.NoError(t, m.HealthCheck(context.Background()))
}
