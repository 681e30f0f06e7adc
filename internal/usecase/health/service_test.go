package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, c := range []string{ComponentRelational, ComponentVector, ComponentEmbedding} {
		if r.Checks[c] != CheckOK {
			t.Errorf("expected %s %q, got %q", c, CheckOK, r.Checks[c])
		}
	}
}

func TestCheck_RelationalError(t *testing.T) {
	svc := New(&mockPinger{err: errors.New("conn refused")}, &mockPinger{}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[ComponentRelational] != CheckError {
		t.Errorf("expected relational %q, got %q", CheckError, r.Checks[ComponentRelational])
	}
	if r.Checks[ComponentVector] != CheckOK {
		t.Errorf("expected vector %q, got %q", CheckOK, r.Checks[ComponentVector])
	}
}

func TestCheck_EmbeddingError(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{}, &mockEmbeddingChecker{err: errors.New("timeout")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[ComponentEmbedding] != CheckError {
		t.Errorf("expected embedding %q, got %q", CheckError, r.Checks[ComponentEmbedding])
	}
}

func TestCheck_AllFail(t *testing.T) {
	svc := New(
		&mockPinger{err: errors.New("db down")},
		&mockPinger{err: errors.New("valkey down")},
		&mockEmbeddingChecker{err: errors.New("emb down")},
	)
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if len(r.Checks) != 3 {
		t.Errorf("expected 3 checks, got %d", len(r.Checks))
	}
}

func TestCheck_NoEmbedding(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks[ComponentEmbedding]; ok {
		t.Error("embedding check should be absent when embedding is nil")
	}
}

func TestCheck_PingFunc(t *testing.T) {
	calls := 0
	p := PingFunc(func(ctx context.Context) error {
		calls++
		if _, ok := ctx.Deadline(); !ok {
			t.Error("check context has no deadline")
		}
		return nil
	})
	r := New(p, &mockPinger{}, nil).Check(context.Background())

	if calls != 1 || r.Status != Healthy {
		t.Errorf("calls = %d, status = %q", calls, r.Status)
	}
}
