package budget

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/kailas-cloud/panelscope/internal/db"
)

type expireCall struct {
	key string
	ttl time.Duration
	nx  bool
}

type fakeKV struct {
	data    map[string]int64
	raw     map[string][]byte
	expires []expireCall
	incrErr error
	getErr  error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]int64{}, raw: map[string][]byte{}}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if b, ok := f.raw[key]; ok {
		return b, nil
	}
	v, ok := f.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return []byte(strconv.FormatInt(v, 10)), nil
}

func (f *fakeKV) IncrBy(_ context.Context, key string, val int64) error {
	if f.incrErr != nil {
		return f.incrErr
	}
	f.data[key] += val
	return nil
}

func (f *fakeKV) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	f.expires = append(f.expires, expireCall{key, ttl, nx})
	return nil
}

func TestIncrBy_SetsTTLByPeriod(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, 0, 0)
	ctx := context.Background()

	if err := s.IncrBy(ctx, "ps:budget:openai:daily:2025-03-01", 10); err != nil {
		t.Fatal(err)
	}
	if err := s.IncrBy(ctx, "ps:budget:openai:monthly:2025-03", 10); err != nil {
		t.Fatal(err)
	}

	want := []expireCall{
		{"ps:budget:openai:daily:2025-03-01", DefaultDailyTTL, true},
		{"ps:budget:openai:monthly:2025-03", DefaultMonthlyTTL, true},
	}
	if len(kv.expires) != len(want) {
		t.Fatalf("expire calls = %v", kv.expires)
	}
	for i, w := range want {
		if kv.expires[i] != w {
			t.Errorf("expire[%d] = %+v, want %+v", i, kv.expires[i], w)
		}
	}
}

func TestIncrBy_Error(t *testing.T) {
	kv := newFakeKV()
	kv.incrErr = errors.New("READONLY")
	if err := New(kv, time.Hour, time.Hour).IncrBy(context.Background(), "k:daily:x", 1); err == nil {
		t.Fatal("expected error")
	}
	if len(kv.expires) != 0 {
		t.Error("expire must not run after a failed increment")
	}
}

func TestGet(t *testing.T) {
	kv := newFakeKV()
	kv.data["present"] = 42
	kv.raw["garbage"] = []byte("forty-two")
	s := New(kv, time.Hour, time.Hour)
	ctx := context.Background()

	if v, err := s.Get(ctx, "present"); err != nil || v != 42 {
		t.Errorf("Get(present) = %d, %v", v, err)
	}
	if v, err := s.Get(ctx, "missing"); err != nil || v != 0 {
		t.Errorf("Get(missing) = %d, %v; want 0, nil", v, err)
	}
	if _, err := s.Get(ctx, "garbage"); err == nil {
		t.Error("expected parse error")
	}

	kv.getErr = &db.Error{Op: db.OpGet, Err: errors.New("timeout")}
	if _, err := s.Get(ctx, "present"); err == nil {
		t.Error("expected store error")
	}
}
