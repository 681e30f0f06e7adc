package survey

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/kailas-cloud/panelscope/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	hmgetMultiFn  func(ctx context.Context, keys, fields []string) ([][]string, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) HMGetMulti(ctx context.Context, keys, fields []string) ([][]string, error) {
	if m.hmgetMultiFn != nil {
		return m.hmgetMultiFn(ctx, keys, fields)
	}
	return make([][]string, len(keys)), nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return true, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, "ps:", map[string]string{"survey": "answers", "freetext": "profiles"})
	return repo, ms
}

func vectorBlob(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
