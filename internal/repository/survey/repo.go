// Package survey reads panel answers stored as hashes in the vector store.
//
// Each answer is one hash at <prefix><collection>:<panel_id>:<field> with the
// fields panel_id, field, text and vector (little-endian float32).
package survey

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/kailas-cloud/panelscope/internal/db"
	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/domain/record"
	"github.com/kailas-cloud/panelscope/internal/domain/search/filter"
)

// Hash field names.
const (
	FieldPanelID = "panel_id"
	FieldName    = "field"
	FieldText    = "text"
	FieldVector  = "vector"
)

// store is the consumer interface for answer search and reads (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	HMGetMulti(ctx context.Context, keys []string, fields []string) ([][]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Hit is one KNN match.
type Hit struct {
	PanelID string
	Field   string
	Score   float64
}

// Query describes one KNN search over a logical collection.
type Query struct {
	Collection string
	Vector     []float32
	// Scope restricts the search to these panel identifiers when non-empty.
	Scope []string
	// Field restricts the search to answers of one survey question when set.
	Field string
	K     int
}

// Repo implements answer search and retrieval.
type Repo struct {
	store       store
	prefix      string
	collections map[string]string
	hnsw        HNSWConfig
}

// HNSWConfig holds HNSW parameters used when creating answer indexes.
type HNSWConfig struct {
	M              int
	EFConstruction int
}

// DefaultHNSW is used when WithHNSW is not called.
var DefaultHNSW = HNSWConfig{M: 16, EFConstruction: 200}

// New creates a survey repository. collections maps logical names to physical ones.
func New(s store, prefix string, collections map[string]string) *Repo {
	c := make(map[string]string, len(collections))
	for k, v := range collections {
		c[k] = v
	}
	return &Repo{store: s, prefix: prefix, collections: c, hnsw: DefaultHNSW}
}

// WithHNSW sets index parameters. Zero values keep the defaults.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruction > 0 {
		r.hnsw.EFConstruction = cfg.EFConstruction
	}
	return r
}

func (r *Repo) physical(collection string) (string, error) {
	name, ok := r.collections[collection]
	if !ok || name == "" {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	return name, nil
}

// IndexName returns the FT index of a logical collection.
func (r *Repo) IndexName(collection string) (string, error) {
	name, err := r.physical(collection)
	if err != nil {
		return "", err
	}
	return r.prefix + name + ":idx", nil
}

// Key returns the hash key of one answer.
func (r *Repo) Key(collection, panelID, field string) (string, error) {
	name, err := r.physical(collection)
	if err != nil {
		return "", err
	}
	return r.prefix + name + ":" + panelID + ":" + field, nil
}

// Search runs a KNN query and returns hits in store order.
func (r *Repo) Search(ctx context.Context, q Query) ([]Hit, error) {
	index, err := r.IndexName(q.Collection)
	if err != nil {
		return nil, err
	}

	var must []filter.Condition
	if len(q.Scope) > 0 {
		c, err := filter.NewAnyOf(FieldPanelID, q.Scope)
		if err != nil {
			return nil, fmt.Errorf("scope filter: %w", err)
		}
		must = append(must, c)
	}
	if q.Field != "" {
		c, err := filter.NewMatch(FieldName, q.Field)
		if err != nil {
			return nil, fmt.Errorf("field filter: %w", err)
		}
		must = append(must, c)
	}
	expr, err := filter.NewExpression(must, nil)
	if err != nil {
		return nil, fmt.Errorf("build filter: %w", err)
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    index,
		Filters:      expr,
		Vector:       q.Vector,
		K:            q.K,
		ReturnFields: []string{FieldPanelID, FieldName},
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w: %w", q.Collection, domain.ErrStoreUnavailable, err)
	}
	if sr == nil {
		return nil, nil
	}

	hits := make([]Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id := e.Fields[FieldPanelID]
		if id == "" {
			continue
		}
		hits = append(hits, Hit{PanelID: id, Field: e.Fields[FieldName], Score: e.Score})
	}
	return hits, nil
}

// FetchAnswers loads answers of the given fields for each panel. Absent answers are skipped.
func (r *Repo) FetchAnswers(
	ctx context.Context, collection string, ids, fields []string, withVectors bool,
) (map[string][]record.Answer, error) {
	out := make(map[string][]record.Answer, len(ids))
	if len(ids) == 0 || len(fields) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(ids)*len(fields))
	type slot struct{ id, field string }
	slots := make([]slot, 0, cap(keys))
	for _, id := range ids {
		for _, f := range fields {
			k, err := r.Key(collection, id, f)
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
			slots = append(slots, slot{id, f})
		}
	}

	hashFields := []string{FieldText}
	if withVectors {
		hashFields = append(hashFields, FieldVector)
	}
	rows, err := r.store.HMGetMulti(ctx, keys, hashFields)
	if err != nil {
		return nil, fmt.Errorf("fetch answers %s: %w: %w", collection, domain.ErrStoreUnavailable, err)
	}

	for i, row := range rows {
		if len(row) == 0 || (row[0] == "" && (!withVectors || row[1] == "")) {
			continue
		}
		a := record.Answer{Field: slots[i].field, Collection: collection, Text: row[0]}
		if withVectors {
			a.Vector = bytesToVector(row[1])
		}
		out[slots[i].id] = append(out[slots[i].id], a)
	}
	return out, nil
}

// EnsureIndex creates the FT index of a collection when it does not exist.
func (r *Repo) EnsureIndex(ctx context.Context, collection string, dim int) error {
	index, err := r.IndexName(collection)
	if err != nil {
		return err
	}
	name, _ := r.physical(collection)

	exists, err := r.store.IndexExists(ctx, index)
	if err != nil {
		return fmt.Errorf("check index %s: %w: %w", index, domain.ErrStoreUnavailable, err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(index).
		Prefix(r.prefix+name+":").
		Tag(FieldPanelID).
		Tag(FieldName).
		VectorHNSW(FieldVector, dim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruction).
		Build()
	if err != nil {
		return fmt.Errorf("index definition: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w: %w", index, domain.ErrStoreUnavailable, err)
	}
	return nil
}

// IndexExists reports whether the FT index of a collection exists.
func (r *Repo) IndexExists(ctx context.Context, collection string) (bool, error) {
	index, err := r.IndexName(collection)
	if err != nil {
		return false, err
	}
	ok, err := r.store.IndexExists(ctx, index)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w: %w", index, domain.ErrStoreUnavailable, err)
	}
	return ok, nil
}

// bytesToVector decodes a little-endian float32 blob.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
