package valkey

import (
	"context"
	"errors"
	"strconv"

	"github.com/kailas-cloud/panelscope/internal/db"
)

// CreateIndex creates an FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// IndexExists checks index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "not found") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	storage := idx.StorageType
	if storage == "" {
		storage = db.StorageHash
	}
	args := []string{idx.Name, "ON", string(storage)}

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")
	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}
	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	args := []string{f.Name}

	switch f.Type {
	case db.IndexFieldTag:
		args = append(args, "TAG")
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")
	case db.IndexFieldVector:
		args = append(args, buildVectorFieldArgs(f)...)
	default:
		return nil, errors.New("unknown field type")
	}
	return args, nil
}

func buildVectorFieldArgs(f *db.IndexField) []string {
	algo := f.VectorAlgo
	if algo == "" {
		algo = db.VectorHNSW
	}
	distance := f.VectorDistance
	if distance == "" {
		distance = db.DistanceCosine
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}
	if algo == db.VectorHNSW {
		if f.VectorM > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
		}
		if f.VectorEF > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEF))
		}
	}

	out := make([]string, 0, 3+len(attrs))
	out = append(out, "VECTOR", string(algo), strconv.Itoa(len(attrs)))
	return append(out, attrs...)
}
