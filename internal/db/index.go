package db

import (
	"errors"
	"strconv"
)

// StorageType defines the document storage backend for FT indexes.
type StorageType string

// StorageHash stores entries as hashes. Panel answers are always hashes.
const StorageHash StorageType = "HASH"

// DistanceMetric used by vector fields.
type DistanceMetric string

const (
	DistanceCosine DistanceMetric = "COSINE"
	DistanceL2     DistanceMetric = "L2"
)

// VectorAlgorithm selects the vector index algorithm.
type VectorAlgorithm string

const (
	VectorHNSW VectorAlgorithm = "HNSW"
	VectorFlat VectorAlgorithm = "FLAT"
)

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

const (
	IndexFieldTag IndexFieldType = iota + 1
	IndexFieldNumeric
	IndexFieldVector
)

// IndexField describes a single field in an FT index schema.
type IndexField struct {
	Name string
	Type IndexFieldType

	TagSeparator string

	VectorAlgo     VectorAlgorithm
	VectorDim      int
	VectorDistance DistanceMetric
	VectorM        int
	VectorEF       int
}

// IndexDefinition is a complete FT index definition used by FT.CREATE.
type IndexDefinition struct {
	Name        string
	StorageType StorageType
	Prefixes    []string
	Fields      []IndexField
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if !IsValidIdentifier(idx.Name) {
		return errors.New("index name is empty or contains invalid characters")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	seen := make(map[string]bool, len(idx.Fields))
	for i, f := range idx.Fields {
		if f.Name == "" {
			return errors.New("field name is required at index " + strconv.Itoa(i))
		}
		if seen[f.Name] {
			return errors.New("duplicate field name: " + f.Name)
		}
		seen[f.Name] = true
		if f.Type == IndexFieldVector && f.VectorDim <= 0 {
			return errors.New("vector field requires positive DIM")
		}
	}
	return nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isAlpha && !isDigit && r != '_' && r != ':' && r != '-' {
			return false
		}
	}
	return true
}

// IndexBuilder is a fluent builder for hash-backed FT index definitions.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an FT index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name, StorageType: StorageHash}}
}

// Prefix adds key prefixes to the index.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Tag adds a TAG field.
func (b *IndexBuilder) Tag(name string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: name, Type: IndexFieldTag})
	return b
}

// Numeric adds a NUMERIC field.
func (b *IndexBuilder) Numeric(name string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: name, Type: IndexFieldNumeric})
	return b
}

// VectorHNSW adds an HNSW vector field. Zero m or ef keeps the server defaults.
func (b *IndexBuilder) VectorHNSW(name string, dim int, distance DistanceMetric, m, ef int) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{
		Name:           name,
		Type:           IndexFieldVector,
		VectorAlgo:     VectorHNSW,
		VectorDim:      dim,
		VectorDistance: distance,
		VectorM:        m,
		VectorEF:       ef,
	})
	return b
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	return &def, nil
}
