package retrieval

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/panelscope/internal/domain/candidate"
	"github.com/kailas-cloud/panelscope/internal/domain/search/filter"
)

// Resolver runs the structured filter against the relational store.
type Resolver struct {
	compiler *Compiler
}

// NewResolver creates a resolver.
func NewResolver(compiler *Compiler) *Resolver {
	return &Resolver{compiler: compiler}
}

// Resolve returns the identifiers matching fs. An empty filter yields the
// unconstrained sentinel; a filter nothing matches yields an empty set.
func (r *Resolver) Resolve(ctx context.Context, panels PanelRepository, fs filter.Set) (candidate.Set, error) {
	if fs.IsEmpty() {
		return candidate.Unconstrained(), nil
	}
	pred, err := r.compiler.Compile(fs, panels.Dialect())
	if err != nil {
		return candidate.Set{}, err
	}
	ids, err := panels.QueryIDs(ctx, pred)
	if err != nil {
		return candidate.Set{}, fmt.Errorf("resolve candidates: %w", err)
	}
	return candidate.FromIDs(ids), nil
}
