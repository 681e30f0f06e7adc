package retrieval

import (
	"context"

	"github.com/kailas-cloud/panelscope/internal/domain"
	"github.com/kailas-cloud/panelscope/internal/domain/record"
	"github.com/kailas-cloud/panelscope/internal/domain/search/predicate"
	"github.com/kailas-cloud/panelscope/internal/repository/survey"
)

// PanelRepository reads panel rows from the relational store.
type PanelRepository interface {
	Dialect() predicate.Dialect
	QueryIDs(ctx context.Context, pred predicate.Predicate) ([]string, error)
	FetchRows(ctx context.Context, ids, columns []string) (map[string]map[string]string, error)
}

// AnswerRepository searches and reads survey answers in the vector store.
type AnswerRepository interface {
	Search(ctx context.Context, q survey.Query) ([]survey.Hit, error)
	FetchAnswers(
		ctx context.Context, collection string, ids, fields []string, withVectors bool,
	) (map[string][]record.Answer, error)
}

// Stores bundles the handles one request runs against.
type Stores struct {
	Panels   PanelRepository
	Answers  AnswerRepository
	Embedder domain.Embedder
}

// Acquirer hands out the current stores and a release func that must be called when the request ends.
type Acquirer func() (Stores, func())

// Runner offloads CPU-bound work to a bounded pool.
type Runner interface {
	Map(ctx context.Context, n int, fn func(i int) error) error
}
