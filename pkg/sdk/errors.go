package panelscope

import "github.com/kailas-cloud/panelscope/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidFilterField     = domain.ErrInvalidFilterField
	ErrInvalidFilterValue     = domain.ErrInvalidFilterValue
	ErrInvalidIntent          = domain.ErrInvalidIntent
	ErrStoreUnavailable       = domain.ErrStoreUnavailable
	ErrEmbeddingFailure       = domain.ErrEmbeddingFailure
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded
	ErrReloadFailure          = domain.ErrReloadFailure
)

// FilterError carries the field and value of a rejected structured condition.
// Use errors.As() to extract it.
type FilterError = domain.FilterError
