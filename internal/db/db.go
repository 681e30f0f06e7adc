package db

import (
	"context"
	"time"
)

// VectorStore is the facade over the Valkey/Redis search store.
// Consumers depend on the narrow sub-interfaces.
type VectorStore interface {
	Pinger
	HashReader
	KVStore
	Counter
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashReader reads hashes in pipelined batches. Missing keys yield empty maps or
// empty strings at the same position as the requested key.
type HashReader interface {
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HMGetMulti(ctx context.Context, keys []string, fields []string) ([][]string, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Counter provides atomic counters with expiry.
type Counter interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// IndexManager provides FT index bootstrap operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides vector search over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}
