package valkey

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/panelscope/internal/db"
)

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// IncrBy atomically increments an integer key.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	cmd := s.b().Incrby().Key(key).Increment(val).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpIncrBy, Err: err}
	}
	return nil
}

// Expire sets a TTL on a key. With nx the TTL is only set when the key has none.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	b := s.b().Expire().Key(key).Seconds(int64(ttl.Seconds()))
	var cmd rueidis.Completed
	if nx {
		cmd = b.Nx().Build()
	} else {
		cmd = b.Build()
	}
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpExpire, Err: err}
	}
	return nil
}
