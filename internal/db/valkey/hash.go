package valkey

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/panelscope/internal/db"
)

// HGetAllMulti fetches all fields of several hashes in one DoMulti round-trip.
// A missing key yields an empty map.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make(rueidis.Commands, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}

	out := make([]map[string]string, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = m
	}
	return out, nil
}

// HMGetMulti fetches selected fields of several hashes in one DoMulti round-trip.
// Each row has one value per requested field; absent fields are empty strings.
func (s *Store) HMGetMulti(ctx context.Context, keys []string, fields []string) ([][]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("at least one field is required")
	}

	cmds := make(rueidis.Commands, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hmget().Key(key).Field(fields...).Build()
	}

	out := make([][]string, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		vals, err := res.ToArray()
		if err != nil {
			return nil, &db.Error{Op: db.OpHMGet, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		row := make([]string, len(fields))
		for j := 0; j < len(vals) && j < len(fields); j++ {
			if vals[j].IsNil() {
				continue
			}
			v, err := vals[j].ToString()
			if err != nil {
				continue
			}
			row[j] = v
		}
		out[i] = row
	}
	return out, nil
}
