package redis

import (
	"context"
	"fmt"
	"slices"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/taxoclass/internal/db"
)

// scanPageSize is the COUNT hint per SCAN round-trip. Category and profile
// key spaces stay in the low thousands, so a few pages cover them.
const scanPageSize = 500

// HSet writes entity fields. Empty maps are skipped: HSET needs at least one pair.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.do(ctx, s.hsetCmd(key, fields)).Error(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", key, err)}
	}
	return nil
}

// HSetMulti pipelines one HSET per item (embedding records of a rebuild).
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}
	keys := make([]string, 0, len(items))
	cmds := make([]rueidis.Completed, 0, len(items))
	for _, item := range items {
		if len(item.Fields) == 0 {
			continue
		}
		keys = append(keys, item.Key)
		cmds = append(cmds, s.hsetCmd(item.Key, item.Fields))
	}
	_, err := s.pipeline(ctx, db.OpHSet, keys, cmds)
	return err
}

// HGetAll returns every field of a hash; a missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", key, err)}
	}
	return m, nil
}

// HGetAllMulti loads many hashes in one pipeline. Results follow keys order.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}
	results, err := s.pipeline(ctx, db.OpHGetAll, keys, cmds)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]string, len(results))
	for i, res := range results {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = m
	}
	return out, nil
}

// HDel drops fields from a hash (exclusion removal).
func (s *Store) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.do(ctx, s.b().Hdel().Key(key).Field(fields...).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpHDel, Err: fmt.Errorf("key %s: %w", key, err)}
	}
	return nil
}

// Del removes a key. Missing keys are not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.do(ctx, s.b().Del().Key(key).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: fmt.Errorf("key %s: %w", key, err)}
	}
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: fmt.Errorf("key %s: %w", key, err)}
	}
	return n > 0, nil
}

// Scan collects keys matching a glob pattern. SCAN may repeat a key across
// pages, so the result is deduplicated; order is unspecified.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(scanPageSize).Build()
		page, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: fmt.Errorf("pattern %s: %w", pattern, err)}
		}
		for _, k := range page.Elements {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		if cursor = page.Cursor; cursor == 0 {
			return keys, nil
		}
	}
}

// hsetCmd builds HSET with fields in sorted order so equal maps give equal commands.
func (s *Store) hsetCmd(key string, fields map[string]string) rueidis.Completed {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	slices.Sort(names)

	cmd := s.b().Hset().Key(key).FieldValue()
	for _, k := range names {
		cmd = cmd.FieldValue(k, fields[k])
	}
	return cmd.Build()
}

// pipeline sends cmds in one DoMulti and fails on the first errored reply.
func (s *Store) pipeline(
	ctx context.Context, op string, keys []string, cmds []rueidis.Completed,
) ([]rueidis.RedisResult, error) {
	if len(cmds) == 0 {
		return nil, nil
	}
	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return nil, &db.Error{Op: op, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
	}
	return results, nil
}
