// Package embrecord persists category embeddings so rebuilds can skip
// categories whose text has not changed.
package embrecord

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/db"
	"github.com/kailas-cloud/taxoclass/internal/domain"
	"github.com/kailas-cloud/taxoclass/internal/domain/catembedding"
	"github.com/kailas-cloud/taxoclass/internal/domain/semhash"
)

// store is the consumer interface for embedding records (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
}

// Repo stores one hash per category: content_hash, dim, vector (base64 LE float32), created_at.
type Repo struct {
	store store
}

// New creates an embedding record repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SaveMany writes records in one pipeline.
func (r *Repo) SaveMany(ctx context.Context, records []catembedding.Record) error {
	if len(records) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(records))
	for i, rec := range records {
		items[i] = db.HashSetItem{Key: recordKey(rec.CategoryID()), Fields: recordToHash(rec)}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset multi embeddings: %w", err)
	}
	return nil
}

// GetMany returns stored records keyed by category id. Missing or unreadable
// records are left out; the caller re-embeds those.
func (r *Repo) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catembedding.Record, error) {
	out := make(map[uuid.UUID]catembedding.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}
	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi embeddings: %w", err)
	}

	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		rec, err := recordFromHash(ids[i], m)
		if err != nil {
			continue
		}
		out[ids[i]] = rec
	}
	return out, nil
}

func recordToHash(rec catembedding.Record) map[string]string {
	return map[string]string{
		"content_hash": string(rec.ContentHash()),
		"dim":          strconv.Itoa(rec.Dim()),
		"vector":       base64.StdEncoding.EncodeToString(encodeVector(rec.Vector())),
		"created_at":   strconv.FormatInt(rec.CreatedAt(), 10),
	}
}

func recordFromHash(id uuid.UUID, m map[string]string) (catembedding.Record, error) {
	raw, err := base64.StdEncoding.DecodeString(m["vector"])
	if err != nil {
		return catembedding.Record{}, fmt.Errorf("decode vector: %w", err)
	}
	vec, err := decodeVector(raw)
	if err != nil {
		return catembedding.Record{}, err
	}
	dim, err := strconv.Atoi(m["dim"])
	if err != nil {
		return catembedding.Record{}, fmt.Errorf("invalid dim: %w", err)
	}
	if dim != len(vec) {
		return catembedding.Record{}, fmt.Errorf("stored dim %d, vector has %d: %w", dim, len(vec), domain.ErrVectorDimMismatch)
	}
	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return catembedding.Record{}, fmt.Errorf("invalid created_at: %w", err)
	}
	return catembedding.Reconstruct(id, semhash.Hash(m["content_hash"]), vec, createdAt), nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

func recordKey(id uuid.UUID) string {
	return fmt.Sprintf("%sembedding:%s", domain.KeyPrefix, id)
}
