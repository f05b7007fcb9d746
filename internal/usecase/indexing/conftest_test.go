package indexing

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/db"
	"github.com/kailas-cloud/taxoclass/internal/domain"
	domcat "github.com/kailas-cloud/taxoclass/internal/domain/category"
	"github.com/kailas-cloud/taxoclass/internal/domain/catembedding"
	domprof "github.com/kailas-cloud/taxoclass/internal/domain/profile"
)

type mockCategories struct {
	list []domcat.Category
	err  error
}

func (m *mockCategories) List(_ context.Context) ([]domcat.Category, error) { return m.list, m.err }

type mockProfiles struct {
	list []domprof.Profile
}

func (m *mockProfiles) List(_ context.Context) ([]domprof.Profile, error) { return m.list, nil }

type memRecords struct {
	byID    map[uuid.UUID]catembedding.Record
	saves   int
	saveErr error
}

func newMemRecords() *memRecords {
	return &memRecords{byID: map[uuid.UUID]catembedding.Record{}}
}

func (m *memRecords) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]catembedding.Record, error) {
	out := make(map[uuid.UUID]catembedding.Record, len(ids))
	for _, id := range ids {
		if r, ok := m.byID[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (m *memRecords) SaveMany(_ context.Context, recs []catembedding.Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	for _, r := range recs {
		m.byID[r.CategoryID()] = r
	}
	return nil
}

// mockBatchEmbedder returns a dim-sized vector whose first component is the text length.
type mockBatchEmbedder struct {
	dim     int
	err     error
	short   bool
	batches [][]string
}

func (m *mockBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batches = append(m.batches, texts)
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, m.dim)
		v[0] = float32(len(t))
		v[(i+1)%m.dim] = 1
		out[i] = v
	}
	if m.short {
		out = out[:len(out)-1]
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

func (m *mockBatchEmbedder) embeddedTexts() int {
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

type memMapper struct {
	mu  sync.Mutex
	fwd map[string]int64
	rev map[int64]string
}

func newMemMapper() *memMapper {
	return &memMapper{fwd: map[string]int64{}, rev: map[int64]string{}}
}

func (m *memMapper) GetOrCreateID(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.fwd[id]; ok {
		return n, nil
	}
	n := int64(len(m.fwd) + 1)
	m.fwd[id] = n
	m.rev[n] = id
	return n, nil
}

func (m *memMapper) GetDomainID(_ context.Context, n int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.rev[n]
	return id, ok, nil
}

type memBlobs struct {
	data map[string][]byte
}

func (b *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := b.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (b *memBlobs) Set(_ context.Context, key string, value []byte) error {
	b.data[key] = value
	return nil
}
