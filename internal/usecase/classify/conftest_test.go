package classify

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	domprod "github.com/kailas-cloud/taxoclass/internal/domain/product"
	domprof "github.com/kailas-cloud/taxoclass/internal/domain/profile"
	"github.com/kailas-cloud/taxoclass/internal/vectorindex"
)

type mockProducts struct {
	byID map[uuid.UUID]domprod.Product
}

func (m *mockProducts) Get(_ context.Context, id uuid.UUID) (domprod.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return domprod.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

type mockProfiles struct {
	list []domprof.Profile
	err  error
}

func (m *mockProfiles) List(_ context.Context) ([]domprof.Profile, error) {
	return m.list, m.err
}

type mockExclusions struct {
	byProduct map[uuid.UUID]map[uuid.UUID]struct{}
}

func (m *mockExclusions) ExcludedCategoryIDs(_ context.Context, productID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	return m.byProduct[productID], nil
}

type mockEmbedder struct {
	vec   []float32
	err   error
	texts []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.texts = append(m.texts, text)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

// recordingSearcher wraps an index and remembers the requested k.
type recordingSearcher struct {
	inner VectorSearcher
	ks    []int
}

func (r *recordingSearcher) Search(ctx context.Context, q []float32, k int) ([]vectorindex.Hit, error) {
	r.ks = append(r.ks, k)
	return r.inner.Search(ctx, q, k)
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
