package search

import (
	"context"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	domcat "github.com/kailas-cloud/taxoclass/internal/domain/category"
	"github.com/kailas-cloud/taxoclass/internal/vectorindex"
)

// VectorSearcher runs nearest-neighbour search over category vectors.
type VectorSearcher interface {
	Search(ctx context.Context, query []float32, topK int) ([]vectorindex.Hit, error)
}

// CategoryReader resolves index hits to categories.
type CategoryReader interface {
	Get(ctx context.Context, id uuid.UUID) (domcat.Category, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
