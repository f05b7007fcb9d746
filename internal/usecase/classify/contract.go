package classify

import (
	"context"

	"github.com/google/uuid"

	domprod "github.com/kailas-cloud/taxoclass/internal/domain/product"
	domprof "github.com/kailas-cloud/taxoclass/internal/domain/profile"
	"github.com/kailas-cloud/taxoclass/internal/vectorindex"
)

// ProductReader loads the product to classify.
type ProductReader interface {
	Get(ctx context.Context, id uuid.UUID) (domprod.Product, error)
}

// ProfileLister loads every classification profile.
type ProfileLister interface {
	List(ctx context.Context) ([]domprof.Profile, error)
}

// ExclusionReader loads the categories manually forbidden for a product.
type ExclusionReader interface {
	ExcludedCategoryIDs(ctx context.Context, productID uuid.UUID) (map[uuid.UUID]struct{}, error)
}

// VectorSearcher runs nearest-neighbour search over category vectors.
type VectorSearcher interface {
	Search(ctx context.Context, query []float32, topK int) ([]vectorindex.Hit, error)
}
