package catalog

import (
	"context"

	"github.com/google/uuid"

	domcat "github.com/kailas-cloud/taxoclass/internal/domain/category"
	domexcl "github.com/kailas-cloud/taxoclass/internal/domain/exclusion"
	domprod "github.com/kailas-cloud/taxoclass/internal/domain/product"
	domprof "github.com/kailas-cloud/taxoclass/internal/domain/profile"
)

// CategoryRepository defines the storage contract for categories.
type CategoryRepository interface {
	Create(ctx context.Context, c domcat.Category) error
	Update(ctx context.Context, c domcat.Category) error
	Get(ctx context.Context, id uuid.UUID) (domcat.Category, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context) ([]domcat.Category, error)
}

// ProfileRepository defines the storage contract for classification profiles.
type ProfileRepository interface {
	Upsert(ctx context.Context, p domprof.Profile) error
	Get(ctx context.Context, categoryID uuid.UUID) (domprof.Profile, error)
}

// ProductRepository defines the storage contract for products.
type ProductRepository interface {
	Save(ctx context.Context, p domprod.Product) error
	Get(ctx context.Context, id uuid.UUID) (domprod.Product, error)
}

// ExclusionRepository defines the storage contract for manual exclusions.
type ExclusionRepository interface {
	Add(ctx context.Context, e domexcl.Exclusion) error
	Remove(ctx context.Context, productID, categoryID uuid.UUID) error
	List(ctx context.Context, productID uuid.UUID) ([]domexcl.Exclusion, error)
}
