package exclusion

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	domexcl "github.com/kailas-cloud/taxoclass/internal/domain/exclusion"
)

// store is the consumer interface for exclusions (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
}

// Repo keeps one hash per product: field = category id, value = reason.
type Repo struct {
	store store
}

// New creates an exclusion repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Add stores an exclusion. Re-adding the same pair overwrites the reason.
func (r *Repo) Add(ctx context.Context, e domexcl.Exclusion) error {
	fields := map[string]string{e.CategoryID().String(): e.Reason()}
	if err := r.store.HSet(ctx, exclusionKey(e.ProductID()), fields); err != nil {
		return fmt.Errorf("hset exclusion %s/%s: %w", e.ProductID(), e.CategoryID(), err)
	}
	return nil
}

// Remove deletes an exclusion. Missing pairs are not an error.
func (r *Repo) Remove(ctx context.Context, productID, categoryID uuid.UUID) error {
	if err := r.store.HDel(ctx, exclusionKey(productID), categoryID.String()); err != nil {
		return fmt.Errorf("hdel exclusion %s/%s: %w", productID, categoryID, err)
	}
	return nil
}

// List returns the exclusions of a product ordered by category id.
func (r *Repo) List(ctx context.Context, productID uuid.UUID) ([]domexcl.Exclusion, error) {
	m, err := r.store.HGetAll(ctx, exclusionKey(productID))
	if err != nil {
		return nil, fmt.Errorf("hgetall exclusions %s: %w", productID, err)
	}

	out := make([]domexcl.Exclusion, 0, len(m))
	for field, reason := range m {
		catID, err := uuid.Parse(field)
		if err != nil {
			return nil, fmt.Errorf("invalid excluded category %q: %w", field, err)
		}
		out = append(out, domexcl.Reconstruct(productID, catID, reason))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CategoryID().String() < out[j].CategoryID().String()
	})
	return out, nil
}

// ExcludedCategoryIDs returns the set of categories excluded for a product.
func (r *Repo) ExcludedCategoryIDs(ctx context.Context, productID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	list, err := r.List(ctx, productID)
	if err != nil {
		return nil, err
	}
	set := make(map[uuid.UUID]struct{}, len(list))
	for _, e := range list {
		set[e.CategoryID()] = struct{}{}
	}
	return set, nil
}

func exclusionKey(productID uuid.UUID) string {
	return fmt.Sprintf("%sexclusion:%s", domain.KeyPrefix, productID)
}
