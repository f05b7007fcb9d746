package category

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	domcat "github.com/kailas-cloud/taxoclass/internal/domain/category"
	"github.com/kailas-cloud/taxoclass/internal/domain/semhash"
)

// store is the consumer interface for categories (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
}

// Repo implements usecase/catalog.CategoryRepository.
type Repo struct {
	store store
}

// New creates a category repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Create stores a category. The semantic hash is claimed first with SET NX,
// so two categories with the same normalized description cannot both land.
// On HSET failure the claim is released.
func (r *Repo) Create(ctx context.Context, c domcat.Category) error {
	hashData, err := categoryToHash(c)
	if err != nil {
		return err
	}

	claimKey := semanticHashKey(c.SemanticHash())
	claimed, err := r.store.SetNX(ctx, claimKey, []byte(c.ID().String()))
	if err != nil {
		return fmt.Errorf("claim semantic hash: %w", err)
	}
	if !claimed {
		return fmt.Errorf("category %q: %w", c.Name(), domain.ErrDuplicateContent)
	}

	if err := r.store.HSet(ctx, categoryKey(c.ID()), hashData); err != nil {
		cleanupErr := r.store.Del(ctx, claimKey)
		return errors.Join(fmt.Errorf("hset category %s: %w", c.ID(), err), cleanupErr)
	}

	return nil
}

// Update rewrites a stored category. The semantic hash must not change.
func (r *Repo) Update(ctx context.Context, c domcat.Category) error {
	hashData, err := categoryToHash(c)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, categoryKey(c.ID()), hashData); err != nil {
		return fmt.Errorf("hset category %s: %w", c.ID(), err)
	}
	return nil
}

// Get retrieves a category by id.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (domcat.Category, error) {
	m, err := r.store.HGetAll(ctx, categoryKey(id))
	if err != nil {
		return domcat.Category{}, fmt.Errorf("hgetall category %s: %w", id, err)
	}
	if len(m) == 0 {
		return domcat.Category{}, fmt.Errorf("%s: %w", id, domain.ErrCategoryNotFound)
	}
	return categoryFromHash(m)
}

// Exists reports whether a category is stored.
func (r *Repo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := r.store.Exists(ctx, categoryKey(id))
	if err != nil {
		return false, fmt.Errorf("exists category %s: %w", id, err)
	}
	return ok, nil
}

// List returns all categories sorted by CreatedAt, then id.
func (r *Repo) List(ctx context.Context) ([]domcat.Category, error) {
	keys, err := r.store.Scan(ctx, categoryKeyPattern())
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}
	if len(keys) == 0 {
		return []domcat.Category{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi categories: %w", err)
	}

	categories := make([]domcat.Category, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		c, err := categoryFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse category %s: %w", keys[i], err)
		}
		categories = append(categories, c)
	}

	sort.Slice(categories, func(i, j int) bool {
		if categories[i].CreatedAt() != categories[j].CreatedAt() {
			return categories[i].CreatedAt() < categories[j].CreatedAt()
		}
		return categories[i].ID().String() < categories[j].ID().String()
	})

	return categories, nil
}

// Key patterns: taxoclass:category:{id}, taxoclass:category_hash:{semhash}

func categoryKey(id uuid.UUID) string {
	return fmt.Sprintf("%scategory:%s", domain.KeyPrefix, id)
}

func categoryKeyPattern() string {
	return domain.KeyPrefix + "category:*"
}

func semanticHashKey(h semhash.Hash) string {
	return fmt.Sprintf("%scategory_hash:%s", domain.KeyPrefix, h)
}
