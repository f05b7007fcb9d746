package product

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	domprod "github.com/kailas-cloud/taxoclass/internal/domain/product"
)

// store is the consumer interface for products (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo implements usecase/catalog.ProductRepository.
type Repo struct {
	store store
}

// New creates a product repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Save stores a product, overwriting a previous version.
func (r *Repo) Save(ctx context.Context, p domprod.Product) error {
	keywordsJSON, err := json.Marshal(p.Keywords())
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	fields := map[string]string{
		"id":            p.ID().String(),
		"title":         p.Title(),
		"description":   p.Description(),
		"keywords_json": string(keywordsJSON),
		"gender":        p.Gender(),
		"business_type": p.BusinessType(),
		"created_at":    strconv.FormatInt(p.CreatedAt(), 10),
	}
	if err := r.store.HSet(ctx, productKey(p.ID()), fields); err != nil {
		return fmt.Errorf("hset product %s: %w", p.ID(), err)
	}
	return nil
}

// Get retrieves a product by id.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (domprod.Product, error) {
	m, err := r.store.HGetAll(ctx, productKey(id))
	if err != nil {
		return domprod.Product{}, fmt.Errorf("hgetall product %s: %w", id, err)
	}
	if len(m) == 0 {
		return domprod.Product{}, fmt.Errorf("%s: %w", id, domain.ErrProductNotFound)
	}

	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return domprod.Product{}, fmt.Errorf("invalid created_at: %w", err)
	}
	var keywords []string
	if kj := m["keywords_json"]; kj != "" {
		if err := json.Unmarshal([]byte(kj), &keywords); err != nil {
			return domprod.Product{}, fmt.Errorf("unmarshal keywords: %w", err)
		}
	}

	return domprod.Reconstruct(
		id, m["title"], m["description"], keywords,
		m["gender"], m["business_type"], createdAt,
	), nil
}

func productKey(id uuid.UUID) string {
	return fmt.Sprintf("%sproduct:%s", domain.KeyPrefix, id)
}
