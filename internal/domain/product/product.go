// Package product holds the product being classified.
package product

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	"github.com/kailas-cloud/taxoclass/internal/domain/eligibility"
)

// Product is an item to classify (immutable value object).
// Empty gender or business type means the tag is absent.
type Product struct {
	id           uuid.UUID
	title        string
	description  string
	keywords     []string
	gender       string
	businessType string
	createdAt    int64
}

// New validates input and creates a Product with a fresh id.
func New(title, description string, keywords []string, gender, businessType string) (Product, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Product{}, fmt.Errorf("product title is required: %w", domain.ErrValidation)
	}
	return Product{
		id:           uuid.New(),
		title:        title,
		description:  strings.TrimSpace(description),
		keywords:     domain.CleanKeywords(keywords),
		gender:       strings.TrimSpace(gender),
		businessType: strings.TrimSpace(businessType),
		createdAt:    time.Now().UnixMilli(),
	}, nil
}

// Reconstruct creates a Product without validation (storage hydration).
func Reconstruct(
	id uuid.UUID, title, description string, keywords []string,
	gender, businessType string, createdAt int64,
) Product {
	return Product{
		id:           id,
		title:        title,
		description:  description,
		keywords:     keywords,
		gender:       gender,
		businessType: businessType,
		createdAt:    createdAt,
	}
}

// ID returns the product identifier.
func (p Product) ID() uuid.UUID { return p.id }

// Title returns the product title.
func (p Product) Title() string { return p.title }

// Description returns the product description.
func (p Product) Description() string { return p.description }

// Keywords returns a copy of the product keywords.
func (p Product) Keywords() []string {
	out := make([]string, len(p.keywords))
	copy(out, p.keywords)
	return out
}

// Gender returns the gender tag or "".
func (p Product) Gender() string { return p.gender }

// BusinessType returns the business type tag or "".
func (p Product) BusinessType() string { return p.businessType }

// CreatedAt returns the creation time in unix millis.
func (p Product) CreatedAt() int64 { return p.createdAt }

// EmbeddingText renders the query text for classification.
func (p Product) EmbeddingText() string {
	return domain.EmbeddingText(p.title, p.description, p.keywords)
}

// EligibilityContext returns the tags checked against category constraints.
func (p Product) EligibilityContext() eligibility.Context {
	return eligibility.Context{Gender: p.gender, BusinessType: p.businessType}
}
