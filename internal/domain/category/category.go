// Package category holds the taxonomy node aggregate.
package category

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	"github.com/kailas-cloud/taxoclass/internal/domain/semhash"
)

// MaxNameLength is the maximum category name length in characters.
const MaxNameLength = 100

// Category is a taxonomy node (immutable value object).
// ParentID is uuid.Nil for roots.
type Category struct {
	id           uuid.UUID
	name         string
	description  string
	keywords     []string
	parentID     uuid.UUID
	semanticHash semhash.Hash
	createdAt    int64
}

// New validates input and creates a Category with a fresh id.
// The semantic hash is computed over the description with h (Spanish default when nil).
func New(name, description string, keywords []string, parentID uuid.UUID, h *semhash.Hasher) (Category, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)

	if name == "" {
		return Category{}, fmt.Errorf("category name is required: %w", domain.ErrValidation)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return Category{}, fmt.Errorf("category name too long (max %d): %w", MaxNameLength, domain.ErrValidation)
	}
	if description == "" {
		return Category{}, fmt.Errorf("category description is required: %w", domain.ErrValidation)
	}

	var hash semhash.Hash
	if h != nil {
		hash = h.Hash(description)
	} else {
		hash = semhash.FromText(description)
	}

	return Category{
		id:           uuid.New(),
		name:         name,
		description:  description,
		keywords:     domain.CleanKeywords(keywords),
		parentID:     parentID,
		semanticHash: hash,
		createdAt:    time.Now().UnixMilli(),
	}, nil
}

// Reconstruct creates a Category without validation (storage hydration).
func Reconstruct(
	id uuid.UUID, name, description string, keywords []string,
	parentID uuid.UUID, hash semhash.Hash, createdAt int64,
) Category {
	return Category{
		id:           id,
		name:         name,
		description:  description,
		keywords:     keywords,
		parentID:     parentID,
		semanticHash: hash,
		createdAt:    createdAt,
	}
}

// ID returns the category identifier.
func (c Category) ID() uuid.UUID { return c.id }

// Name returns the display name.
func (c Category) Name() string { return c.name }

// Description returns the free-text description.
func (c Category) Description() string { return c.description }

// Keywords returns a copy of the category keywords.
func (c Category) Keywords() []string {
	out := make([]string, len(c.keywords))
	copy(out, c.keywords)
	return out
}

// ParentID returns the parent id or uuid.Nil for roots.
func (c Category) ParentID() uuid.UUID { return c.parentID }

// IsRoot reports whether the category has no parent.
func (c Category) IsRoot() bool { return c.parentID == uuid.Nil }

// SemanticHash returns the description fingerprint used for duplicate detection.
func (c Category) SemanticHash() semhash.Hash { return c.semanticHash }

// CreatedAt returns the creation time in unix millis.
func (c Category) CreatedAt() int64 { return c.createdAt }

// WithParent returns a copy attached to parent. Self-parenting is rejected here;
// deeper cycles need the tree and are checked by the catalog service.
func (c Category) WithParent(parent uuid.UUID) (Category, error) {
	if parent == c.id {
		return Category{}, fmt.Errorf("category %s cannot be its own parent: %w", c.id, domain.ErrCycle)
	}
	c.parentID = parent
	return c, nil
}

// EmbeddingText renders the text indexed for this category. Profile keywords
// are merged after the category's own.
func (c Category) EmbeddingText(profileKeywords ...string) string {
	kws := domain.CleanKeywords(append(c.Keywords(), profileKeywords...))
	return domain.EmbeddingText(c.name, c.description, kws)
}
