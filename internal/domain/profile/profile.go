// Package profile holds per-category classification settings.
package profile

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	"github.com/kailas-cloud/taxoclass/internal/domain/eligibility"
)

// Profile is the single classification profile of a category.
type Profile struct {
	categoryID  uuid.UUID
	keywords    []string
	constraints eligibility.Constraints
	updatedAt   int64
}

// New validates input and creates a Profile.
func New(categoryID uuid.UUID, keywords []string, constraints eligibility.Constraints) (Profile, error) {
	if categoryID == uuid.Nil {
		return Profile{}, fmt.Errorf("profile category id is required: %w", domain.ErrValidation)
	}
	return Profile{
		categoryID:  categoryID,
		keywords:    domain.CleanKeywords(keywords),
		constraints: constraints,
		updatedAt:   time.Now().UnixMilli(),
	}, nil
}

// Reconstruct creates a Profile without validation (storage hydration).
func Reconstruct(categoryID uuid.UUID, keywords []string, constraints eligibility.Constraints, updatedAt int64) Profile {
	return Profile{
		categoryID:  categoryID,
		keywords:    keywords,
		constraints: constraints,
		updatedAt:   updatedAt,
	}
}

func (p Profile) CategoryID() uuid.UUID { return p.categoryID }

// Keywords returns a copy of the profile keywords.
func (p Profile) Keywords() []string {
	out := make([]string, len(p.keywords))
	copy(out, p.keywords)
	return out
}

// Constraints returns the eligibility constraints.
func (p Profile) Constraints() eligibility.Constraints { return p.constraints }

func (p Profile) UpdatedAt() int64 { return p.updatedAt }
