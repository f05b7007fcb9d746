// Package exclusion holds manual product/category exclusions.
package exclusion

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/domain"
)

// Exclusion forbids a category for a product. The (product, category) pair
// is the identity; re-adding it overwrites the reason.
type Exclusion struct {
	productID  uuid.UUID
	categoryID uuid.UUID
	reason     string
}

// New validates input and creates an Exclusion.
func New(productID, categoryID uuid.UUID, reason string) (Exclusion, error) {
	if productID == uuid.Nil {
		return Exclusion{}, fmt.Errorf("exclusion product id is required: %w", domain.ErrValidation)
	}
	if categoryID == uuid.Nil {
		return Exclusion{}, fmt.Errorf("exclusion category id is required: %w", domain.ErrValidation)
	}
	return Exclusion{productID: productID, categoryID: categoryID, reason: strings.TrimSpace(reason)}, nil
}

// Reconstruct creates an Exclusion without validation (storage hydration).
func Reconstruct(productID, categoryID uuid.UUID, reason string) Exclusion {
	return Exclusion{productID: productID, categoryID: categoryID, reason: reason}
}

func (e Exclusion) ProductID() uuid.UUID  { return e.productID }
func (e Exclusion) CategoryID() uuid.UUID { return e.categoryID }
func (e Exclusion) Reason() string        { return e.reason }
