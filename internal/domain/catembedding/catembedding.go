// Package catembedding holds the stored embedding of a category.
package catembedding

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	"github.com/kailas-cloud/taxoclass/internal/domain/semhash"
)

// Record is the embedding of a category's text. ContentHash is the semantic
// hash of that text; an unchanged hash means the vector can be reused.
type Record struct {
	categoryID  uuid.UUID
	contentHash semhash.Hash
	vector      []float32
	createdAt   int64
}

// New validates input and creates a Record.
func New(categoryID uuid.UUID, contentHash semhash.Hash, vector []float32) (Record, error) {
	if categoryID == uuid.Nil {
		return Record{}, fmt.Errorf("embedding category id is required: %w", domain.ErrValidation)
	}
	if len(vector) == 0 {
		return Record{}, fmt.Errorf("embedding vector is empty: %w", domain.ErrValidation)
	}
	return Record{
		categoryID:  categoryID,
		contentHash: contentHash,
		vector:      vector,
		createdAt:   time.Now().UnixMilli(),
	}, nil
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(categoryID uuid.UUID, contentHash semhash.Hash, vector []float32, createdAt int64) Record {
	return Record{categoryID: categoryID, contentHash: contentHash, vector: vector, createdAt: createdAt}
}

func (r Record) CategoryID() uuid.UUID     { return r.categoryID }
func (r Record) ContentHash() semhash.Hash { return r.contentHash }
func (r Record) Vector() []float32         { return r.vector }
func (r Record) Dim() int                  { return len(r.vector) }
func (r Record) CreatedAt() int64          { return r.createdAt }

// Fresh reports whether the record was built from text with the given hash
// and has the expected dimension.
func (r Record) Fresh(hash semhash.Hash, dim int) bool {
	return r.contentHash == hash && len(r.vector) == dim
}
