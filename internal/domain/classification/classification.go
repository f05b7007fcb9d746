// Package classification holds classification results.
package classification

import "github.com/google/uuid"

// Match is a candidate category with its similarity score (higher is better).
type Match struct {
	categoryID uuid.UUID
	score      float64
}

// NewMatch creates a Match.
func NewMatch(categoryID uuid.UUID, score float64) Match {
	return Match{categoryID: categoryID, score: score}
}

func (m Match) CategoryID() uuid.UUID { return m.categoryID }
func (m Match) Score() float64        { return m.score }

// Result is the ranked outcome for one product. Best is TopK[0].
type Result struct {
	productID uuid.UUID
	topK      []Match
}

// NewResult creates a Result from ranked matches. Matches must be non-empty.
func NewResult(productID uuid.UUID, ranked []Match) Result {
	out := make([]Match, len(ranked))
	copy(out, ranked)
	return Result{productID: productID, topK: out}
}

// ProductID returns the classified product.
func (r Result) ProductID() uuid.UUID { return r.productID }

// Best returns the top match.
func (r Result) Best() Match {
	if len(r.topK) == 0 {
		return Match{}
	}
	return r.topK[0]
}

// TopK returns a copy of the ranked matches.
func (r Result) TopK() []Match {
	out := make([]Match, len(r.topK))
	copy(out, r.topK)
	return out
}
