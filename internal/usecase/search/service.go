package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	domcat "github.com/kailas-cloud/taxoclass/internal/domain/category"
)

// Limits for category search.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Result is one category match.
type Result struct {
	Category domcat.Category
	Score    float64
}

// Service runs free-text semantic search over categories.
type Service struct {
	index      VectorSearcher
	categories CategoryReader
	embed      Embedder
}

// New creates a search service. embed should be the query-side chain.
func New(index VectorSearcher, categories CategoryReader, embed Embedder) *Service {
	return &Service{index: index, categories: categories, embed: embed}
}

// Categories returns categories ranked by similarity to query. Scores below
// minScore are dropped. limit <= 0 takes DefaultLimit; capped at MaxLimit.
func (s *Service) Categories(ctx context.Context, query string, limit int, minScore float64) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is required: %w", domain.ErrValidation)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	hits, err := s.index.Search(ctx, emb.Embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("search categories: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		score := max(0, min(1, h.Score))
		if score < minScore {
			continue
		}
		id, perr := uuid.Parse(h.ID)
		if perr != nil {
			continue
		}
		c, err := s.categories.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			// Индекс может отставать от хранилища до следующего rebuild.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get category %s: %w", id, err)
		}
		results = append(results, Result{Category: c, Score: score})
	}
	return results, nil
}
