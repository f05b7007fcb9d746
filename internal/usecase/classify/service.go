package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	"github.com/kailas-cloud/taxoclass/internal/domain/classification"
	"github.com/kailas-cloud/taxoclass/internal/domain/eligibility"
	"github.com/kailas-cloud/taxoclass/internal/metrics"
)

// Config holds ranking limits. Zero values take the domain defaults.
type Config struct {
	DefaultTopK    int
	MaxTopK        int
	OverfetchMul   int
	OverfetchFloor int
}

// Service ranks categories for a product. Stateless per call.
type Service struct {
	products   ProductReader
	profiles   ProfileLister
	exclusions ExclusionReader
	embedder   domain.Embedder
	index      VectorSearcher
	policy     eligibility.Policy
	cfg        Config
	logger     *zap.Logger
}

// New creates a classification service. embedder should be the query-side chain.
func New(
	products ProductReader,
	profiles ProfileLister,
	exclusions ExclusionReader,
	embedder domain.Embedder,
	index VectorSearcher,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = domain.DefaultTopK
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = domain.MaxTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		products:   products,
		profiles:   profiles,
		exclusions: exclusions,
		embedder:   embedder,
		index:      index,
		cfg:        cfg,
		logger:     logger,
	}
}

// Classify returns up to topK eligible categories for the product, best first.
// topK <= 0 takes the default; values above the maximum are capped.
func (s *Service) Classify(ctx context.Context, productID uuid.UUID, topK int) (res classification.Result, err error) {
	start := time.Now()
	topK = s.clampTopK(topK)
	defer func() {
		outcome := Outcome(err)
		metrics.ClassificationsTotal.WithLabelValues(outcome).Inc()
		metrics.ClassificationDuration.Observe(time.Since(start).Seconds())
		s.logger.Debug("Classification finished",
			zap.String("product_id", productID.String()),
			zap.Int("top_k", topK),
			zap.String("outcome", outcome),
			zap.Int("matches", len(res.TopK())),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
	}()

	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return classification.Result{}, fmt.Errorf("get product: %w", err)
	}

	eligible, err := s.eligibleCategories(ctx, productID, product.EligibilityContext())
	if err != nil {
		return classification.Result{}, err
	}
	if len(eligible) == 0 {
		return classification.Result{}, fmt.Errorf("product %s: %w", productID, domain.ErrNoEligibleCategories)
	}

	emb, err := s.embedder.Embed(ctx, product.EmbeddingText())
	if err != nil {
		return classification.Result{}, fmt.Errorf("embed product: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	hits, err := s.index.Search(ctx, emb.Embedding,
		domain.OverfetchSize(topK, s.cfg.OverfetchMul, s.cfg.OverfetchFloor))
	if err != nil {
		return classification.Result{}, fmt.Errorf("search categories: %w", err)
	}

	ranked := make([]classification.Match, 0, topK)
	for _, h := range hits {
		if len(ranked) == topK {
			break
		}
		catID, perr := uuid.Parse(h.ID)
		if perr != nil {
			continue
		}
		if _, ok := eligible[catID]; !ok {
			continue
		}
		ranked = append(ranked, classification.NewMatch(catID, Score(h.Score)))
	}
	if len(ranked) == 0 {
		return classification.Result{}, fmt.Errorf("product %s: %w", productID, domain.ErrNoEligibleMatches)
	}

	return classification.NewResult(productID, ranked), nil
}

// eligibleCategories returns the categories with a profile that are neither
// excluded for the product nor rejected by the policy.
func (s *Service) eligibleCategories(
	ctx context.Context, productID uuid.UUID, pctx eligibility.Context,
) (map[uuid.UUID]struct{}, error) {
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	excluded, err := s.exclusions.ExcludedCategoryIDs(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list exclusions: %w", err)
	}

	eligible := make(map[uuid.UUID]struct{}, len(profiles))
	for _, p := range profiles {
		if _, ok := excluded[p.CategoryID()]; ok {
			continue
		}
		if !s.policy.IsAllowed(pctx, p.Constraints()) {
			continue
		}
		eligible[p.CategoryID()] = struct{}{}
	}
	return eligible, nil
}

func (s *Service) clampTopK(k int) int {
	if k <= 0 {
		return s.cfg.DefaultTopK
	}
	return min(k, s.cfg.MaxTopK)
}

// Score maps cosine similarity to a confidence in [0, 1]. Negative similarity
// means unrelated and becomes 0; it is never mirrored.
func Score(cosine float64) float64 {
	return max(0, min(1, cosine))
}

// Outcome is the metric label for a classification error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrNoEligibleCategories):
		return "no_eligible_categories"
	case errors.Is(err, domain.ErrNoEligibleMatches):
		return "no_eligible_matches"
	case errors.Is(err, domain.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, domain.ErrPermanentDependency):
		return "permanent_error"
	case errors.Is(err, domain.ErrTransientDependency):
		return "transient_error"
	case errors.Is(err, domain.ErrIndexNotInitialized):
		return "index_not_ready"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
