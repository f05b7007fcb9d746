package indexing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	"github.com/kailas-cloud/taxoclass/internal/domain/catembedding"
	"github.com/kailas-cloud/taxoclass/internal/domain/semhash"
	"github.com/kailas-cloud/taxoclass/internal/metrics"
)

// Service rebuilds and restores the category vector index.
type Service struct {
	categories CategoryLister
	profiles   ProfileLister
	records    RecordStore
	embedder   domain.BatchEmbedder
	index      Index
	hasher     *semhash.Hasher
	dim        int
	logger     *zap.Logger

	rebuildMu sync.Mutex
}

// New creates an indexing service. embedder should be the document-side chain.
func New(
	categories CategoryLister,
	profiles ProfileLister,
	records RecordStore,
	embedder domain.BatchEmbedder,
	index Index,
	hasher *semhash.Hasher,
	dim int,
	logger *zap.Logger,
) *Service {
	if hasher == nil {
		hasher, _ = semhash.New(semhash.Spanish)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		categories: categories,
		profiles:   profiles,
		records:    records,
		embedder:   embedder,
		index:      index,
		hasher:     hasher,
		dim:        dim,
		logger:     logger,
	}
}

type pending struct {
	id   uuid.UUID
	text string
	hash semhash.Hash
}

// Rebuild embeds every category and publishes a fresh index. Stored vectors whose
// content hash and dimension still match are reused; the rest go to the provider
// in one batch. Readers keep the previous snapshot until the swap.
// Returns the number of indexed categories.
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	start := time.Now()

	cats, err := s.categories.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list categories: %w", err)
	}
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list profiles: %w", err)
	}
	profileKeywords := make(map[uuid.UUID][]string, len(profiles))
	for _, p := range profiles {
		profileKeywords[p.CategoryID()] = p.Keywords()
	}

	items := make([]pending, len(cats))
	ids := make([]uuid.UUID, len(cats))
	for i, c := range cats {
		text := c.EmbeddingText(profileKeywords[c.ID()]...)
		items[i] = pending{id: c.ID(), text: text, hash: s.hasher.Hash(text)}
		ids[i] = c.ID()
	}

	stored, err := s.records.GetMany(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("load category embeddings: %w", err)
	}

	vectors := make(map[uuid.UUID][]float32, len(items))
	var stale []pending
	for _, it := range items {
		if rec, ok := stored[it.id]; ok && rec.Fresh(it.hash, s.dim) {
			vectors[it.id] = rec.Vector()
			continue
		}
		stale = append(stale, it)
	}
	reused := len(items) - len(stale)

	if len(stale) > 0 {
		fresh, err := s.embedStale(ctx, stale)
		if err != nil {
			return 0, err
		}
		for _, rec := range fresh {
			vectors[rec.CategoryID()] = rec.Vector()
		}
	}

	builder, err := s.index.NewBuilder(s.dim)
	if err != nil {
		return 0, fmt.Errorf("new index: %w", err)
	}
	for _, it := range items {
		if err := builder.Upsert(ctx, it.id.String(), vectors[it.id]); err != nil {
			return 0, fmt.Errorf("index category %s: %w", it.id, err)
		}
	}

	s.index.Swap(builder)
	if err := s.index.Save(ctx); err != nil {
		return 0, fmt.Errorf("persist index: %w", err)
	}

	elapsed := time.Since(start)
	metrics.IndexSize.Set(float64(len(items)))
	metrics.IndexRebuildDuration.Observe(elapsed.Seconds())
	metrics.IndexEmbeddingsReusedTotal.Add(float64(reused))

	s.logger.Info("Category index rebuilt",
		zap.Int("categories", len(items)),
		zap.Int("reused", reused),
		zap.Int("embedded", len(stale)),
		zap.Duration("duration", elapsed),
	)
	return len(items), nil
}

func (s *Service) embedStale(ctx context.Context, stale []pending) ([]catembedding.Record, error) {
	texts := make([]string, len(stale))
	for i, it := range stale {
		texts[i] = it.text
	}

	res, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed categories: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	if len(res.Embeddings) != len(stale) {
		return nil, domain.Permanent(fmt.Errorf("embed categories: sent %d, got %d", len(stale), len(res.Embeddings)))
	}

	records := make([]catembedding.Record, len(stale))
	for i, it := range stale {
		if err := domain.CheckDim(res.Embeddings[i], s.dim); err != nil {
			return nil, fmt.Errorf("embed category %s: %w", it.id, err)
		}
		rec, err := catembedding.New(it.id, it.hash, res.Embeddings[i])
		if err != nil {
			return nil, fmt.Errorf("embedding record %s: %w", it.id, err)
		}
		records[i] = rec
	}

	if err := s.records.SaveMany(ctx, records); err != nil {
		return nil, fmt.Errorf("save category embeddings: %w", err)
	}
	return records, nil
}

// Restore loads the persisted snapshot. With no snapshot, or one of another
// dimension, an empty index is published so classification fails cleanly
// with no matches until the next rebuild. Reports whether a snapshot was used.
func (s *Service) Restore(ctx context.Context) (bool, error) {
	ok, err := s.index.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load index: %w", err)
	}
	if ok && s.index.Dim() == s.dim {
		metrics.IndexSize.Set(float64(s.index.Len()))
		s.logger.Info("Category index loaded", zap.Int("categories", s.index.Len()))
		return true, nil
	}
	if ok {
		s.logger.Warn("Stored index dimension differs, starting empty",
			zap.Int("stored_dim", s.index.Dim()),
			zap.Int("configured_dim", s.dim),
		)
	}
	if err := s.index.Reset(s.dim); err != nil {
		return false, fmt.Errorf("reset index: %w", err)
	}
	metrics.IndexSize.Set(0)
	return false, nil
}
