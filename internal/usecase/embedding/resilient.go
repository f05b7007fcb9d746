package embedding

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	"github.com/kailas-cloud/taxoclass/internal/metrics"
	"github.com/kailas-cloud/taxoclass/internal/resilience/breaker"
	"github.com/kailas-cloud/taxoclass/internal/resilience/retry"
)

// ResilientConfig configures ResilientEmbedder.
type ResilientConfig struct {
	Provider   string
	Model      string
	Dimensions int
	Fallback   bool // deterministic local vectors, inner is never called
	Retry      retry.Config
	Breaker    *breaker.Breaker
	Logger     *zap.Logger

	// RetryOptions override backoff internals (tests).
	RetryOptions []retry.Option
}

// ResilientEmbedder guards a remote embedder with a circuit breaker, retries
// transient failures and enforces the vector dimension.
type ResilientEmbedder struct {
	inner     domain.Embedder
	provider  string
	model     string
	dim       int
	fallback  bool
	retry     retry.Config
	retryOpts []retry.Option
	breaker   *breaker.Breaker
	logger    *zap.Logger
}

// NewResilientEmbedder wraps inner. inner may be nil in fallback mode.
func NewResilientEmbedder(inner domain.Embedder, cfg ResilientConfig) *ResilientEmbedder {
	rc := cfg.Retry
	rc.Retryable = domain.IsTransient

	br := cfg.Breaker
	if br == nil {
		br = breaker.New(breaker.DefaultThreshold, breaker.DefaultResetTimeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ResilientEmbedder{
		inner:     inner,
		provider:  cfg.Provider,
		model:     cfg.Model,
		dim:       cfg.Dimensions,
		fallback:  cfg.Fallback,
		retry:     rc,
		retryOpts: cfg.RetryOptions,
		breaker:   br,
		logger:    logger,
	}
}

// Embed returns a vector of exactly the configured dimension.
func (r *ResilientEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if r.fallback {
		metrics.EmbeddingFallbackTotal.WithLabelValues(r.provider).Inc()
		return domain.EmbeddingResult{Embedding: FallbackVector(text, r.dim)}, nil
	}

	return guarded(ctx, r, "embed", func(ctx context.Context) (domain.EmbeddingResult, error) {
		res, err := r.inner.Embed(ctx, text)
		if err != nil {
			return domain.EmbeddingResult{}, err //nolint:wrapcheck // classified by transport
		}
		if err := domain.CheckDim(res.Embedding, r.dim); err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("embedding: %w", err)
		}
		return res, nil
	})
}

// BatchEmbed embeds texts in order. An empty batch never reaches the provider.
func (r *ResilientEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	if r.fallback {
		metrics.EmbeddingFallbackTotal.WithLabelValues(r.provider).Add(float64(len(texts)))
		out := make([][]float32, len(texts))
		for i, t := range texts {
			out[i] = FallbackVector(t, r.dim)
		}
		return domain.BatchEmbeddingResult{Embeddings: out}, nil
	}

	return guarded(ctx, r, "batch embed", func(ctx context.Context) (domain.BatchEmbeddingResult, error) {
		var (
			res domain.BatchEmbeddingResult
			err error
		)
		if be, ok := r.inner.(domain.BatchEmbedder); ok {
			res, err = be.BatchEmbed(ctx, texts)
		} else {
			res, err = domain.BatchFallback(ctx, r.inner, texts)
		}
		if err != nil {
			return domain.BatchEmbeddingResult{}, err //nolint:wrapcheck // classified by transport
		}
		if len(res.Embeddings) != len(texts) {
			return domain.BatchEmbeddingResult{}, domain.Permanent(fmt.Errorf(
				"batch embedding count mismatch: sent %d, got %d", len(texts), len(res.Embeddings)))
		}
		for i, vec := range res.Embeddings {
			if err := domain.CheckDim(vec, r.dim); err != nil {
				return domain.BatchEmbeddingResult{}, fmt.Errorf("embedding [%d]: %w", i, err)
			}
		}
		return res, nil
	})
}

// HealthCheck reports an open breaker as unhealthy, otherwise delegates.
func (r *ResilientEmbedder) HealthCheck(ctx context.Context) error {
	if r.fallback {
		return nil
	}
	if r.breaker.IsOpen() {
		return domain.ErrCircuitOpen
	}
	if hc, ok := r.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// BreakerState returns the current breaker state.
func (r *ResilientEmbedder) BreakerState() breaker.State { return r.breaker.State() }

// Fallback reports whether remote calls are disabled.
func (r *ResilientEmbedder) Fallback() bool { return r.fallback }

func guarded[T any](ctx context.Context, r *ResilientEmbedder, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if r.breaker.IsOpen() {
		r.setCircuitGauge()
		metrics.EmbeddingErrorsTotal.WithLabelValues(r.provider, r.model, "circuit_open").Inc()
		return zero, fmt.Errorf("%s: %w", op, domain.ErrCircuitOpen)
	}

	attempts := 0
	v, err := retry.DoWithResult(ctx, r.retry, func(ctx context.Context) (T, error) {
		attempts++
		return fn(ctx)
	}, r.retryOpts...)

	if attempts > 1 {
		metrics.EmbeddingRetriesTotal.WithLabelValues(r.provider).Add(float64(attempts - 1))
	}

	if err != nil {
		// отмена вызывающим не считается отказом провайдера
		if errors.Is(err, context.Canceled) {
			return zero, fmt.Errorf("%s: %w", op, err)
		}

		r.breaker.RecordFailure()
		r.setCircuitGauge()

		kind := "permanent"
		if domain.IsTransient(err) {
			kind = "transient"
		}
		metrics.EmbeddingErrorsTotal.WithLabelValues(r.provider, r.model, kind).Inc()
		r.logger.Warn("Embedding call failed",
			zap.String("op", op),
			zap.String("provider", r.provider),
			zap.Int("attempts", attempts),
			zap.String("error_type", kind),
			zap.Int("breaker_failures", r.breaker.Failures()),
			zap.Error(err),
		)
		return zero, fmt.Errorf("%s: %w", op, err)
	}

	r.breaker.RecordSuccess()
	r.setCircuitGauge()
	return v, nil
}

func (r *ResilientEmbedder) setCircuitGauge() {
	v := 0.0
	if r.breaker.State() == breaker.Open {
		v = 1
	}
	metrics.EmbeddingCircuitOpen.WithLabelValues(r.provider).Set(v)
}

// FallbackVector derives a deterministic vector from the SHA-256 digest of text.
// Each digest byte b maps to ((b mod 128) - 64) / 64; the digest repeats up to dim.
func FallbackVector(text string, dim int) []float32 {
	if dim <= 0 {
		return nil
	}
	digest := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)
	for i := range vec {
		b := digest[i%len(digest)]
		vec[i] = float32(int(b%128)-64) / 64
	}
	return vec
}
