package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	"github.com/kailas-cloud/taxoclass/internal/metrics"
)

// Embedder is an embedding provider using the OpenAI-compatible API (e.g. Nebius).
// Every error it returns is classified with domain.Transient or domain.Permanent.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Dimensions   int
	User         string
	Provider     string
	Timeout      time.Duration // per call, 0 = none
	RateLimitRPS float64       // 0 = unlimited
	RateBurst    int
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), max(cfg.RateBurst, 1))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		timeout:    cfg.Timeout,
		limiter:    limiter,
		logger:     logger,
	}
}

// Embed implements domain.Embedder. Returns the vector and usage with transport-level metrics.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.create(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder in a single API call.
// Result order matches input order regardless of the order the provider returns.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	return e.create(ctx, texts)
}

func (e *Embedder) create(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return domain.BatchEmbeddingResult{}, fmt.Errorf("rate limiter: %w", err)
			}
			// дедлайн не успевает за лимитом: провайдер занят, можно повторить позже
			e.fail("rate_limited")
			return domain.BatchEmbeddingResult{}, domain.Transient(fmt.Errorf("rate limiter: %w", err))
		}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	model := string(e.model)
	start := time.Now()

	resp, err := e.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		kind, classified := parseAPIError(err)
		e.fail(kind)
		e.logger.Debug("Embedding API call failed",
			zap.String("provider", e.provider),
			zap.Int("batch_size", len(texts)),
			zap.Duration("duration", duration),
			zap.Error(classified),
		)
		return domain.BatchEmbeddingResult{}, classified
	}

	if len(resp.Data) == 0 {
		e.fail("empty_response")
		return domain.BatchEmbeddingResult{}, domain.Transient(errors.New("empty embedding response"))
	}
	if len(resp.Data) != len(texts) {
		e.fail("malformed_response")
		return domain.BatchEmbeddingResult{}, domain.Permanent(fmt.Errorf(
			"embedding count mismatch: sent %d, got %d", len(texts), len(resp.Data)))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	embeddings := make([][]float32, len(data))
	for i, d := range data {
		if d.Index != i {
			e.fail("malformed_response")
			return domain.BatchEmbeddingResult{}, domain.Permanent(fmt.Errorf(
				"embedding response index %d at position %d", d.Index, i))
		}
		embeddings[i] = d.Embedding
	}

	// Record success metrics
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, model).Observe(duration.Seconds())

	totalTokens := resp.Usage.TotalTokens
	promptTokens := resp.Usage.PromptTokens
	if totalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "prompt").Add(float64(promptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, model, "total").Add(float64(totalTokens))
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}

func (e *Embedder) fail(kind string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), kind).Inc()
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		_, classified := parseAPIError(err)
		return fmt.Errorf("list models: %w", classified)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response and
// classifies it. The first result is the error_type metric label.
func parseAPIError(err error) (string, error) {
	if errors.Is(err, context.Canceled) {
		return "canceled", fmt.Errorf("embedding request canceled: %w", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout", domain.Transient(fmt.Errorf("embedding request timed out: %w", err))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return classifyStatus(reqErr.HTTPStatusCode,
			fmt.Errorf("embedding API error %d: %s", reqErr.HTTPStatusCode, detail))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode,
			fmt.Errorf("embedding API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message))
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return "network", domain.Transient(fmt.Errorf("embedding request failed: %w", err))
	}

	// Неизвестная ошибка (например, битый JSON): не ретраим.
	return "unknown", domain.Permanent(fmt.Errorf("embedding request failed: %w", err))
}

func classifyStatus(status int, err error) (string, error) {
	if IsTransientStatus(status) {
		return "transient", domain.Transient(err)
	}
	return "permanent", domain.Permanent(err)
}

// IsTransientStatus reports whether an HTTP status is worth retrying:
// 408, 409, 429 and every 5xx.
func IsTransientStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusConflict,
		status == http.StatusTooManyRequests:
		return true
	case status >= 500 && status <= 599:
		return true
	default:
		return false
	}
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
