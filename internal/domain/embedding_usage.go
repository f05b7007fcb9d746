package domain

import (
	"context"
	"sync/atomic"
)

type embeddingUsageKey struct{}

// EmbeddingUsage accumulates provider tokens spent while serving one request.
// The transport attaches it to the context; use cases report into it after
// every successful embed. Safe for concurrent use.
type EmbeddingUsage struct {
	tokens atomic.Int64
	used   atomic.Bool
}

// NewContextWithUsage returns ctx carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext returns the collector or nil. A nil collector ignores AddTokens.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records n consumed tokens and marks the request as having embedded.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.tokens.Add(int64(n))
	u.used.Store(true)
}

// Tokens returns the total recorded so far.
func (u *EmbeddingUsage) Tokens() int {
	if u == nil {
		return 0
	}
	return int(u.tokens.Load())
}

// Used reports whether any embedding ran, even at zero cost (cache hit, fallback).
func (u *EmbeddingUsage) Used() bool {
	return u != nil && u.used.Load()
}
