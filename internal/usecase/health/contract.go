package health

import (
	"context"

	"github.com/kailas-cloud/taxoclass/internal/resilience/breaker"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// BreakerReporter exposes the embedding circuit breaker state.
type BreakerReporter interface {
	BreakerState() breaker.State
}

// IndexReporter exposes vector index readiness.
type IndexReporter interface {
	Ready() bool
	Len() int
}
