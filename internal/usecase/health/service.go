package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the database is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status     Status
	Checks     map[string]CheckResult
	Breaker    string // empty when no breaker is wired
	IndexReady bool
	IndexSize  int
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	breaker   BreakerReporter
	index     IndexReporter
}

// New creates a Service. embedding, breaker and index can be nil.
func New(db DBPinger, embedding EmbeddingChecker, breaker BreakerReporter, index IndexReporter) *Service {
	return &Service{db: db, embedding: embedding, breaker: breaker, index: index}
}

// Check runs health checks against all components.
// A database failure is Unhealthy; any other failing check is Degraded.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	var r Report

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
	} else {
		checks["database"] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	if s.breaker != nil {
		r.Breaker = s.breaker.BreakerState().String()
	}

	if s.index != nil {
		r.IndexReady = s.index.Ready()
		r.IndexSize = s.index.Len()
		if r.IndexReady {
			checks["index"] = CheckOK
		} else {
			checks["index"] = CheckError
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks["database"] == CheckError {
		status = Unhealthy
	}

	r.Status = status
	r.Checks = checks
	return r
}
