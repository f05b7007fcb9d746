// Package retry runs operations with capped exponential backoff and full jitter.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Config controls a retry loop.
type Config struct {
	Attempts  int           // total attempts including the first (min 1)
	BaseDelay time.Duration // backoff ceiling for the first retry
	MaxDelay  time.Duration // backoff cap, 0 = uncapped
	Retryable func(error) bool
}

// Option overrides internals for tests.
type Option func(*runner)

// WithSleep replaces the context-aware sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *runner) { r.sleep = sleep }
}

// WithJitter replaces the random source. It must return a value in [0, 1).
func WithJitter(jitter func() float64) Option {
	return func(r *runner) { r.jitter = jitter }
}

type runner struct {
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// Do runs fn until it succeeds, returns a non-retryable error, or attempts run out.
// The last error is returned as is.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error, opts ...Option) error {
	_, err := DoWithResult(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	return err
}

// DoWithResult is Do for functions returning a value.
func DoWithResult[T any](
	ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error), opts ...Option,
) (T, error) {
	r := runner{sleep: sleepCtx, jitter: rand.Float64}
	for _, o := range opts {
		o(&r)
	}

	attempts := max(cfg.Attempts, 1)

	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if cfg.Retryable == nil || !cfg.Retryable(err) || attempt == attempts {
			return zero, lastErr
		}

		if err := r.sleep(ctx, Backoff(cfg, attempt, r.jitter)); err != nil {
			return zero, errors.Join(err, lastErr)
		}
	}
	return zero, lastErr
}

// Backoff returns the full-jitter delay before retry number attempt (1-based):
// uniform in [0, min(MaxDelay, BaseDelay*2^(attempt-1))]. Zero MaxDelay leaves
// the doubling uncapped, bounded only by the Duration range.
func Backoff(cfg Config, attempt int, jitter func() float64) time.Duration {
	ceiling := cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		if cfg.MaxDelay > 0 && ceiling >= cfg.MaxDelay {
			break
		}
		if ceiling > math.MaxInt64/2 {
			ceiling = math.MaxInt64
			break
		}
		ceiling *= 2
	}
	if cfg.MaxDelay > 0 && ceiling > cfg.MaxDelay {
		ceiling = cfg.MaxDelay
	}
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(jitter() * float64(ceiling))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
