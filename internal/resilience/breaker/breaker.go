// Package breaker implements a consecutive-failure circuit breaker.
//
// The breaker opens after threshold failures and stays open for the reset
// timeout. The first IsOpen call after the timeout clears the state and lets
// one probe through; a failed probe counts from zero again.
package breaker

import (
	"sync"
	"time"
)

// Defaults.
const (
	DefaultThreshold    = 5
	DefaultResetTimeout = 60 * time.Second
)

// State is the externally visible breaker state.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// Breaker is safe for concurrent use.
type Breaker struct {
	threshold    int
	resetTimeout time.Duration
	now          func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time
}

// New creates a Breaker. Non-positive arguments fall back to the defaults.
func New(threshold int, resetTimeout time.Duration, opts ...Option) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if resetTimeout <= 0 {
		resetTimeout = DefaultResetTimeout
	}
	b := &Breaker{threshold: threshold, resetTimeout: resetTimeout, now: time.Now}
	for _, o := range opts {
		o(b)
	}
	return b
}

// RecordSuccess closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openedAt = time.Time{}
}

// RecordFailure counts a failure and opens the breaker at the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold && b.openedAt.IsZero() {
		b.openedAt = b.now()
	}
}

// IsOpen reports whether calls must be rejected.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isOpenLocked()
}

func (b *Breaker) isOpenLocked() bool {
	if !b.openedAt.IsZero() {
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return true
		}
		// half-open: сбрасываем и пропускаем пробный вызов
		b.failures = 0
		b.openedAt = time.Time{}
		return false
	}
	return b.failures >= b.threshold
}

// State returns Open or Closed. Has the same auto-reset side effect as IsOpen.
func (b *Breaker) State() State {
	if b.IsOpen() {
		return Open
	}
	return Closed
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
