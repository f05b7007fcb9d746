// Package idmap assigns permanent int64 surrogates to domain ids.
//
// Surrogates come from a monotonic counter and are never reused. The reverse
// key is written before the forward key is claimed with SET NX, so a claimed
// surrogate always resolves back. Concurrent writers agree on one surrogate;
// the loser's counter value is burned and its reverse key is never read.
package idmap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/kailas-cloud/taxoclass/internal/db"
	"github.com/kailas-cloud/taxoclass/internal/domain"
)

// store is the consumer interface for the id map (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
}

// Repo is safe for concurrent use. Entries never change once assigned,
// so the in-process cache is never invalidated.
type Repo struct {
	store store

	mu  sync.RWMutex
	fwd map[string]int64
	rev map[int64]string
}

// New creates an id map repository.
func New(s store) *Repo {
	return &Repo{
		store: s,
		fwd:   make(map[string]int64),
		rev:   make(map[int64]string),
	}
}

// GetOrCreateID returns the surrogate of domainID, allocating one if needed.
func (r *Repo) GetOrCreateID(ctx context.Context, domainID string) (int64, error) {
	if domainID == "" {
		return 0, fmt.Errorf("empty domain id: %w", domain.ErrValidation)
	}

	r.mu.RLock()
	n, ok := r.fwd[domainID]
	r.mu.RUnlock()
	if ok {
		return n, nil
	}

	n, found, err := r.loadForward(ctx, domainID)
	if err != nil {
		return 0, err
	}
	if found {
		if err := r.ensureReverse(ctx, domainID, n); err != nil {
			return 0, err
		}
		r.remember(domainID, n)
		return n, nil
	}

	next, err := r.store.IncrBy(ctx, seqKey(), 1)
	if err != nil {
		return 0, fmt.Errorf("allocate surrogate: %w", err)
	}

	if err := r.store.Set(ctx, reverseKey(next), []byte(domainID)); err != nil {
		return 0, fmt.Errorf("write reverse %d: %w", next, err)
	}

	claimed, err := r.store.SetNX(ctx, forwardKey(domainID), []byte(strconv.FormatInt(next, 10)))
	if err != nil {
		return 0, fmt.Errorf("claim %s: %w", domainID, err)
	}
	if !claimed {
		// другой писатель успел раньше; next сгорает
		winner, found, err := r.loadForward(ctx, domainID)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, fmt.Errorf("claim for %s lost but forward key missing", domainID)
		}
		if err := r.ensureReverse(ctx, domainID, winner); err != nil {
			return 0, err
		}
		r.remember(domainID, winner)
		return winner, nil
	}

	r.remember(domainID, next)
	return next, nil
}

// GetDomainID resolves a surrogate. Unknown surrogates report false.
func (r *Repo) GetDomainID(ctx context.Context, surrogate int64) (string, bool, error) {
	r.mu.RLock()
	id, ok := r.rev[surrogate]
	r.mu.RUnlock()
	if ok {
		return id, true, nil
	}

	data, err := r.store.Get(ctx, reverseKey(surrogate))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get reverse %d: %w", surrogate, err)
	}

	id = string(data)
	r.remember(id, surrogate)
	return id, true, nil
}

func (r *Repo) loadForward(ctx context.Context, domainID string) (int64, bool, error) {
	data, err := r.store.Get(ctx, forwardKey(domainID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get forward %s: %w", domainID, err)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt surrogate for %s: %w", domainID, err)
	}
	return n, true, nil
}

// ensureReverse restores a reverse key lost by a writer that failed midway.
func (r *Repo) ensureReverse(ctx context.Context, domainID string, n int64) error {
	_, err := r.store.Get(ctx, reverseKey(n))
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("get reverse %d: %w", n, err)
	}
	if err := r.store.Set(ctx, reverseKey(n), []byte(domainID)); err != nil {
		return fmt.Errorf("repair reverse %d: %w", n, err)
	}
	return nil
}

func (r *Repo) remember(domainID string, n int64) {
	r.mu.Lock()
	r.fwd[domainID] = n
	r.rev[n] = domainID
	r.mu.Unlock()
}

// Key patterns: taxoclass:idmap:seq, taxoclass:idmap:fwd:{id}, taxoclass:idmap:rev:{n}

func seqKey() string { return domain.KeyPrefix + "idmap:seq" }

func forwardKey(domainID string) string {
	return domain.KeyPrefix + "idmap:fwd:" + domainID
}

func reverseKey(n int64) string {
	return domain.KeyPrefix + "idmap:rev:" + strconv.FormatInt(n, 10)
}
