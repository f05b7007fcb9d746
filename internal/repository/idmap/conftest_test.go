package idmap

import (
	"context"
	"errors"
	"sync"

	"github.com/kailas-cloud/taxoclass/internal/db"
)

// memStore is a concurrency-safe in-memory KV store with atomic SETNX/INCRBY.
type memStore struct {
	mu   sync.Mutex
	kv   map[string][]byte
	seq  map[string]int64
	gets int

	// beforeSetNX runs before the claim, outside the lock (race simulation).
	beforeSetNX func(key string)
	// failSets makes the next N Set calls fail.
	failSets int
}

func newMemStore() *memStore {
	return &memStore{kv: map[string][]byte{}, seq: map[string]int64{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSets > 0 {
		m.failSets--
		return errors.New("write timeout")
	}
	m.kv[key] = value
	return nil
}

func (m *memStore) SetNX(_ context.Context, key string, value []byte) (bool, error) {
	if m.beforeSetNX != nil {
		m.beforeSetNX(key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.kv[key]; ok {
		return false, nil
	}
	m.kv[key] = value
	return true, nil
}

func (m *memStore) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[key] += val
	return m.seq[key], nil
}

func (m *memStore) getCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}
