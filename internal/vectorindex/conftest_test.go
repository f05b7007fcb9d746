package vectorindex

import (
	"context"
	"sync"

	"github.com/kailas-cloud/taxoclass/internal/db"
)

// memMapper assigns surrogates 1, 2, 3... in first-seen order.
type memMapper struct {
	mu  sync.Mutex
	fwd map[string]int64
	rev map[int64]string
}

func newMemMapper() *memMapper {
	return &memMapper{fwd: map[string]int64{}, rev: map[int64]string{}}
}

func (m *memMapper) GetOrCreateID(_ context.Context, domainID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.fwd[domainID]; ok {
		return id, nil
	}
	id := int64(len(m.fwd) + 1)
	m.fwd[domainID] = id
	m.rev[id] = domainID
	return id, nil
}

func (m *memMapper) GetDomainID(_ context.Context, id int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rev[id]
	return s, ok, nil
}

func (m *memMapper) forget(domainID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rev, m.fwd[domainID])
}

type memBlobs struct {
	data map[string][]byte
	err  error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: map[string][]byte{}}
}

func (b *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	v, ok := b.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (b *memBlobs) Set(_ context.Context, key string, value []byte) error {
	if b.err != nil {
		return b.err
	}
	b.data[key] = value
	return nil
}
