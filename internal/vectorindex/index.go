package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kailas-cloud/taxoclass/internal/db"
	"github.com/kailas-cloud/taxoclass/internal/domain"
)

// blobStore persists index snapshots. db.Store satisfies it.
type blobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Index publishes a Flat snapshot to readers and serializes writers.
// Readers never block on a rebuild: Swap replaces the snapshot atomically.
type Index struct {
	mapper Mapper
	blobs  blobStore
	key    string

	writeMu sync.Mutex
	current atomic.Pointer[Flat]
}

// New creates an empty, uninitialized index persisted under domain.KeyPrefix+key.
func New(mapper Mapper, blobs blobStore, key string) *Index {
	return &Index{mapper: mapper, blobs: blobs, key: key}
}

// NewBuilder returns a fresh Flat for an offline rebuild. Publish it with Swap.
func (ix *Index) NewBuilder(dim int) (*Flat, error) {
	f := NewFlat(ix.mapper)
	if err := f.Reset(dim); err != nil {
		return nil, err
	}
	return f, nil
}

// Reset publishes an empty index of the given dimension.
func (ix *Index) Reset(dim int) error {
	f, err := ix.NewBuilder(dim)
	if err != nil {
		return err
	}
	ix.Swap(f)
	return nil
}

// Swap publishes f as the current snapshot.
func (ix *Index) Swap(f *Flat) {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	ix.current.Store(f)
}

// Ready reports whether a snapshot is published.
func (ix *Index) Ready() bool {
	return ix.current.Load() != nil
}

// Len returns the size of the current snapshot, 0 when not ready.
func (ix *Index) Len() int {
	if f := ix.current.Load(); f != nil {
		return f.Len()
	}
	return 0
}

// Dim returns the dimension of the current snapshot, 0 when not ready.
func (ix *Index) Dim() int {
	if f := ix.current.Load(); f != nil {
		return f.Dim()
	}
	return 0
}

// Upsert adds or replaces one vector in the current snapshot.
func (ix *Index) Upsert(ctx context.Context, domainID string, vec []float32) error {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	f := ix.current.Load()
	if f == nil {
		return domain.ErrIndexNotInitialized
	}
	return f.Upsert(ctx, domainID, vec)
}

// Search queries the current snapshot.
func (ix *Index) Search(ctx context.Context, query []float32, topK int) ([]Hit, error) {
	f := ix.current.Load()
	if f == nil {
		return nil, domain.ErrIndexNotInitialized
	}
	return f.Search(ctx, query, topK)
}

// Save writes the current snapshot to the blob store.
func (ix *Index) Save(ctx context.Context) error {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	f := ix.current.Load()
	if f == nil {
		return domain.ErrIndexNotInitialized
	}
	data, err := f.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := ix.blobs.Set(ctx, ix.blobKey(), data); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// Load restores the snapshot from the blob store. Returns false when none is stored.
func (ix *Index) Load(ctx context.Context) (bool, error) {
	data, err := ix.blobs.Get(ctx, ix.blobKey())
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load index: %w", err)
	}
	f := NewFlat(ix.mapper)
	if err := f.UnmarshalBinary(data); err != nil {
		return false, fmt.Errorf("decode index: %w", err)
	}
	ix.Swap(f)
	return true, nil
}

func (ix *Index) blobKey() string {
	return domain.KeyPrefix + ix.key
}
