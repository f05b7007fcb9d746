// Package vectorindex provides exact inner-product search over L2-normalized
// vectors keyed by stable int64 surrogates.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kailas-cloud/taxoclass/internal/domain"
)

// Mapper translates domain ids to surrogates and back.
type Mapper interface {
	GetOrCreateID(ctx context.Context, domainID string) (int64, error)
	GetDomainID(ctx context.Context, surrogate int64) (string, bool, error)
}

// Hit is a search result. Score is the inner product of normalized vectors (cosine).
type Hit struct {
	ID    string
	Score float64
}

// Flat is a brute-force inner-product index. Safe for concurrent use.
// Dimension 0 means not initialized.
type Flat struct {
	mapper Mapper

	mu   sync.RWMutex
	dim  int
	ids  []int64
	vecs [][]float32
	pos  map[int64]int
}

// NewFlat creates an uninitialized index. Call Reset or UnmarshalBinary first.
func NewFlat(m Mapper) *Flat {
	return &Flat{mapper: m}
}

// Reset drops all vectors and fixes the dimension.
func (f *Flat) Reset(dim int) error {
	if dim <= 0 {
		return fmt.Errorf("index dimension must be positive, got %d: %w", dim, domain.ErrValidation)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dim = dim
	f.ids = nil
	f.vecs = nil
	f.pos = make(map[int64]int)
	return nil
}

// Dim returns the configured dimension or 0.
func (f *Flat) Dim() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dim
}

// Len returns the number of stored vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Upsert inserts or replaces the vector of domainID.
// A replaced vector keeps its original position, so tie order is stable.
func (f *Flat) Upsert(ctx context.Context, domainID string, vec []float32) error {
	dim := f.Dim()
	if dim == 0 {
		return domain.ErrIndexNotInitialized
	}
	if err := domain.CheckDim(vec, dim); err != nil {
		return fmt.Errorf("upsert %s: %w", domainID, err)
	}

	id, err := f.mapper.GetOrCreateID(ctx, domainID)
	if err != nil {
		return fmt.Errorf("map %s: %w", domainID, err)
	}
	norm := Normalize(vec)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dim != dim {
		return fmt.Errorf("index reset during upsert: %w", domain.ErrVectorDimMismatch)
	}
	if i, ok := f.pos[id]; ok {
		f.vecs[i] = norm
		return nil
	}
	f.pos[id] = len(f.ids)
	f.ids = append(f.ids, id)
	f.vecs = append(f.vecs, norm)
	return nil
}

// Search returns up to topK hits by descending score. Ties keep insertion order.
// Surrogates the mapper cannot resolve are dropped.
func (f *Flat) Search(ctx context.Context, query []float32, topK int) ([]Hit, error) {
	type scored struct {
		id    int64
		score float64
	}

	f.mu.RLock()
	if f.dim == 0 {
		f.mu.RUnlock()
		return nil, domain.ErrIndexNotInitialized
	}
	if err := domain.CheckDim(query, f.dim); err != nil {
		f.mu.RUnlock()
		return nil, fmt.Errorf("search: %w", err)
	}
	q := Normalize(query)
	all := make([]scored, len(f.ids))
	for i, v := range f.vecs {
		all[i] = scored{id: f.ids[i], score: dot(q, v)}
	}
	f.mu.RUnlock()

	if topK <= 0 {
		return []Hit{}, nil
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	hits := make([]Hit, 0, min(topK, len(all)))
	for _, s := range all {
		if len(hits) == topK {
			break
		}
		domainID, ok, err := f.mapper.GetDomainID(ctx, s.id)
		if err != nil {
			return nil, fmt.Errorf("resolve surrogate %d: %w", s.id, err)
		}
		if !ok {
			continue
		}
		hits = append(hits, Hit{ID: domainID, Score: s.score})
	}
	return hits, nil
}

const (
	snapshotMagic   = "TXFI"
	snapshotVersion = uint16(1)
)

// MarshalBinary encodes the index structure (dimension, surrogates, vectors).
// Layout, little-endian: magic[4] version:u16 dim:u32 n:u32 then n × (id:i64, dim × f32).
func (f *Flat) MarshalBinary() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.dim == 0 {
		return nil, domain.ErrIndexNotInitialized
	}

	buf := bytes.NewBuffer(make([]byte, 0, 14+len(f.ids)*(8+4*f.dim)))
	buf.WriteString(snapshotMagic)
	_ = binary.Write(buf, binary.LittleEndian, snapshotVersion)
	_ = binary.Write(buf, binary.LittleEndian, uint32(f.dim))      //nolint:gosec // dim > 0
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(f.ids))) //nolint:gosec // bounded by memory
	for i, id := range f.ids {
		_ = binary.Write(buf, binary.LittleEndian, id)
		_ = binary.Write(buf, binary.LittleEndian, f.vecs[i])
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary replaces the index content with a snapshot.
func (f *Flat) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	magic := make([]byte, len(snapshotMagic))
	if _, err := r.Read(magic); err != nil || string(magic) != snapshotMagic {
		return errors.New("index snapshot: bad magic")
	}
	var (
		version uint16
		dim, n  uint32
	)
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("index snapshot: read version: %w", err)
	}
	if version != snapshotVersion {
		return fmt.Errorf("index snapshot: unsupported version %d", version)
	}
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("index snapshot: read dim: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("index snapshot: read count: %w", err)
	}
	if dim == 0 {
		return errors.New("index snapshot: zero dimension")
	}
	if want := int64(n) * (8 + 4*int64(dim)); int64(r.Len()) != want {
		return fmt.Errorf("index snapshot: expected %d payload bytes, have %d", want, r.Len())
	}

	ids := make([]int64, n)
	vecs := make([][]float32, n)
	pos := make(map[int64]int, n)
	for i := range ids {
		if err := binary.Read(r, binary.LittleEndian, &ids[i]); err != nil {
			return fmt.Errorf("index snapshot: read id %d: %w", i, err)
		}
		vecs[i] = make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vecs[i]); err != nil {
			return fmt.Errorf("index snapshot: read vector %d: %w", i, err)
		}
		pos[ids[i]] = i
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.dim = int(dim)
	f.ids = ids
	f.vecs = vecs
	f.pos = pos
	return nil
}

// Normalize returns v scaled to unit L2 norm. A zero vector is returned as a copy.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
