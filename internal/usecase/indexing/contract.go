package indexing

import (
	"context"

	"github.com/google/uuid"

	domcat "github.com/kailas-cloud/taxoclass/internal/domain/category"
	"github.com/kailas-cloud/taxoclass/internal/domain/catembedding"
	domprof "github.com/kailas-cloud/taxoclass/internal/domain/profile"
	"github.com/kailas-cloud/taxoclass/internal/vectorindex"
)

// CategoryLister loads every category.
type CategoryLister interface {
	List(ctx context.Context) ([]domcat.Category, error)
}

// ProfileLister loads every classification profile.
type ProfileLister interface {
	List(ctx context.Context) ([]domprof.Profile, error)
}

// RecordStore persists category vectors between rebuilds.
type RecordStore interface {
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catembedding.Record, error)
	SaveMany(ctx context.Context, records []catembedding.Record) error
}

// Index is the published vector index.
type Index interface {
	NewBuilder(dim int) (*vectorindex.Flat, error)
	Swap(f *vectorindex.Flat)
	Reset(dim int) error
	Save(ctx context.Context) error
	Load(ctx context.Context) (bool, error)
	Len() int
	Dim() int
}
