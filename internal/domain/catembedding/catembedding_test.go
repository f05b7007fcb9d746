package catembedding

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	"github.com/kailas-cloud/taxoclass/internal/domain/semhash"
)

func TestNew(t *testing.T) {
	id := uuid.New()
	h := semhash.FromText("audio")
	r, err := New(id, h, []float32{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.CategoryID() != id || r.Dim() != 3 || r.CreatedAt() == 0 {
		t.Errorf("unexpected record %+v", r)
	}
	if !r.Fresh(h, 3) {
		t.Error("expected fresh")
	}
	if r.Fresh(semhash.FromText("video"), 3) {
		t.Error("different content must not be fresh")
	}
	if r.Fresh(h, 4) {
		t.Error("different dimension must not be fresh")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(uuid.Nil, "", []float32{1}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if _, err := New(uuid.New(), "", nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
