package exclusion

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	domexcl "github.com/kailas-cloud/taxoclass/internal/domain/exclusion"
)

// memStore is a map-backed consumer interface for tests.
type memStore struct {
	hashes  map[string]map[string]string
	readErr error
}

func (m *memStore) HSet(_ context.Context, key string, fields map[string]string) error {
	if m.hashes == nil {
		m.hashes = map[string]map[string]string{}
	}
	if m.hashes[key] == nil {
		m.hashes[key] = map[string]string{}
	}
	for k, v := range fields {
		m.hashes[key][k] = v
	}
	return nil
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := map[string]string{}
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) HDel(_ context.Context, key string, fields ...string) error {
	for _, f := range fields {
		delete(m.hashes[key], f)
	}
	return nil
}

func TestAdd_IdempotentOverwritesReason(t *testing.T) {
	ms := &memStore{}
	repo := New(ms)
	ctx := context.Background()
	p, c := uuid.New(), uuid.New()

	e1, _ := domexcl.New(p, c, "first")
	e2, _ := domexcl.New(p, c, "second")
	if err := repo.Add(ctx, e1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := repo.Add(ctx, e2); err != nil {
		t.Fatalf("Add: %v", err)
	}

	list, err := repo.List(ctx, p)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Reason() != "second" {
		t.Errorf("unexpected exclusions %+v", list)
	}
	if _, ok := ms.hashes["taxoclass:exclusion:"+p.String()]; !ok {
		t.Errorf("unexpected keys %v", ms.hashes)
	}
}

func TestExcludedCategoryIDs(t *testing.T) {
	ms := &memStore{}
	repo := New(ms)
	ctx := context.Background()
	p, a, b := uuid.New(), uuid.New(), uuid.New()

	for _, c := range []uuid.UUID{a, b} {
		e, _ := domexcl.New(p, c, "")
		_ = repo.Add(ctx, e)
	}

	set, err := repo.ExcludedCategoryIDs(ctx, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("expected 2, got %d", len(set))
	}
	if _, ok := set[a]; !ok {
		t.Error("missing a")
	}

	empty, err := repo.ExcludedCategoryIDs(ctx, uuid.New())
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty set, got %v %v", empty, err)
	}
}

func TestRemove(t *testing.T) {
	ms := &memStore{}
	repo := New(ms)
	ctx := context.Background()
	p, c := uuid.New(), uuid.New()
	e, _ := domexcl.New(p, c, "x")
	_ = repo.Add(ctx, e)

	if err := repo.Remove(ctx, p, c); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	list, _ := repo.List(ctx, p)
	if len(list) != 0 {
		t.Errorf("expected no exclusions, got %v", list)
	}
}

func TestList_CorruptField(t *testing.T) {
	ms := &memStore{hashes: map[string]map[string]string{}}
	p := uuid.New()
	ms.hashes["taxoclass:exclusion:"+p.String()] = map[string]string{"garbage": "x"}

	if _, err := New(ms).List(context.Background(), p); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestList_StoreError(t *testing.T) {
	repo := New(&memStore{readErr: errors.New("down")})
	if _, err := repo.ExcludedCategoryIDs(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error")
	}
}
