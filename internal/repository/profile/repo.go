package profile

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	domprof "github.com/kailas-cloud/taxoclass/internal/domain/profile"
)

// store is the consumer interface for profiles (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements usecase/catalog.ProfileRepository.
type Repo struct {
	store store
}

// New creates a profile repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Upsert stores the profile, replacing any previous one for the category.
// Every field is written, so HSET alone replaces the whole record.
func (r *Repo) Upsert(ctx context.Context, p domprof.Profile) error {
	hashData, err := profileToHash(p)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, profileKey(p.CategoryID()), hashData); err != nil {
		return fmt.Errorf("hset profile %s: %w", p.CategoryID(), err)
	}
	return nil
}

// Get retrieves the profile of a category.
func (r *Repo) Get(ctx context.Context, categoryID uuid.UUID) (domprof.Profile, error) {
	m, err := r.store.HGetAll(ctx, profileKey(categoryID))
	if err != nil {
		return domprof.Profile{}, fmt.Errorf("hgetall profile %s: %w", categoryID, err)
	}
	if len(m) == 0 {
		return domprof.Profile{}, fmt.Errorf("profile %s: %w", categoryID, domain.ErrNotFound)
	}
	return profileFromHash(m)
}

// List returns every profile ordered by category id.
func (r *Repo) List(ctx context.Context) ([]domprof.Profile, error) {
	keys, err := r.store.Scan(ctx, domain.KeyPrefix+"profile:*")
	if err != nil {
		return nil, fmt.Errorf("scan profiles: %w", err)
	}
	if len(keys) == 0 {
		return []domprof.Profile{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi profiles: %w", err)
	}

	profiles := make([]domprof.Profile, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		p, err := profileFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse profile %s: %w", keys[i], err)
		}
		profiles = append(profiles, p)
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].CategoryID().String() < profiles[j].CategoryID().String()
	})
	return profiles, nil
}

func profileKey(categoryID uuid.UUID) string {
	return fmt.Sprintf("%sprofile:%s", domain.KeyPrefix, categoryID)
}
