package profile

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/kailas-cloud/taxoclass/internal/domain/eligibility"
	domprof "github.com/kailas-cloud/taxoclass/internal/domain/profile"
)

// Constraint sets are stored as JSON: null = unrestricted, [] = admits nothing.

func profileToHash(p domprof.Profile) (map[string]string, error) {
	keywordsJSON, err := json.Marshal(p.Keywords())
	if err != nil {
		return nil, fmt.Errorf("marshal keywords: %w", err)
	}
	gendersJSON, err := json.Marshal(p.Constraints().Genders.Values())
	if err != nil {
		return nil, fmt.Errorf("marshal genders: %w", err)
	}
	btJSON, err := json.Marshal(p.Constraints().BusinessTypes.Values())
	if err != nil {
		return nil, fmt.Errorf("marshal business types: %w", err)
	}
	return map[string]string{
		"category_id":         p.CategoryID().String(),
		"keywords_json":       string(keywordsJSON),
		"genders_json":        string(gendersJSON),
		"business_types_json": string(btJSON),
		"updated_at":          strconv.FormatInt(p.UpdatedAt(), 10),
	}, nil
}

func profileFromHash(m map[string]string) (domprof.Profile, error) {
	id, err := uuid.Parse(m["category_id"])
	if err != nil {
		return domprof.Profile{}, fmt.Errorf("invalid category_id: %w", err)
	}
	updatedAt, err := strconv.ParseInt(m["updated_at"], 10, 64)
	if err != nil {
		return domprof.Profile{}, fmt.Errorf("invalid updated_at: %w", err)
	}

	var keywords []string
	if kj := m["keywords_json"]; kj != "" {
		if err := json.Unmarshal([]byte(kj), &keywords); err != nil {
			return domprof.Profile{}, fmt.Errorf("unmarshal keywords: %w", err)
		}
	}

	genders, err := constraintFromJSON(m["genders_json"])
	if err != nil {
		return domprof.Profile{}, fmt.Errorf("genders: %w", err)
	}
	businessTypes, err := constraintFromJSON(m["business_types_json"])
	if err != nil {
		return domprof.Profile{}, fmt.Errorf("business types: %w", err)
	}

	return domprof.Reconstruct(id, keywords, eligibility.Constraints{
		Genders:       genders,
		BusinessTypes: businessTypes,
	}, updatedAt), nil
}

func constraintFromJSON(s string) (eligibility.Constraint, error) {
	if s == "" || s == "null" {
		return eligibility.Unrestricted(), nil
	}
	var values []string
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return eligibility.Constraint{}, fmt.Errorf("unmarshal constraint: %w", err)
	}
	if values == nil {
		values = []string{}
	}
	return eligibility.FromSlice(values), nil
}
