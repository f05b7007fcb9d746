package category

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	domcat "github.com/kailas-cloud/taxoclass/internal/domain/category"
	"github.com/kailas-cloud/taxoclass/internal/domain/semhash"
)

// categoryToHash converts a domain Category to a map for HSET.
func categoryToHash(c domcat.Category) (map[string]string, error) {
	keywordsJSON, err := json.Marshal(c.Keywords())
	if err != nil {
		return nil, fmt.Errorf("marshal keywords: %w", err)
	}
	parent := ""
	if !c.IsRoot() {
		parent = c.ParentID().String()
	}
	return map[string]string{
		"id":            c.ID().String(),
		"name":          c.Name(),
		"description":   c.Description(),
		"keywords_json": string(keywordsJSON),
		"parent_id":     parent,
		"semantic_hash": string(c.SemanticHash()),
		"created_at":    strconv.FormatInt(c.CreatedAt(), 10),
	}, nil
}

// categoryFromHash hydrates a domain Category from an HGETALL result map.
func categoryFromHash(m map[string]string) (domcat.Category, error) {
	id, err := uuid.Parse(m["id"])
	if err != nil {
		return domcat.Category{}, fmt.Errorf("invalid id: %w", err)
	}

	parent := uuid.Nil
	if p := m["parent_id"]; p != "" {
		if parent, err = uuid.Parse(p); err != nil {
			return domcat.Category{}, fmt.Errorf("invalid parent_id: %w", err)
		}
	}

	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return domcat.Category{}, fmt.Errorf("invalid created_at: %w", err)
	}

	var keywords []string
	if kj := m["keywords_json"]; kj != "" {
		if err := json.Unmarshal([]byte(kj), &keywords); err != nil {
			return domcat.Category{}, fmt.Errorf("unmarshal keywords: %w", err)
		}
	}

	return domcat.Reconstruct(
		id, m["name"], m["description"], keywords,
		parent, semhash.Hash(m["semantic_hash"]), createdAt,
	), nil
}
