package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	domcat "github.com/kailas-cloud/taxoclass/internal/domain/category"
	"github.com/kailas-cloud/taxoclass/internal/domain/eligibility"
	domexcl "github.com/kailas-cloud/taxoclass/internal/domain/exclusion"
	domprod "github.com/kailas-cloud/taxoclass/internal/domain/product"
	domprof "github.com/kailas-cloud/taxoclass/internal/domain/profile"
	"github.com/kailas-cloud/taxoclass/internal/domain/semhash"
)

// maxDepth bounds the ancestor walk in case storage already holds a cycle.
const maxDepth = 1000

// CategoryInput holds fields for a new category. Zero ParentID = root.
type CategoryInput struct {
	Name        string
	Description string
	Keywords    []string
	ParentID    uuid.UUID
}

// ProductInput holds fields for a new product.
type ProductInput struct {
	Title        string
	Description  string
	Keywords     []string
	Gender       string
	BusinessType string
}

// Service manages the category tree, profiles, products and exclusions.
type Service struct {
	categories CategoryRepository
	profiles   ProfileRepository
	products   ProductRepository
	exclusions ExclusionRepository
	hasher     *semhash.Hasher
	logger     *zap.Logger
}

// New creates a catalog service. A nil hasher uses the default language.
func New(
	categories CategoryRepository,
	profiles ProfileRepository,
	products ProductRepository,
	exclusions ExclusionRepository,
	hasher *semhash.Hasher,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		categories: categories,
		profiles:   profiles,
		products:   products,
		exclusions: exclusions,
		hasher:     hasher,
		logger:     logger,
	}
}

// CreateCategory validates and stores a category. The parent must exist and the
// description must not duplicate another category's content.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (domcat.Category, error) {
	c, err := domcat.New(in.Name, in.Description, in.Keywords, in.ParentID, s.hasher)
	if err != nil {
		return domcat.Category{}, fmt.Errorf("validate category: %w", err)
	}

	if !c.IsRoot() {
		if err := s.requireCategory(ctx, c.ParentID()); err != nil {
			return domcat.Category{}, fmt.Errorf("parent: %w", err)
		}
	}

	if err := s.categories.Create(ctx, c); err != nil {
		return domcat.Category{}, fmt.Errorf("create category: %w", err)
	}

	s.logger.Info("Category created",
		zap.String("category_id", c.ID().String()),
		zap.String("name", c.Name()),
		zap.Bool("root", c.IsRoot()),
	)
	return c, nil
}

// GetCategory retrieves a category by id.
func (s *Service) GetCategory(ctx context.Context, id uuid.UUID) (domcat.Category, error) {
	c, err := s.categories.Get(ctx, id)
	if err != nil {
		return domcat.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories in creation order.
func (s *Service) ListCategories(ctx context.Context) ([]domcat.Category, error) {
	cats, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// ReparentCategory moves a category under newParent (uuid.Nil = make root).
// Fails with domain.ErrCycle when newParent is the category itself or one of its descendants.
func (s *Service) ReparentCategory(ctx context.Context, id, newParent uuid.UUID) (domcat.Category, error) {
	c, err := s.categories.Get(ctx, id)
	if err != nil {
		return domcat.Category{}, fmt.Errorf("get category: %w", err)
	}

	if newParent != uuid.Nil {
		if err := s.checkAncestry(ctx, id, newParent); err != nil {
			return domcat.Category{}, err
		}
	}

	moved, err := c.WithParent(newParent)
	if err != nil {
		return domcat.Category{}, err
	}
	if err := s.categories.Update(ctx, moved); err != nil {
		return domcat.Category{}, fmt.Errorf("update category: %w", err)
	}

	s.logger.Info("Category reparented",
		zap.String("category_id", id.String()),
		zap.String("old_parent", c.ParentID().String()),
		zap.String("new_parent", newParent.String()),
	)
	return moved, nil
}

// checkAncestry walks from candidate up to the root. Meeting id on the way means
// id would become its own ancestor.
func (s *Service) checkAncestry(ctx context.Context, id, candidate uuid.UUID) error {
	cur := candidate
	for depth := 0; cur != uuid.Nil; depth++ {
		if cur == id {
			return fmt.Errorf("move %s under %s: %w", id, candidate, domain.ErrCycle)
		}
		if depth >= maxDepth {
			return fmt.Errorf("ancestry of %s deeper than %d: %w", candidate, maxDepth, domain.ErrCycle)
		}
		anc, err := s.categories.Get(ctx, cur)
		if err != nil {
			return fmt.Errorf("parent: %w", err)
		}
		cur = anc.ParentID()
	}
	return nil
}

// UpsertProfile replaces the classification profile of an existing category.
func (s *Service) UpsertProfile(
	ctx context.Context, categoryID uuid.UUID, keywords []string, constraints eligibility.Constraints,
) (domprof.Profile, error) {
	p, err := domprof.New(categoryID, keywords, constraints)
	if err != nil {
		return domprof.Profile{}, fmt.Errorf("validate profile: %w", err)
	}
	if err := s.requireCategory(ctx, categoryID); err != nil {
		return domprof.Profile{}, err
	}
	if err := s.profiles.Upsert(ctx, p); err != nil {
		return domprof.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return p, nil
}

// GetProfile retrieves the profile of a category.
func (s *Service) GetProfile(ctx context.Context, categoryID uuid.UUID) (domprof.Profile, error) {
	p, err := s.profiles.Get(ctx, categoryID)
	if err != nil {
		return domprof.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// CreateProduct validates and stores a product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (domprod.Product, error) {
	p, err := domprod.New(in.Title, in.Description, in.Keywords, in.Gender, in.BusinessType)
	if err != nil {
		return domprod.Product{}, fmt.Errorf("validate product: %w", err)
	}
	if err := s.products.Save(ctx, p); err != nil {
		return domprod.Product{}, fmt.Errorf("save product: %w", err)
	}
	return p, nil
}

// GetProduct retrieves a product by id.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (domprod.Product, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		return domprod.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// AddExclusion forbids a category for a product. Both must exist. Idempotent.
func (s *Service) AddExclusion(ctx context.Context, productID, categoryID uuid.UUID, reason string) (domexcl.Exclusion, error) {
	e, err := domexcl.New(productID, categoryID, reason)
	if err != nil {
		return domexcl.Exclusion{}, fmt.Errorf("validate exclusion: %w", err)
	}
	if _, err := s.products.Get(ctx, productID); err != nil {
		return domexcl.Exclusion{}, fmt.Errorf("get product: %w", err)
	}
	if err := s.requireCategory(ctx, categoryID); err != nil {
		return domexcl.Exclusion{}, err
	}
	if err := s.exclusions.Add(ctx, e); err != nil {
		return domexcl.Exclusion{}, fmt.Errorf("add exclusion: %w", err)
	}

	s.logger.Info("Exclusion added",
		zap.String("product_id", productID.String()),
		zap.String("category_id", categoryID.String()),
	)
	return e, nil
}

// RemoveExclusion lifts an exclusion. Removing an absent pair is a no-op.
func (s *Service) RemoveExclusion(ctx context.Context, productID, categoryID uuid.UUID) error {
	if _, err := s.products.Get(ctx, productID); err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if err := s.exclusions.Remove(ctx, productID, categoryID); err != nil {
		return fmt.Errorf("remove exclusion: %w", err)
	}
	s.logger.Info("Exclusion removed",
		zap.String("product_id", productID.String()),
		zap.String("category_id", categoryID.String()),
	)
	return nil
}

// ListExclusions returns the exclusions of an existing product.
func (s *Service) ListExclusions(ctx context.Context, productID uuid.UUID) ([]domexcl.Exclusion, error) {
	if _, err := s.products.Get(ctx, productID); err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	list, err := s.exclusions.List(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list exclusions: %w", err)
	}
	return list, nil
}

func (s *Service) requireCategory(ctx context.Context, id uuid.UUID) error {
	ok, err := s.categories.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check category %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("category %s: %w", id, domain.ErrCategoryNotFound)
	}
	return nil
}
