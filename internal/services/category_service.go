package services

import (
	"context"
	"strings"

	"dryfruits/internal/models"
	"dryfruits/internal/repositories"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page is one slice of a listing plus the size of the whole result.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int64 `json:"total_pages"`
}

// CategoryService manages product categories.
type CategoryService struct {
	repo repositories.CategoryRepository
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(repo repositories.CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

// CreateCategory stores a category under a unique slug derived from name.
func (s *CategoryService) CreateCategory(ctx context.Context, name, status string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidf("name is required")
	}
	if status == "" {
		status = models.StatusActive
	}
	if status != models.StatusActive && status != models.StatusInactive {
		return nil, invalidf("status must be %s or %s", models.StatusActive, models.StatusInactive)
	}

	slug, err := uniqueSlug(ctx, Slugify(name), s.repo.SlugExists)
	if err != nil {
		return nil, err
	}
	category := &models.Category{Name: name, Slug: slug, Status: status}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, storeErr(err, "failed to create category %s", name)
	}
	return category, nil
}

// GetCategory retrieves a category by id.
func (s *CategoryService) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "failed to get category")
	}
	return category, nil
}

// ListCategories returns page (1-based) of the categories, optionally only
// those with status.
func (s *CategoryService) ListCategories(ctx context.Context, page, limit int, status string) (*Page[models.Category], error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	items, total, err := s.repo.List(ctx, status, (page-1)*limit, limit)
	if err != nil {
		return nil, storeErr(err, "failed to list categories")
	}
	return &Page[models.Category]{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
	}, nil
}
