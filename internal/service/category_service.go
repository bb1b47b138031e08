package service

import (
	"context"
	"strings"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"
	"agora/internal/validation"
)

const maxCategoryNameLen = 100

type CategoryService struct {
	categoryRepo repository.CategoryRepository
}

func NewCategoryService(categoryRepo repository.CategoryRepository) *CategoryService {
	return &CategoryService{categoryRepo: categoryRepo}
}

// ListCategories returns every category ordered by name.
func (s *CategoryService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []models.Category{}
	}
	return categories, nil
}

func (s *CategoryService) CreateCategory(ctx context.Context, adminID uint, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateLength("Name", name, true, maxCategoryNameLen); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	category := &models.Category{Name: name}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}
	observability.Audit().Moderation(ctx, adminID, "create", "category", category.ID)
	return category, nil
}

func (s *CategoryService) DeleteCategory(ctx context.Context, adminID, id uint) error {
	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		return err
	}
	observability.Audit().Moderation(ctx, adminID, "delete", "category", id)
	return nil
}
