package services

import (
	"context"
	"fmt"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	applog "spendwise/internal/log"
	"spendwise/internal/storage"
)

type CategoryInput struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

type CategoryService struct {
	store  storage.CategoryStore
	events events
}

func NewCategoryService(store storage.CategoryStore, ev events) *CategoryService {
	return &CategoryService{store: store, events: ev}
}

// List returns the user's categories in insertion order, defaults first.
func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	cats, err := s.store.ListCategories(ctx, userID, storage.MaxCategories)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// Create adds a custom category.
func (s *CategoryService) Create(ctx context.Context, userID string, in CategoryInput) (core.Category, error) {
	c := core.Category{
		ID:        core.NewID(),
		UserID:    userID,
		Name:      in.Name,
		Icon:      in.Icon,
		Color:     in.Color,
		IsCustom:  true,
		CreatedAt: core.Now(),
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentCategory).InfoContext(ctx, "Category created",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldUserID, userID,
		applog.FieldEntityID, c.ID)
	s.events.emit(ctx, amqp.CategoryCreated, userID, c.ID)
	return c, nil
}

// Delete removes a custom category. Seeded defaults cannot be deleted.
// Expenses that reference the category by name are left alone.
func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	c, err := s.store.GetCategory(ctx, userID, id)
	if err != nil {
		return notFoundAs(err, core.ErrCategoryNotFound, "get category")
	}
	if !c.IsCustom {
		return core.ErrDefaultCategory
	}
	if err := s.store.DeleteCategory(ctx, userID, id); err != nil {
		return notFoundAs(err, core.ErrCategoryNotFound, "delete category")
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentCategory).InfoContext(ctx, "Category deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldUserID, userID,
		applog.FieldEntityID, id)
	s.events.emit(ctx, amqp.CategoryDeleted, userID, id)
	return nil
}
