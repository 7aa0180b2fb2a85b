package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/repositories"
)

var (
	// ErrCatalogInvalidInput signals the caller provided invalid arguments.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogItemNotFound indicates the item does not exist.
	ErrCatalogItemNotFound = errors.New("catalog: item not found")
	// ErrCatalogCategoryNotFound indicates the category does not exist.
	ErrCatalogCategoryNotFound = errors.New("catalog: category not found")
	// ErrCatalogDuplicateSKU indicates the SKU is already taken.
	ErrCatalogDuplicateSKU = errors.New("catalog: sku already exists")
	// ErrCatalogDuplicateCategory indicates the category name is already taken.
	ErrCatalogDuplicateCategory = errors.New("catalog: category already exists")
	// ErrCatalogConflict indicates the record is still referenced and cannot be deleted.
	ErrCatalogConflict = errors.New("catalog: record in use")
	// ErrCatalogStorage indicates an unexpected persistence failure.
	ErrCatalogStorage = errors.New("catalog: storage failure")
)

// CatalogServiceDeps bundles the collaborators required to construct a catalog service.
type CatalogServiceDeps struct {
	Items       repositories.ItemRepository
	Categories  repositories.CategoryRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type catalogService struct {
	items      repositories.ItemRepository
	categories repositories.CategoryRepository
	clock      func() time.Time
	newID      func() string
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Items == nil {
		return nil, errors.New("catalog service: item repository is required")
	}
	if deps.Categories == nil {
		return nil, errors.New("catalog service: category repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &catalogService{
		items:      deps.Items,
		categories: deps.Categories,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *catalogService) CreateItem(ctx context.Context, cmd CreateItemCommand) (domain.Item, error) {
	name := strings.TrimSpace(cmd.Name)
	sku := strings.ToUpper(strings.TrimSpace(cmd.SKU))
	if name == "" {
		return domain.Item{}, fmt.Errorf("%w: item name is required", ErrCatalogInvalidInput)
	}
	if sku == "" {
		return domain.Item{}, fmt.Errorf("%w: sku is required", ErrCatalogInvalidInput)
	}
	if cmd.PriceCents <= 0 {
		return domain.Item{}, fmt.Errorf("%w: price must be positive", ErrCatalogInvalidInput)
	}
	if cmd.Stock < 0 {
		return domain.Item{}, fmt.Errorf("%w: stock cannot be negative", ErrCatalogInvalidInput)
	}

	categoryID := strings.TrimSpace(cmd.CategoryID)
	if categoryID != "" {
		if _, err := s.categories.Get(ctx, categoryID); err != nil {
			return domain.Item{}, s.mapCatalogError("resolve category", err)
		}
	}

	now := s.clock()
	item := domain.Item{
		ID:         "itm_" + s.newID(),
		Name:       name,
		SKU:        sku,
		PriceCents: cmd.PriceCents,
		Stock:      cmd.Stock,
		CategoryID: categoryID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	created, err := s.items.Create(ctx, item)
	if err != nil {
		return domain.Item{}, s.mapCatalogError("create item", err)
	}
	return created, nil
}

func (s *catalogService) GetItem(ctx context.Context, id string) (domain.Item, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return domain.Item{}, fmt.Errorf("%w: item id is required", ErrCatalogInvalidInput)
	}
	item, err := s.items.Get(ctx, trimmed)
	if err != nil {
		return domain.Item{}, s.mapCatalogError("get item", err)
	}
	return item, nil
}

func (s *catalogService) ListItems(ctx context.Context, filter ItemListFilter) ([]domain.Item, error) {
	items, err := s.items.List(ctx, repositories.ItemListQuery{
		SKU:        strings.ToUpper(strings.TrimSpace(filter.SKU)),
		CategoryID: strings.TrimSpace(filter.CategoryID),
		Limit:      filter.Pagination.Limit,
		Offset:     filter.Pagination.Offset,
	})
	if err != nil {
		return nil, s.mapCatalogError("list items", err)
	}
	return items, nil
}

func (s *catalogService) UpdateItem(ctx context.Context, id string, cmd UpdateItemCommand) (domain.Item, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return domain.Item{}, fmt.Errorf("%w: item id is required", ErrCatalogInvalidInput)
	}

	update := repositories.ItemUpdate{}
	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return domain.Item{}, fmt.Errorf("%w: item name cannot be empty", ErrCatalogInvalidInput)
		}
		update.Name = &name
	}
	if cmd.SKU != nil {
		sku := strings.ToUpper(strings.TrimSpace(*cmd.SKU))
		if sku == "" {
			return domain.Item{}, fmt.Errorf("%w: sku cannot be empty", ErrCatalogInvalidInput)
		}
		update.SKU = &sku
	}
	if cmd.PriceCents != nil {
		if *cmd.PriceCents <= 0 {
			return domain.Item{}, fmt.Errorf("%w: price must be positive", ErrCatalogInvalidInput)
		}
		update.PriceCents = cmd.PriceCents
	}
	if cmd.CategoryID != nil {
		categoryID := strings.TrimSpace(*cmd.CategoryID)
		if categoryID != "" {
			if _, err := s.categories.Get(ctx, categoryID); err != nil {
				return domain.Item{}, s.mapCatalogError("resolve category", err)
			}
		}
		update.CategoryID = &categoryID
	}
	if update.Name == nil && update.SKU == nil && update.PriceCents == nil && update.CategoryID == nil {
		return domain.Item{}, fmt.Errorf("%w: no fields to update", ErrCatalogInvalidInput)
	}

	item, err := s.items.Update(ctx, trimmed, update)
	if err != nil {
		return domain.Item{}, s.mapCatalogError("update item", err)
	}
	return item, nil
}

func (s *catalogService) DeleteItem(ctx context.Context, id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("%w: item id is required", ErrCatalogInvalidInput)
	}
	if err := s.items.Delete(ctx, trimmed); err != nil {
		return s.mapCatalogError("delete item", err)
	}
	return nil
}

func (s *catalogService) CreateCategory(ctx context.Context, cmd CreateCategoryCommand) (domain.Category, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: category name is required", ErrCatalogInvalidInput)
	}

	category := domain.Category{
		ID:          "cat_" + s.newID(),
		Name:        name,
		Description: strings.TrimSpace(cmd.Description),
		CreatedAt:   s.clock(),
	}
	created, err := s.categories.Create(ctx, category)
	if err != nil {
		return domain.Category{}, s.mapCatalogError("create category", err)
	}
	return created, nil
}

func (s *catalogService) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return domain.Category{}, fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	category, err := s.categories.Get(ctx, trimmed)
	if err != nil {
		return domain.Category{}, s.mapCatalogError("get category", err)
	}
	return category, nil
}

func (s *catalogService) ListCategories(ctx context.Context, filter CategoryListFilter) ([]domain.Category, error) {
	categories, err := s.categories.List(ctx, repositories.CategoryListQuery{
		Limit:  filter.Pagination.Limit,
		Offset: filter.Pagination.Offset,
	})
	if err != nil {
		return nil, s.mapCatalogError("list categories", err)
	}
	return categories, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, id string, cmd UpdateCategoryCommand) (domain.Category, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return domain.Category{}, fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}

	update := repositories.CategoryUpdate{}
	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return domain.Category{}, fmt.Errorf("%w: category name cannot be empty", ErrCatalogInvalidInput)
		}
		update.Name = &name
	}
	if cmd.Description != nil {
		description := strings.TrimSpace(*cmd.Description)
		update.Description = &description
	}
	if update.Name == nil && update.Description == nil {
		return domain.Category{}, fmt.Errorf("%w: no fields to update", ErrCatalogInvalidInput)
	}

	category, err := s.categories.Update(ctx, trimmed, update)
	if err != nil {
		return domain.Category{}, s.mapCatalogError("update category", err)
	}
	return category, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	if err := s.categories.Delete(ctx, trimmed); err != nil {
		return s.mapCatalogError("delete category", err)
	}
	return nil
}

func (s *catalogService) mapCatalogError(op string, err error) error {
	var catalogErr *repositories.CatalogError
	if errors.As(err, &catalogErr) {
		switch catalogErr.Code {
		case repositories.CatalogErrorItemNotFound:
			return ErrCatalogItemNotFound
		case repositories.CatalogErrorCategoryNotFound:
			return ErrCatalogCategoryNotFound
		case repositories.CatalogErrorDuplicateSKU:
			return fmt.Errorf("%w: %s", ErrCatalogDuplicateSKU, catalogErr.Message)
		case repositories.CatalogErrorDuplicateCategory:
			return fmt.Errorf("%w: %s", ErrCatalogDuplicateCategory, catalogErr.Message)
		case repositories.CatalogErrorItemInUse, repositories.CatalogErrorCategoryInUse:
			return fmt.Errorf("%w: %s", ErrCatalogConflict, catalogErr.Message)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrCatalogStorage, op, err)
}
