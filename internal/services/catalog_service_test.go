package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/repositories"
)

type stubCategoryRepository struct {
	categories map[string]domain.Category
	createFn   func(ctx context.Context, category domain.Category) (domain.Category, error)
	listFn     func(ctx context.Context, query repositories.CategoryListQuery) ([]domain.Category, error)
	updateFn   func(ctx context.Context, id string, update repositories.CategoryUpdate) (domain.Category, error)
	deleteFn   func(ctx context.Context, id string) error
}

func (s *stubCategoryRepository) Create(ctx context.Context, category domain.Category) (domain.Category, error) {
	if s.createFn != nil {
		return s.createFn(ctx, category)
	}
	return category, nil
}

func (s *stubCategoryRepository) Get(ctx context.Context, id string) (domain.Category, error) {
	category, ok := s.categories[id]
	if !ok {
		return domain.Category{}, repositories.NewCatalogError(repositories.CatalogErrorCategoryNotFound, "", nil)
	}
	return category, nil
}

func (s *stubCategoryRepository) List(ctx context.Context, query repositories.CategoryListQuery) ([]domain.Category, error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return nil, nil
}

func (s *stubCategoryRepository) Update(ctx context.Context, id string, update repositories.CategoryUpdate) (domain.Category, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, id, update)
	}
	return domain.Category{}, repositories.NewCatalogError(repositories.CatalogErrorCategoryNotFound, "", nil)
}

func (s *stubCategoryRepository) Delete(ctx context.Context, id string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

func testCatalogServiceDeps() (CatalogServiceDeps, *stubItemRepository, *stubCategoryRepository) {
	items := &stubItemRepository{items: map[string]domain.Item{}}
	categories := &stubCategoryRepository{categories: map[string]domain.Category{
		"cat_filters": {ID: "cat_filters", Name: "Filters"},
	}}
	deps := CatalogServiceDeps{
		Items:      items,
		Categories: categories,
		Clock: func() time.Time {
			return time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
		},
		IDGenerator: func() string {
			return "01JTESTID"
		},
	}
	return deps, items, categories
}

func TestCreateItem(t *testing.T) {
	deps, _, _ := testCatalogServiceDeps()
	svc, err := NewCatalogService(deps)
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}

	item, err := svc.CreateItem(context.Background(), CreateItemCommand{
		Name:       "  Oil filter ",
		SKU:        "filt-2",
		PriceCents: 2200,
		Stock:      5,
		CategoryID: "cat_filters",
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.ID != "itm_01JTESTID" {
		t.Fatalf("id = %s, want itm_01JTESTID", item.ID)
	}
	if item.Name != "Oil filter" {
		t.Fatalf("name = %q, want trimmed name", item.Name)
	}
	if item.SKU != "FILT-2" {
		t.Fatalf("sku = %q, want upper-cased sku", item.SKU)
	}
	if item.Stock != 5 {
		t.Fatalf("stock = %d, want 5", item.Stock)
	}
}

func TestCreateItemValidation(t *testing.T) {
	tests := []struct {
		name    string
		cmd     CreateItemCommand
		wantErr error
	}{
		{
			name:    "missing name",
			cmd:     CreateItemCommand{SKU: "X-1", PriceCents: 100},
			wantErr: ErrCatalogInvalidInput,
		},
		{
			name:    "missing sku",
			cmd:     CreateItemCommand{Name: "Bolt", PriceCents: 100},
			wantErr: ErrCatalogInvalidInput,
		},
		{
			name:    "zero price",
			cmd:     CreateItemCommand{Name: "Bolt", SKU: "X-1", PriceCents: 0},
			wantErr: ErrCatalogInvalidInput,
		},
		{
			name:    "negative stock",
			cmd:     CreateItemCommand{Name: "Bolt", SKU: "X-1", PriceCents: 100, Stock: -1},
			wantErr: ErrCatalogInvalidInput,
		},
		{
			name:    "unknown category",
			cmd:     CreateItemCommand{Name: "Bolt", SKU: "X-1", PriceCents: 100, CategoryID: "cat_ghost"},
			wantErr: ErrCatalogCategoryNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps, _, _ := testCatalogServiceDeps()
			svc, _ := NewCatalogService(deps)
			if _, err := svc.CreateItem(context.Background(), tc.cmd); !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCreateItemDuplicateSKU(t *testing.T) {
	deps, items, _ := testCatalogServiceDeps()
	items.createFn = func(ctx context.Context, item domain.Item) (domain.Item, error) {
		return domain.Item{}, repositories.NewCatalogError(repositories.CatalogErrorDuplicateSKU, "sku FILT-2 already exists", nil)
	}

	svc, _ := NewCatalogService(deps)
	_, err := svc.CreateItem(context.Background(), CreateItemCommand{Name: "Filter", SKU: "FILT-2", PriceCents: 2200})
	if !errors.Is(err, ErrCatalogDuplicateSKU) {
		t.Fatalf("error = %v, want duplicate sku", err)
	}
}

func TestUpdateItemPartialFields(t *testing.T) {
	deps, items, _ := testCatalogServiceDeps()
	var captured repositories.ItemUpdate
	items.updateFn = func(ctx context.Context, id string, update repositories.ItemUpdate) (domain.Item, error) {
		captured = update
		return domain.Item{ID: id}, nil
	}

	svc, _ := NewCatalogService(deps)
	price := int64(990)
	_, err := svc.UpdateItem(context.Background(), "itm_1", UpdateItemCommand{PriceCents: &price})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if captured.PriceCents == nil || *captured.PriceCents != 990 {
		t.Fatalf("unexpected update %+v", captured)
	}
	if captured.Name != nil || captured.SKU != nil || captured.CategoryID != nil {
		t.Fatal("untouched fields must stay nil")
	}
}

func TestUpdateItemRejectsEmptyUpdate(t *testing.T) {
	deps, _, _ := testCatalogServiceDeps()
	svc, _ := NewCatalogService(deps)
	if _, err := svc.UpdateItem(context.Background(), "itm_1", UpdateItemCommand{}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("error = %v, want invalid input", err)
	}
}

func TestUpdateItemClearsCategory(t *testing.T) {
	deps, items, _ := testCatalogServiceDeps()
	var captured repositories.ItemUpdate
	items.updateFn = func(ctx context.Context, id string, update repositories.ItemUpdate) (domain.Item, error) {
		captured = update
		return domain.Item{ID: id}, nil
	}

	svc, _ := NewCatalogService(deps)
	empty := ""
	if _, err := svc.UpdateItem(context.Background(), "itm_1", UpdateItemCommand{CategoryID: &empty}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if captured.CategoryID == nil || *captured.CategoryID != "" {
		t.Fatal("clearing the category must pass an empty id through")
	}
}

func TestDeleteItemInUse(t *testing.T) {
	deps, items, _ := testCatalogServiceDeps()
	items.deleteFn = func(ctx context.Context, id string) error {
		return repositories.NewCatalogError(repositories.CatalogErrorItemInUse, "order lines reference the item", nil)
	}

	svc, _ := NewCatalogService(deps)
	if err := svc.DeleteItem(context.Background(), "itm_1"); !errors.Is(err, ErrCatalogConflict) {
		t.Fatalf("error = %v, want conflict", err)
	}
}

func TestCreateCategory(t *testing.T) {
	deps, _, _ := testCatalogServiceDeps()
	svc, _ := NewCatalogService(deps)

	category, err := svc.CreateCategory(context.Background(), CreateCategoryCommand{
		Name:        " Bearings ",
		Description: "Ball and roller bearings",
	})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if !strings.HasPrefix(category.ID, "cat_") {
		t.Fatalf("id %q missing cat_ prefix", category.ID)
	}
	if category.Name != "Bearings" {
		t.Fatalf("name = %q, want trimmed name", category.Name)
	}
}

func TestCreateCategoryDuplicateName(t *testing.T) {
	deps, _, categories := testCatalogServiceDeps()
	categories.createFn = func(ctx context.Context, category domain.Category) (domain.Category, error) {
		return domain.Category{}, repositories.NewCatalogError(repositories.CatalogErrorDuplicateCategory, "category Filters already exists", nil)
	}

	svc, _ := NewCatalogService(deps)
	_, err := svc.CreateCategory(context.Background(), CreateCategoryCommand{Name: "Filters"})
	if !errors.Is(err, ErrCatalogDuplicateCategory) {
		t.Fatalf("error = %v, want duplicate category", err)
	}
}

func TestDeleteCategoryInUse(t *testing.T) {
	deps, _, categories := testCatalogServiceDeps()
	categories.deleteFn = func(ctx context.Context, id string) error {
		return repositories.NewCatalogError(repositories.CatalogErrorCategoryInUse, "category has 3 associated items", nil)
	}

	svc, _ := NewCatalogService(deps)
	err := svc.DeleteCategory(context.Background(), "cat_filters")
	if !errors.Is(err, ErrCatalogConflict) {
		t.Fatalf("error = %v, want conflict", err)
	}
}

func TestGetItemNotFound(t *testing.T) {
	deps, _, _ := testCatalogServiceDeps()
	svc, _ := NewCatalogService(deps)
	if _, err := svc.GetItem(context.Background(), "itm_ghost"); !errors.Is(err, ErrCatalogItemNotFound) {
		t.Fatalf("error = %v, want item not found", err)
	}
}

func TestListItemsNormalisesFilter(t *testing.T) {
	deps, items, _ := testCatalogServiceDeps()
	var captured repositories.ItemListQuery
	items.listFn = func(ctx context.Context, query repositories.ItemListQuery) ([]domain.Item, error) {
		captured = query
		return nil, nil
	}

	svc, _ := NewCatalogService(deps)
	_, err := svc.ListItems(context.Background(), ItemListFilter{
		SKU:        " filt-2 ",
		Pagination: Pagination{Limit: 20},
	})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if captured.SKU != "FILT-2" {
		t.Fatalf("sku filter = %q, want FILT-2", captured.SKU)
	}
}
