package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/partsdesk/api/internal/domain"
	platform "github.com/partsdesk/api/internal/platform/postgres"
	"github.com/partsdesk/api/internal/repositories"
)

// CategoryRepository persists item categories in PostgreSQL.
type CategoryRepository struct {
	uow *platform.UnitOfWork
}

// NewCategoryRepository constructs a CategoryRepository over the shared unit of work.
func NewCategoryRepository(uow *platform.UnitOfWork) (*CategoryRepository, error) {
	if uow == nil {
		return nil, errors.New("category repository: unit of work is required")
	}
	return &CategoryRepository{uow: uow}, nil
}

const categoryColumns = "id, name, description, created_at"

// Create inserts the category. A duplicate name maps to CatalogErrorDuplicateCategory.
func (r *CategoryRepository) Create(ctx context.Context, category domain.Category) (domain.Category, error) {
	const stmt = `
		INSERT INTO categories (id, name, description, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.uow.Querier(ctx).Exec(ctx, stmt,
		category.ID,
		category.Name,
		nullableString(category.Description),
		category.CreatedAt,
	)
	if err != nil {
		if platform.IsUniqueViolation(err) {
			return domain.Category{}, repositoryCatalogError("categories.create", repositories.CatalogErrorDuplicateCategory, "category name already exists", err)
		}
		return domain.Category{}, repositoryCatalogError("categories.create", repositories.CatalogErrorUnknown, "insert category", err)
	}
	return category, nil
}

// Get fetches a category by id.
func (r *CategoryRepository) Get(ctx context.Context, id string) (domain.Category, error) {
	const stmt = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	category, err := scanCategory(r.uow.Querier(ctx).QueryRow(ctx, stmt, id))
	if err != nil {
		if platform.IsNoRows(err) {
			return domain.Category{}, repositoryCatalogError("categories.get", repositories.CatalogErrorCategoryNotFound, "category not found", err)
		}
		return domain.Category{}, repositoryCatalogError("categories.get", repositories.CatalogErrorUnknown, "query category", err)
	}
	return category, nil
}

// List returns categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context, query repositories.CategoryListQuery) ([]domain.Category, error) {
	const stmt = `SELECT ` + categoryColumns + ` FROM categories ORDER BY name LIMIT $1 OFFSET $2`

	rows, err := r.uow.Querier(ctx).Query(ctx, stmt, query.Limit, query.Offset)
	if err != nil {
		return nil, repositoryCatalogError("categories.list", repositories.CatalogErrorUnknown, "query categories", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, query.Limit)
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, repositoryCatalogError("categories.list", repositories.CatalogErrorUnknown, "scan category", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, repositoryCatalogError("categories.list", repositories.CatalogErrorUnknown, "iterate categories", err)
	}
	return categories, nil
}

// Update applies the partial update and returns the stored row.
func (r *CategoryRepository) Update(ctx context.Context, id string, update repositories.CategoryUpdate) (domain.Category, error) {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)

	if update.Name != nil {
		args = append(args, strings.TrimSpace(*update.Name))
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if update.Description != nil {
		args = append(args, nullableString(*update.Description))
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}

	args = append(args, id)
	stmt := fmt.Sprintf(
		`UPDATE categories SET %s WHERE id = $%d RETURNING `+categoryColumns,
		strings.Join(sets, ", "), len(args),
	)

	category, err := scanCategory(r.uow.Querier(ctx).QueryRow(ctx, stmt, args...))
	if err != nil {
		if platform.IsNoRows(err) {
			return domain.Category{}, repositoryCatalogError("categories.update", repositories.CatalogErrorCategoryNotFound, "category not found", err)
		}
		if platform.IsUniqueViolation(err) {
			return domain.Category{}, repositoryCatalogError("categories.update", repositories.CatalogErrorDuplicateCategory, "category name already exists", err)
		}
		return domain.Category{}, repositoryCatalogError("categories.update", repositories.CatalogErrorUnknown, "update category", err)
	}
	return category, nil
}

// Delete removes the category. Deletion is refused while items reference it.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	q := r.uow.Querier(ctx)

	var count int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE category_id = $1`, id).Scan(&count); err != nil {
		return repositoryCatalogError("categories.delete", repositories.CatalogErrorUnknown, "count category items", err)
	}
	if count > 0 {
		return repositoryCatalogError("categories.delete", repositories.CatalogErrorCategoryInUse,
			fmt.Sprintf("category has %d associated items", count), nil)
	}

	tag, err := q.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return repositoryCatalogError("categories.delete", repositories.CatalogErrorUnknown, "delete category", err)
	}
	if tag.RowsAffected() == 0 {
		return repositoryCatalogError("categories.delete", repositories.CatalogErrorCategoryNotFound, "category not found", nil)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (domain.Category, error) {
	var category domain.Category
	var description *string
	err := row.Scan(&category.ID, &category.Name, &description, &category.CreatedAt)
	if err != nil {
		return domain.Category{}, err
	}
	if description != nil {
		category.Description = *description
	}
	return category, nil
}

func nullableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func repositoryCatalogError(op string, code repositories.CatalogErrorCode, message string, err error) *repositories.CatalogError {
	return &repositories.CatalogError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
