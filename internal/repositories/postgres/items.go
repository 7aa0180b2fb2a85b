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

// ItemRepository persists spare-part items in PostgreSQL.
type ItemRepository struct {
	uow *platform.UnitOfWork
}

// NewItemRepository constructs an ItemRepository over the shared unit of work.
func NewItemRepository(uow *platform.UnitOfWork) (*ItemRepository, error) {
	if uow == nil {
		return nil, errors.New("item repository: unit of work is required")
	}
	return &ItemRepository{uow: uow}, nil
}

const itemColumns = "id, name, sku, price_cents, stock, category_id, created_at, updated_at"

// Create inserts the item. Duplicate SKUs and missing categories map to typed codes.
func (r *ItemRepository) Create(ctx context.Context, item domain.Item) (domain.Item, error) {
	const stmt = `
		INSERT INTO items (id, name, sku, price_cents, stock, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.uow.Querier(ctx).Exec(ctx, stmt,
		item.ID,
		item.Name,
		item.SKU,
		item.PriceCents,
		item.Stock,
		nullableString(item.CategoryID),
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		switch {
		case platform.IsUniqueViolation(err):
			return domain.Item{}, repositoryCatalogError("items.create", repositories.CatalogErrorDuplicateSKU, "sku already exists", err)
		case platform.IsForeignKeyViolation(err):
			return domain.Item{}, repositoryCatalogError("items.create", repositories.CatalogErrorCategoryNotFound, "category not found", err)
		}
		return domain.Item{}, repositoryCatalogError("items.create", repositories.CatalogErrorUnknown, "insert item", err)
	}
	return item, nil
}

// Get fetches an item by id.
func (r *ItemRepository) Get(ctx context.Context, id string) (domain.Item, error) {
	const stmt = `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	item, err := scanItem(r.uow.Querier(ctx).QueryRow(ctx, stmt, id))
	if err != nil {
		if platform.IsNoRows(err) {
			return domain.Item{}, repositoryCatalogError("items.get", repositories.CatalogErrorItemNotFound, "item not found", err)
		}
		return domain.Item{}, repositoryCatalogError("items.get", repositories.CatalogErrorUnknown, "query item", err)
	}
	return item, nil
}

// GetMany fetches the requested items keyed by id. Missing ids are simply
// absent from the result so callers can report them precisely.
func (r *ItemRepository) GetMany(ctx context.Context, ids []string) (map[string]domain.Item, error) {
	result := make(map[string]domain.Item, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	const stmt = `SELECT ` + itemColumns + ` FROM items WHERE id = ANY($1)`
	rows, err := r.uow.Querier(ctx).Query(ctx, stmt, ids)
	if err != nil {
		return nil, repositoryCatalogError("items.getMany", repositories.CatalogErrorUnknown, "query items", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, repositoryCatalogError("items.getMany", repositories.CatalogErrorUnknown, "scan item", err)
		}
		result[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, repositoryCatalogError("items.getMany", repositories.CatalogErrorUnknown, "iterate items", err)
	}
	return result, nil
}

// List returns items matching the query ordered by name.
func (r *ItemRepository) List(ctx context.Context, query repositories.ItemListQuery) ([]domain.Item, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 4)

	if sku := strings.TrimSpace(query.SKU); sku != "" {
		args = append(args, sku)
		conditions = append(conditions, fmt.Sprintf("sku = $%d", len(args)))
	}
	if categoryID := strings.TrimSpace(query.CategoryID); categoryID != "" {
		args = append(args, categoryID)
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)))
	}

	stmt := `SELECT ` + itemColumns + ` FROM items`
	if len(conditions) > 0 {
		stmt += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, query.Limit)
	stmt += fmt.Sprintf(" ORDER BY name LIMIT $%d", len(args))
	args = append(args, query.Offset)
	stmt += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.uow.Querier(ctx).Query(ctx, stmt, args...)
	if err != nil {
		return nil, repositoryCatalogError("items.list", repositories.CatalogErrorUnknown, "query items", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0, query.Limit)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, repositoryCatalogError("items.list", repositories.CatalogErrorUnknown, "scan item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, repositoryCatalogError("items.list", repositories.CatalogErrorUnknown, "iterate items", err)
	}
	return items, nil
}

// Update applies the partial update and returns the stored row.
func (r *ItemRepository) Update(ctx context.Context, id string, update repositories.ItemUpdate) (domain.Item, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)

	if update.Name != nil {
		args = append(args, strings.TrimSpace(*update.Name))
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if update.SKU != nil {
		args = append(args, strings.TrimSpace(*update.SKU))
		sets = append(sets, fmt.Sprintf("sku = $%d", len(args)))
	}
	if update.PriceCents != nil {
		args = append(args, *update.PriceCents)
		sets = append(sets, fmt.Sprintf("price_cents = $%d", len(args)))
	}
	if update.CategoryID != nil {
		args = append(args, nullableString(*update.CategoryID))
		sets = append(sets, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	stmt := fmt.Sprintf(
		`UPDATE items SET %s WHERE id = $%d RETURNING `+itemColumns,
		strings.Join(sets, ", "), len(args),
	)

	item, err := scanItem(r.uow.Querier(ctx).QueryRow(ctx, stmt, args...))
	if err != nil {
		switch {
		case platform.IsNoRows(err):
			return domain.Item{}, repositoryCatalogError("items.update", repositories.CatalogErrorItemNotFound, "item not found", err)
		case platform.IsUniqueViolation(err):
			return domain.Item{}, repositoryCatalogError("items.update", repositories.CatalogErrorDuplicateSKU, "sku already exists", err)
		case platform.IsForeignKeyViolation(err):
			return domain.Item{}, repositoryCatalogError("items.update", repositories.CatalogErrorCategoryNotFound, "category not found", err)
		}
		return domain.Item{}, repositoryCatalogError("items.update", repositories.CatalogErrorUnknown, "update item", err)
	}
	return item, nil
}

// Delete removes the item. The foreign key from order_items restricts
// deletion of referenced items.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.uow.Querier(ctx).Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		if platform.IsForeignKeyViolation(err) {
			return repositoryCatalogError("items.delete", repositories.CatalogErrorItemInUse, "item is referenced by orders", err)
		}
		return repositoryCatalogError("items.delete", repositories.CatalogErrorUnknown, "delete item", err)
	}
	if tag.RowsAffected() == 0 {
		return repositoryCatalogError("items.delete", repositories.CatalogErrorItemNotFound, "item not found", nil)
	}
	return nil
}

func scanItem(row rowScanner) (domain.Item, error) {
	var item domain.Item
	var categoryID *string
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.SKU,
		&item.PriceCents,
		&item.Stock,
		&categoryID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return domain.Item{}, err
	}
	if categoryID != nil {
		item.CategoryID = *categoryID
	}
	return item, nil
}
