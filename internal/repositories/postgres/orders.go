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

// OrderRepository persists orders and their lines in PostgreSQL.
type OrderRepository struct {
	uow *platform.UnitOfWork
}

// NewOrderRepository constructs an OrderRepository over the shared unit of work.
func NewOrderRepository(uow *platform.UnitOfWork) (*OrderRepository, error) {
	if uow == nil {
		return nil, errors.New("order repository: unit of work is required")
	}
	return &OrderRepository{uow: uow}, nil
}

const orderColumns = "id, request_id, technical_report_id, status, image_url, created_at, updated_at"

// Create inserts the order header and all line rows. The unique constraint
// on request_id arbitrates concurrent creates with the same request id; the
// loser receives OrderErrorDuplicateRequestID.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	q := r.uow.Querier(ctx)

	const orderStmt = `
		INSERT INTO orders (id, request_id, technical_report_id, status, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := q.Exec(ctx, orderStmt,
		order.ID,
		order.RequestID,
		order.TechnicalReportID,
		string(order.Status),
		nullableString(order.ImageURL),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		switch {
		case platform.IsUniqueViolation(err) && platform.ConstraintName(err) == "orders_request_id_key":
			return domain.Order{}, repositoryOrderError("orders.create", repositories.OrderErrorDuplicateRequestID, "request id already used", err)
		case platform.IsForeignKeyViolation(err):
			return domain.Order{}, repositoryOrderError("orders.create", repositories.OrderErrorReportNotFound, "technical report not found", err)
		}
		return domain.Order{}, repositoryOrderError("orders.create", repositories.OrderErrorUnknown, "insert order", err)
	}

	const lineStmt = `
		INSERT INTO order_items (id, order_id, item_id, quantity, unit_price_cents)
		VALUES ($1, $2, $3, $4, $5)`

	for _, line := range order.Items {
		if _, err := q.Exec(ctx, lineStmt, line.ID, order.ID, line.ItemID, line.Quantity, line.UnitPriceCents); err != nil {
			return domain.Order{}, repositoryOrderError("orders.create", repositories.OrderErrorUnknown, "insert order line", err)
		}
	}

	return order, nil
}

// Get fetches an order by id with its report and lines populated.
func (r *OrderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	const stmt = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.fetch(ctx, "orders.get", stmt, id)
}

// GetByRequestID fetches an order by its idempotency key (case-sensitive).
func (r *OrderRepository) GetByRequestID(ctx context.Context, requestID string) (domain.Order, error) {
	const stmt = `SELECT ` + orderColumns + ` FROM orders WHERE request_id = $1`
	return r.fetch(ctx, "orders.getByRequestId", stmt, requestID)
}

// List returns orders matching the query, newest first, populated.
func (r *OrderRepository) List(ctx context.Context, query repositories.OrderListQuery) ([]domain.Order, error) {
	args := make([]any, 0, 3)
	stmt := `SELECT ` + orderColumns + ` FROM orders`
	if status := strings.TrimSpace(query.Status); status != "" {
		args = append(args, status)
		stmt += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	args = append(args, query.Limit)
	stmt += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, query.Offset)
	stmt += fmt.Sprintf(" OFFSET $%d", len(args))

	q := r.uow.Querier(ctx)
	rows, err := q.Query(ctx, stmt, args...)
	if err != nil {
		return nil, repositoryOrderError("orders.list", repositories.OrderErrorUnknown, "query orders", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, query.Limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, repositoryOrderError("orders.list", repositories.OrderErrorUnknown, "scan order", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, repositoryOrderError("orders.list", repositories.OrderErrorUnknown, "iterate orders", err)
	}

	for i := range orders {
		if err := r.populate(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// UpdateStatus persists the transition with a compare-and-set on the current
// status and returns the populated order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (domain.Order, error) {
	const stmt = `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + orderColumns

	q := r.uow.Querier(ctx)
	order, err := scanOrder(q.QueryRow(ctx, stmt, id, string(from), string(to)))
	if err != nil {
		if platform.IsNoRows(err) {
			var current string
			checkErr := q.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
			if checkErr != nil {
				if platform.IsNoRows(checkErr) {
					return domain.Order{}, repositoryOrderError("orders.updateStatus", repositories.OrderErrorNotFound, "order not found", checkErr)
				}
				return domain.Order{}, repositoryOrderError("orders.updateStatus", repositories.OrderErrorUnknown, "read order status", checkErr)
			}
			return domain.Order{}, repositoryOrderError("orders.updateStatus", repositories.OrderErrorStatusConflict,
				fmt.Sprintf("order status is %s, expected %s", current, from), err)
		}
		return domain.Order{}, repositoryOrderError("orders.updateStatus", repositories.OrderErrorUnknown, "update order status", err)
	}
	if err := r.populate(ctx, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *OrderRepository) fetch(ctx context.Context, op string, stmt string, arg string) (domain.Order, error) {
	order, err := scanOrder(r.uow.Querier(ctx).QueryRow(ctx, stmt, arg))
	if err != nil {
		if platform.IsNoRows(err) {
			return domain.Order{}, repositoryOrderError(op, repositories.OrderErrorNotFound, "order not found", err)
		}
		return domain.Order{}, repositoryOrderError(op, repositories.OrderErrorUnknown, "query order", err)
	}
	if err := r.populate(ctx, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *OrderRepository) populate(ctx context.Context, order *domain.Order) error {
	q := r.uow.Querier(ctx)

	const lineStmt = `
		SELECT id, order_id, item_id, quantity, unit_price_cents
		FROM order_items WHERE order_id = $1 ORDER BY id`

	rows, err := q.Query(ctx, lineStmt, order.ID)
	if err != nil {
		return repositoryOrderError("orders.populate", repositories.OrderErrorUnknown, "query order lines", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderItem, 0, 4)
	for rows.Next() {
		var line domain.OrderItem
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ItemID, &line.Quantity, &line.UnitPriceCents); err != nil {
			return repositoryOrderError("orders.populate", repositories.OrderErrorUnknown, "scan order line", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return repositoryOrderError("orders.populate", repositories.OrderErrorUnknown, "iterate order lines", err)
	}
	order.Items = lines

	const reportStmt = `SELECT ` + reportColumns + ` FROM technical_reports WHERE id = $1`
	report, err := scanReport(q.QueryRow(ctx, reportStmt, order.TechnicalReportID))
	if err != nil {
		if platform.IsNoRows(err) {
			return repositoryOrderError("orders.populate", repositories.OrderErrorReportNotFound, "technical report not found", err)
		}
		return repositoryOrderError("orders.populate", repositories.OrderErrorUnknown, "query technical report", err)
	}
	order.Report = &report

	return nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var order domain.Order
	var status string
	var imageURL *string
	err := row.Scan(
		&order.ID,
		&order.RequestID,
		&order.TechnicalReportID,
		&status,
		&imageURL,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	if imageURL != nil {
		order.ImageURL = *imageURL
	}
	return order, nil
}

func repositoryOrderError(op string, code repositories.OrderErrorCode, message string, err error) *repositories.OrderError {
	return &repositories.OrderError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
