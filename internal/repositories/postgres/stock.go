package postgres

import (
	"context"
	"errors"
	"fmt"

	platform "github.com/partsdesk/api/internal/platform/postgres"
	"github.com/partsdesk/api/internal/repositories"
)

// StockLedger applies stock movements through single conditional statements
// so the database arbitrates concurrent reservations. Both operations join
// the caller's transaction when one is active and never commit on their own.
type StockLedger struct {
	uow *platform.UnitOfWork
}

// NewStockLedger constructs a StockLedger over the shared unit of work.
func NewStockLedger(uow *platform.UnitOfWork) (*StockLedger, error) {
	if uow == nil {
		return nil, errors.New("stock ledger: unit of work is required")
	}
	return &StockLedger{uow: uow}, nil
}

// Reserve decrements stock only when enough is available. The read, check,
// and write happen in one statement; zero affected rows means either the item
// is missing or the stock is short, distinguished by a follow-up read.
func (l *StockLedger) Reserve(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return &repositories.StockError{
			Op:      "stock.reserve",
			Code:    repositories.StockErrorUnknown,
			ItemID:  itemID,
			Message: "quantity must be positive",
		}
	}

	q := l.uow.Querier(ctx)

	const stmt = `UPDATE items SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2`
	tag, err := q.Exec(ctx, stmt, itemID, quantity)
	if err != nil {
		return &repositories.StockError{
			Op:      "stock.reserve",
			Code:    repositories.StockErrorUnknown,
			ItemID:  itemID,
			Message: "reserve stock",
			Err:     err,
		}
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var available int
	err = q.QueryRow(ctx, `SELECT stock FROM items WHERE id = $1`, itemID).Scan(&available)
	if err != nil {
		if platform.IsNoRows(err) {
			return &repositories.StockError{
				Op:      "stock.reserve",
				Code:    repositories.StockErrorItemNotFound,
				ItemID:  itemID,
				Message: "item not found",
				Err:     err,
			}
		}
		return &repositories.StockError{
			Op:      "stock.reserve",
			Code:    repositories.StockErrorUnknown,
			ItemID:  itemID,
			Message: "read stock",
			Err:     err,
		}
	}

	return &repositories.StockError{
		Op:        "stock.reserve",
		Code:      repositories.StockErrorInsufficient,
		ItemID:    itemID,
		Available: available,
		Requested: quantity,
		Message:   fmt.Sprintf("insufficient stock: available %d, requested %d", available, quantity),
	}
}

// Release increments stock unconditionally, restoring a prior reservation.
func (l *StockLedger) Release(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return &repositories.StockError{
			Op:      "stock.release",
			Code:    repositories.StockErrorUnknown,
			ItemID:  itemID,
			Message: "quantity must be positive",
		}
	}

	const stmt = `UPDATE items SET stock = stock + $2, updated_at = now() WHERE id = $1`
	tag, err := l.uow.Querier(ctx).Exec(ctx, stmt, itemID, quantity)
	if err != nil {
		return &repositories.StockError{
			Op:      "stock.release",
			Code:    repositories.StockErrorUnknown,
			ItemID:  itemID,
			Message: "release stock",
			Err:     err,
		}
	}
	if tag.RowsAffected() == 0 {
		return &repositories.StockError{
			Op:      "stock.release",
			Code:    repositories.StockErrorItemNotFound,
			ItemID:  itemID,
			Message: "item not found",
		}
	}
	return nil
}
