package repositories

import "fmt"

// StockErrorCode enumerates ledger error causes.
type StockErrorCode string

const (
	// StockErrorUnknown represents an unspecified failure.
	StockErrorUnknown StockErrorCode = "stock_unknown"
	// StockErrorItemNotFound indicates the item row is missing.
	StockErrorItemNotFound StockErrorCode = "stock_item_not_found"
	// StockErrorInsufficient indicates the reservation exceeds available stock.
	StockErrorInsufficient StockErrorCode = "stock_insufficient"
)

// StockError wraps ledger failures with machine readable codes. Available and
// Requested carry the quantities observed when a reservation is refused.
type StockError struct {
	Op        string
	Code      StockErrorCode
	ItemID    string
	Available int
	Requested int
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *StockError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *StockError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
