package repositories

import "fmt"

// OrderErrorCode enumerates repository error causes for order operations.
type OrderErrorCode string

const (
	// OrderErrorUnknown represents an unspecified failure.
	OrderErrorUnknown OrderErrorCode = "order_unknown"
	// OrderErrorNotFound indicates the order does not exist.
	OrderErrorNotFound OrderErrorCode = "order_not_found"
	// OrderErrorDuplicateRequestID indicates another order already carries the
	// request id. This is the expected loser signal of an idempotency race.
	OrderErrorDuplicateRequestID OrderErrorCode = "order_duplicate_request_id"
	// OrderErrorReportNotFound indicates the referenced technical report is missing.
	OrderErrorReportNotFound OrderErrorCode = "order_report_not_found"
	// OrderErrorStatusConflict indicates the stored status no longer matches
	// the expected value of a compare-and-set transition.
	OrderErrorStatusConflict OrderErrorCode = "order_status_conflict"
)

// OrderError wraps order-specific failures with machine readable codes.
type OrderError struct {
	Op      string
	Code    OrderErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *OrderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *OrderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOrderError constructs a typed order error.
func NewOrderError(code OrderErrorCode, message string, err error) *OrderError {
	if message == "" {
		message = string(code)
	}
	return &OrderError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
