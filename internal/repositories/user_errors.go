package repositories

import "fmt"

// UserErrorCode enumerates repository error causes for account operations.
type UserErrorCode string

const (
	// UserErrorUnknown represents an unspecified failure.
	UserErrorUnknown UserErrorCode = "user_unknown"
	// UserErrorNotFound indicates the account does not exist.
	UserErrorNotFound UserErrorCode = "user_not_found"
	// UserErrorDuplicateEmail indicates another account already carries the email.
	UserErrorDuplicateEmail UserErrorCode = "user_duplicate_email"
)

// UserError wraps account failures with machine readable codes.
type UserError struct {
	Op      string
	Code    UserErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *UserError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewUserError constructs a typed user error.
func NewUserError(code UserErrorCode, message string, err error) *UserError {
	if message == "" {
		message = string(code)
	}
	return &UserError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
