package repositories

import "fmt"

// CatalogErrorCode enumerates repository error causes for catalog operations.
type CatalogErrorCode string

const (
	// CatalogErrorUnknown represents an unspecified failure.
	CatalogErrorUnknown CatalogErrorCode = "catalog_unknown"
	// CatalogErrorItemNotFound indicates the item does not exist.
	CatalogErrorItemNotFound CatalogErrorCode = "catalog_item_not_found"
	// CatalogErrorCategoryNotFound indicates the category does not exist.
	CatalogErrorCategoryNotFound CatalogErrorCode = "catalog_category_not_found"
	// CatalogErrorDuplicateSKU indicates another item already carries the SKU.
	CatalogErrorDuplicateSKU CatalogErrorCode = "catalog_duplicate_sku"
	// CatalogErrorDuplicateCategory indicates another category already carries the name.
	CatalogErrorDuplicateCategory CatalogErrorCode = "catalog_duplicate_category"
	// CatalogErrorItemInUse indicates order lines still reference the item.
	CatalogErrorItemInUse CatalogErrorCode = "catalog_item_in_use"
	// CatalogErrorCategoryInUse indicates items still reference the category.
	CatalogErrorCategoryInUse CatalogErrorCode = "catalog_category_in_use"
)

// CatalogError wraps catalog-specific failures with machine readable codes.
type CatalogError struct {
	Op      string
	Code    CatalogErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *CatalogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewCatalogError constructs a typed catalog error.
func NewCatalogError(code CatalogErrorCode, message string, err error) *CatalogError {
	if message == "" {
		message = string(code)
	}
	return &CatalogError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
