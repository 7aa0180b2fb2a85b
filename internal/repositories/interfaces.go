package repositories

import (
	"context"

	domain "github.com/partsdesk/api/internal/domain"
)

// UnitOfWork executes the supplied function within a storage transaction.
// Repository calls made inside fn observe and join that transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

// CategoryListQuery bounds category listing.
type CategoryListQuery struct {
	Limit  int
	Offset int
}

// CategoryUpdate carries partial category changes; nil fields are untouched.
type CategoryUpdate struct {
	Name        *string
	Description *string
}

// CategoryRepository persists item categories.
type CategoryRepository interface {
	Create(ctx context.Context, category domain.Category) (domain.Category, error)
	Get(ctx context.Context, id string) (domain.Category, error)
	List(ctx context.Context, query CategoryListQuery) ([]domain.Category, error)
	Update(ctx context.Context, id string, update CategoryUpdate) (domain.Category, error)
	Delete(ctx context.Context, id string) error
}

// ItemListQuery filters and bounds item listing. SKU is an exact match.
type ItemListQuery struct {
	SKU        string
	CategoryID string
	Limit      int
	Offset     int
}

// ItemUpdate carries partial item changes; nil fields are untouched. Stock is
// deliberately absent: only the stock ledger mutates it.
type ItemUpdate struct {
	Name       *string
	SKU        *string
	PriceCents *int64
	CategoryID *string
}

// ItemRepository persists spare-part items.
type ItemRepository interface {
	Create(ctx context.Context, item domain.Item) (domain.Item, error)
	Get(ctx context.Context, id string) (domain.Item, error)
	GetMany(ctx context.Context, ids []string) (map[string]domain.Item, error)
	List(ctx context.Context, query ItemListQuery) ([]domain.Item, error)
	Update(ctx context.Context, id string, update ItemUpdate) (domain.Item, error)
	Delete(ctx context.Context, id string) error
}

// TechnicalReportRepository persists technical reports.
type TechnicalReportRepository interface {
	Create(ctx context.Context, report domain.TechnicalReport) (domain.TechnicalReport, error)
	Get(ctx context.Context, id string) (domain.TechnicalReport, error)
}

// OrderListQuery filters and bounds order listing.
type OrderListQuery struct {
	Status string
	Limit  int
	Offset int
}

// OrderRepository persists orders with their line items.
type OrderRepository interface {
	// Create inserts the order and its lines. A duplicate request id
	// surfaces as an OrderError with OrderErrorDuplicateRequestID.
	Create(ctx context.Context, order domain.Order) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	GetByRequestID(ctx context.Context, requestID string) (domain.Order, error)
	List(ctx context.Context, query OrderListQuery) ([]domain.Order, error)
	// UpdateStatus persists the transition only when the stored status still
	// equals from, so concurrent transitions cannot both pass the state check.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (domain.Order, error)
}

// StockLedger applies stock movements. Both operations run against the
// caller's transaction when one is active and never commit on their own.
type StockLedger interface {
	// Reserve decrements stock only when enough is available, in a single
	// conditional statement.
	Reserve(ctx context.Context, itemID string, quantity int) error
	// Release increments stock unconditionally.
	Release(ctx context.Context, itemID string, quantity int) error
}
