package services

import (
	"context"
	"time"

	domain "github.com/partsdesk/api/internal/domain"
)

// Pagination bounds list reads with a limit/offset window.
type Pagination struct {
	Limit  int
	Offset int
}

// ReportInput carries the technical report fields of an order creation.
type ReportInput struct {
	Title           string
	Description     string
	Diagnosis       string
	Recommendations string
}

// OrderLineInput is a requested order line before validation.
type OrderLineInput struct {
	ItemID   string
	Quantity int
}

// CreateOrderCommand carries the full order creation request. RequestID is
// the client-supplied idempotency key.
type CreateOrderCommand struct {
	RequestID   string
	Report      ReportInput
	Lines       []OrderLineInput
	ImageBase64 string
	ActorID     string
}

// OrderResult wraps the order together with the idempotency outcome.
// AlreadyExisted is true when the request id matched a prior order and no
// mutation happened.
type OrderResult struct {
	Order          domain.Order
	AlreadyExisted bool
}

// OrderListFilter filters and bounds order listing.
type OrderListFilter struct {
	Status     string
	Pagination Pagination
}

// OrderService is the order workflow engine.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (OrderResult, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	GetOrderByRequestID(ctx context.Context, requestID string) (domain.Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
	TransitionStatus(ctx context.Context, orderID string, target domain.OrderStatus) (domain.Order, error)
}

// OrderEvent is the lifecycle message emitted after successful workflow steps.
type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"orderId"`
	RequestID  string    `json:"requestId,omitempty"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurredAt"`
}

// OrderEventPublisher delivers order events to downstream consumers.
// Publishing is best effort; the workflow never fails on publish errors.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}

// ImageUploader stores an optional base64 image and returns its public URL.
type ImageUploader interface {
	UploadBase64(ctx context.Context, payload string, requestID string) (string, error)
}

// CreateItemCommand carries new item fields.
type CreateItemCommand struct {
	Name       string
	SKU        string
	PriceCents int64
	Stock      int
	CategoryID string
}

// UpdateItemCommand carries partial item changes; nil fields are untouched.
type UpdateItemCommand struct {
	Name       *string
	SKU        *string
	PriceCents *int64
	CategoryID *string
}

// ItemListFilter filters and bounds item listing. SKU is an exact match.
type ItemListFilter struct {
	SKU        string
	CategoryID string
	Pagination Pagination
}

// CreateCategoryCommand carries new category fields.
type CreateCategoryCommand struct {
	Name        string
	Description string
}

// UpdateCategoryCommand carries partial category changes; nil fields are untouched.
type UpdateCategoryCommand struct {
	Name        *string
	Description *string
}

// CategoryListFilter bounds category listing.
type CategoryListFilter struct {
	Pagination Pagination
}

// CatalogService manages items and categories.
type CatalogService interface {
	CreateItem(ctx context.Context, cmd CreateItemCommand) (domain.Item, error)
	GetItem(ctx context.Context, id string) (domain.Item, error)
	ListItems(ctx context.Context, filter ItemListFilter) ([]domain.Item, error)
	UpdateItem(ctx context.Context, id string, cmd UpdateItemCommand) (domain.Item, error)
	DeleteItem(ctx context.Context, id string) error

	CreateCategory(ctx context.Context, cmd CreateCategoryCommand) (domain.Category, error)
	GetCategory(ctx context.Context, id string) (domain.Category, error)
	ListCategories(ctx context.Context, filter CategoryListFilter) ([]domain.Category, error)
	UpdateCategory(ctx context.Context, id string, cmd UpdateCategoryCommand) (domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// RegisterCommand carries a registration request.
type RegisterCommand struct {
	Email    string
	Password string
}

// LoginCommand carries a login request.
type LoginCommand struct {
	Email    string
	Password string
}

// AuthToken is the issued bearer credential.
type AuthToken struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
}

// IdentityService manages accounts and credentials.
type IdentityService interface {
	Register(ctx context.Context, cmd RegisterCommand) (domain.User, AuthToken, error)
	Login(ctx context.Context, cmd LoginCommand) (AuthToken, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
}
