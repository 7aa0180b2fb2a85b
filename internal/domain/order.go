package domain

import "time"

// OrderStatus enumerates the lifecycle states of a maintenance order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// ParseOrderStatus validates a raw status value.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	switch OrderStatus(raw) {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusCompleted, OrderStatusCancelled:
		return OrderStatus(raw), true
	}
	return "", false
}

// Terminal reports whether no further transitions are allowed from the status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Order represents a maintenance order tying reserved spare parts to a
// technical report. RequestID is the client-supplied idempotency key.
type Order struct {
	ID                string
	RequestID         string
	TechnicalReportID string
	Status            OrderStatus
	ImageURL          string
	Items             []OrderItem
	Report            *TechnicalReport
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TotalCents computes the order total from line snapshots.
func (o Order) TotalCents() int64 {
	var total int64
	for _, line := range o.Items {
		total += line.UnitPriceCents * int64(line.Quantity)
	}
	return total
}

// OrderItem is a single order line. UnitPriceCents snapshots the item price
// at creation time and is never recomputed.
type OrderItem struct {
	ID             string
	OrderID        string
	ItemID         string
	Quantity       int
	UnitPriceCents int64
}
