package domain

import "time"

// Item is a spare part tracked in inventory. Stock is mutated only through
// the stock ledger so reservations stay atomic.
type Item struct {
	ID         string
	Name       string
	SKU        string
	PriceCents int64
	Stock      int
	CategoryID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Category groups items for browsing and reporting.
type Category struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}
