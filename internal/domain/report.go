package domain

import "time"

// TechnicalReport captures the diagnosis that justifies an order. Reports
// created through the order workflow are immutable afterwards.
type TechnicalReport struct {
	ID              string
	Title           string
	Description     string
	Diagnosis       string
	Recommendations string
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
