package model

import "time"

// Invoice statuses.
const (
	InvoiceStatusDraft   = "draft"
	InvoiceStatusSent    = "sent"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusOverdue = "overdue"
)

// Line item kinds.
const (
	LineItemVCPU = "vCPU"
	LineItemRAM  = "RAM"
	LineItemDisk = "Disk"
)

// LineItem is one priced row on an invoice.
type LineItem struct {
	Kind     string  `json:"kind"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
	Rate     float64 `json:"rate"`
	Amount   float64 `json:"amount"`
}

// Invoice bills one user for the usage of all their servers over a half-open
// period [PeriodStart, PeriodEnd). At most one invoice exists per
// (user, period_start, period_end) tuple. Immutable after creation except the
// draft-to-paid status flip performed by payment recording.
type Invoice struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	PeriodStart time.Time  `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time  `json:"period_end" db:"period_end"`
	LineItems   []LineItem `json:"line_items" db:"line_items"`
	Subtotal    float64    `json:"subtotal" db:"subtotal"`
	Total       float64    `json:"total" db:"total"`
	Status      string     `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
