package request

import "time"

// GenerateInvoice asks for an invoice over the half-open period
// [period_start, period_end).
type GenerateInvoice struct {
	PeriodStart time.Time `json:"period_start" validate:"required"`
	PeriodEnd   time.Time `json:"period_end" validate:"required"`
}

// PayInvoice records a payment against a draft invoice.
type PayInvoice struct {
	Method string `json:"method" validate:"required,oneof=credit_card bank_transfer paypal"`
}
