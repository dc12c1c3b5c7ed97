package model

import "time"

// Payment methods.
const (
	PaymentMethodCreditCard   = "credit_card"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodPayPal       = "paypal"
)

// Transaction is a ledger record created as the side effect of paying an
// invoice. An invoice is paid at most once.
type Transaction struct {
	ID        string    `json:"id" db:"id"`
	InvoiceID string    `json:"invoice_id" db:"invoice_id"`
	Amount    float64   `json:"amount" db:"amount"`
	Method    string    `json:"method" db:"method"`
	TS        time.Time `json:"ts" db:"ts"`
}
