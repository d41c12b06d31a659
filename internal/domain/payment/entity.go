// internal/domain/payment/entity.go
package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID            int64           `json:"id" db:"id"`
	InvoiceID     int64           `json:"invoice_id" db:"invoice_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	PaymentMethod string          `json:"payment_method" db:"payment_method"`
	PaymentDate   time.Time       `json:"payment_date" db:"payment_date"`
	Notes         *string         `json:"notes,omitempty" db:"notes"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// DTOs

type RecordPaymentRequest struct {
	InvoiceID     int64           `json:"invoice_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes"`
}
