// internal/domain/subscription/entity.go
package subscription

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft         Status = "draft"
	StatusQuotationSent Status = "quotation_sent"
	StatusConfirmed     Status = "confirmed"
	StatusCancelled     Status = "cancelled"
)

// Billing cycles are free text; these are the values the UI offers.
const (
	CycleWeekly  = "Weekly"
	CycleMonthly = "Monthly"
	CycleYearly  = "Yearly"
)

type Subscription struct {
	ID                   int64           `json:"id" db:"id"`
	Code                 string          `json:"code" db:"code"`
	CustomerID           *int64          `json:"customer_id,omitempty" db:"customer_id"`
	CustomerName         *string         `json:"customer_name,omitempty" db:"customer_name"`
	BillingCycle         string          `json:"billing_cycle" db:"billing_cycle"`
	Status               Status          `json:"status" db:"status"`
	TotalAmount          decimal.Decimal `json:"total_amount" db:"total_amount"`
	StartDate            *time.Time      `json:"start_date,omitempty" db:"start_date"`
	NextBillingDate      *time.Time      `json:"next_billing_date,omitempty" db:"next_billing_date"`
	ParentSubscriptionID *int64          `json:"parent_subscription_id,omitempty" db:"parent_subscription_id"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`

	Lines       []Line  `json:"lines,omitempty"`
	ChildrenIDs []int64 `json:"children_ids,omitempty"`
}

// IsRenewal reports whether the subscription was spawned by renew or upsell.
func (s *Subscription) IsRenewal() bool {
	return s.ParentSubscriptionID != nil
}

type Line struct {
	ID             int64           `json:"id" db:"id"`
	SubscriptionID int64           `json:"subscription_id" db:"subscription_id"`
	ProductID      int64           `json:"product_id" db:"product_id"`
	Quantity       decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price" db:"unit_price"`
	Subtotal       decimal.Decimal `json:"subtotal" db:"subtotal"`
}

var upsellFactor = decimal.RequireFromString("1.3")

// LineSubtotal is quantity × unit price, unrounded.
func LineSubtotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice)
}

// IsWholeCents reports whether d fits the two-decimal amount columns without
// rounding.
func IsWholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// SumLines totals the subtotals of the given lines exactly. An empty slice is zero.
func SumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

// UpsellTotal is the parent total scaled by 1.3, rounded half away from zero to cents.
func UpsellTotal(total decimal.Decimal) decimal.Decimal {
	return total.Mul(upsellFactor).Round(2)
}

// NextBillingDate is one calendar month after start, regardless of billing cycle.
func NextBillingDate(start time.Time) time.Time {
	return start.AddDate(0, 1, 0)
}
