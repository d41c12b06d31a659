// internal/domain/subscription/dto.go
package subscription

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineRequest struct {
	ProductID int64           `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateSubscriptionRequest creates a draft. When Lines is empty, TotalAmount
// (if set) becomes the header total.
type CreateSubscriptionRequest struct {
	CustomerID           *int64           `json:"customer_id"`
	CustomerName         string           `json:"customer_name"`
	BillingCycle         string           `json:"billing_cycle" binding:"required"`
	StartDate            *time.Time       `json:"start_date"`
	TotalAmount          *decimal.Decimal `json:"total_amount"`
	ParentSubscriptionID *int64           `json:"parent_subscription_id"`
	Lines                []LineRequest    `json:"lines" binding:"dive"`
}

type UpdateStatusRequest struct {
	Action string `json:"action"`
	Status string `json:"status"`
}

type ListFilters struct {
	Status     *Status `form:"status"`
	CustomerID *int64  `form:"customer_id"`
	ParentID   *int64  `form:"parent_id"`
	Page       int     `form:"page"`
	PageSize   int     `form:"page_size"`
}

type ListResponse struct {
	Subscriptions []Subscription `json:"subscriptions"`
	Total         int64          `json:"total"`
	Page          int            `json:"page"`
	PageSize      int            `json:"page_size"`
	TotalPages    int            `json:"total_pages"`
}
