// internal/domain/notification/entity.go
package notification

import (
	"fmt"
	"time"
)

type NotificationType string

const (
	TypeRenewalDue NotificationType = "renewal_due"
	TypeBroadcast  NotificationType = "broadcast"
)

// AudienceAll targets every user; per-user read state lives in notification_reads.
const AudienceAll = "all"

type Notification struct {
	ID             int64            `json:"id" db:"id"`
	SubscriptionID *int64           `json:"subscription_id,omitempty" db:"subscription_id"`
	UserID         *int64           `json:"user_id,omitempty" db:"user_id"`
	Type           NotificationType `json:"type" db:"type"`
	Message        string           `json:"message" db:"message"`
	Audience       *string          `json:"audience,omitempty" db:"audience"`
	IsRead         bool             `json:"is_read" db:"is_read"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// RenewalCandidate is a subscription whose next billing falls inside the
// look-ahead window.
type RenewalCandidate struct {
	SubscriptionID int64
	UserID         *int64
	CustomerName   string
	DueDate        time.Time
}

// RenewalMessage formats the reminder text stored on a renewal_due notification.
func RenewalMessage(customerName string, due time.Time) string {
	if customerName == "" {
		customerName = "customer"
	}
	return fmt.Sprintf("Subscription for %s is due for renewal on %s", customerName, due.Format("2006-01-02"))
}

// DTOs

type BroadcastRequest struct {
	Message string `json:"message"`
}

type GenerateResponse struct {
	Generated int `json:"generated"`
}

type BroadcastResponse struct {
	Broadcasted int `json:"broadcasted"`
}

type NotificationListFilters struct {
	IsRead   *bool             `form:"is_read"`
	Type     *NotificationType `form:"type"`
	Page     int               `form:"page"`
	PageSize int               `form:"page_size"`
}
