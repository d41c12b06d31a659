// internal/websocket/handler/notification.go
package handler

import (
	"context"
	"fmt"

	"billing-service/internal/domain/notification"
	wstypes "billing-service/internal/domain/websocket"
	"billing-service/internal/pkg/jwt"
	ws "billing-service/internal/websocket"
)

// NotificationReader is the read side of the notification service
type NotificationReader interface {
	ListForUser(ctx context.Context, userID int64, filters *notification.NotificationListFilters) ([]notification.Notification, error)
	MarkRead(ctx context.Context, id, userID int64, isAdmin bool) (*notification.Notification, error)
}

type NotificationHandler struct {
	notificationService NotificationReader
}

func NewNotificationHandler(notificationService NotificationReader) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// SupportedEvents returns events this handler supports
func (h *NotificationHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTypeNotificationRead,
		wstypes.EventTypeNotificationList,
	}
}

// HandleMessage processes notification-related messages. Failures are
// reported to the client as error events.
func (h *NotificationHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	switch msg.Type {
	case wstypes.EventTypeNotificationRead:
		h.handleMarkAsRead(ctx, client, msg)
	case wstypes.EventTypeNotificationList:
		h.handleListNotifications(ctx, client, msg)
	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
	return nil
}

func (h *NotificationHandler) handleMarkAsRead(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) {
	var req struct {
		NotificationID int64 `json:"notification_id"`
	}
	if err := msg.DecodeData(&req); err != nil || req.NotificationID <= 0 {
		client.SendError("invalid_request", "Invalid mark as read request", "notification_id is required")
		return
	}

	isAdmin := client.HasRole(jwt.RoleAdmin) || client.HasRole(jwt.RoleSuperAdmin)
	n, err := h.notificationService.MarkRead(ctx, req.NotificationID, client.GetIdentityID(), isAdmin)
	if err != nil {
		client.SendError("mark_read_failed", "Failed to mark notification as read", err.Error())
		return
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeNotificationRead, map[string]interface{}{
		"notification_id": n.ID,
		"success":         true,
	}))
}

func (h *NotificationHandler) handleListNotifications(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) {
	var req struct {
		Limit  int                            `json:"limit"`
		IsRead *bool                          `json:"is_read"`
		Type   *notification.NotificationType `json:"type"`
	}
	if msg.Data != nil {
		if err := msg.DecodeData(&req); err != nil {
			client.SendError("invalid_request", "Invalid list request", err.Error())
			return
		}
	}

	if req.Limit <= 0 || req.Limit > 50 {
		req.Limit = 10
	}

	notifications, err := h.notificationService.ListForUser(ctx, client.GetIdentityID(), &notification.NotificationListFilters{
		IsRead:   req.IsRead,
		Type:     req.Type,
		Page:     1,
		PageSize: req.Limit,
	})
	if err != nil {
		client.SendError("list_failed", "Failed to get notifications", err.Error())
		return
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeNotificationList, map[string]interface{}{
		"notifications": notifications,
		"count":         len(notifications),
	}))
}
