// internal/handlers/notification/notification_handler.go
package notification

import (
	"context"
	"net/http"
	"strconv"

	"billing-service/internal/domain/notification"
	"billing-service/internal/middleware"
	"billing-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Service interface {
	GenerateRenewalNotifications(ctx context.Context) (int, error)
	Broadcast(ctx context.Context, message string) (int, error)
	ListForUser(ctx context.Context, userID int64, filters *notification.NotificationListFilters) ([]notification.Notification, error)
	ListAll(ctx context.Context) ([]notification.Notification, error)
	MarkRead(ctx context.Context, id, userID int64, isAdmin bool) (*notification.Notification, error)
}

type NotificationHandler struct {
	notificationService Service
}

func NewNotificationHandler(notificationService Service) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// Generate runs the renewal reminder generator once
func (h *NotificationHandler) Generate(c *gin.Context) {
	generated, err := h.notificationService.GenerateRenewalNotifications(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to generate notifications", err)
		return
	}

	response.Success(c, http.StatusOK, "renewal notifications generated", notification.GenerateResponse{
		Generated: generated,
	})
}

// Broadcast stores a message for all users (admin)
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	var req notification.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	count, err := h.notificationService.Broadcast(c.Request.Context(), req.Message)
	if err != nil {
		response.FromError(c, "failed to broadcast", err)
		return
	}

	response.Success(c, http.StatusOK, "broadcast sent", notification.BroadcastResponse{
		Broadcasted: count,
	})
}

// GetNotifications lists the caller's notifications and broadcasts
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	identityID, ok := middleware.GetIdentityID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var filters notification.NotificationListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}

	notifications, err := h.notificationService.ListForUser(c.Request.Context(), identityID, &filters)
	if err != nil {
		response.FromError(c, "failed to get notifications", err)
		return
	}

	response.Success(c, http.StatusOK, "notifications retrieved", notifications)
}

// GetAllNotifications lists every notification (admin)
func (h *NotificationHandler) GetAllNotifications(c *gin.Context) {
	notifications, err := h.notificationService.ListAll(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to get notifications", err)
		return
	}

	response.Success(c, http.StatusOK, "notifications retrieved", notifications)
}

// MarkAsRead marks a notification as read for the caller
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	identityID, ok := middleware.GetIdentityID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	notifID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid notification ID", err)
		return
	}

	n, err := h.notificationService.MarkRead(c.Request.Context(), notifID, identityID, middleware.IsAdmin(c))
	if err != nil {
		response.FromError(c, "failed to mark as read", err)
		return
	}

	response.Success(c, http.StatusOK, "notification marked as read", n)
}
