// internal/app/router.go
package app

import (
	"context"
	"net/http"
	"time"

	authHandler "billing-service/internal/handlers/auth"
	invoiceHandler "billing-service/internal/handlers/invoice"
	notifyHandler "billing-service/internal/handlers/notification"
	paymentHandler "billing-service/internal/handlers/payment"
	subscriptionHandler "billing-service/internal/handlers/subscription"
	wsHandler "billing-service/internal/handlers/websocket"
	"billing-service/internal/metrics"
	"billing-service/internal/middleware"
	"billing-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Manual generator and broadcast triggers per identity per minute
const triggerLimit = 5

type Handlers struct {
	AuthHandler         *authHandler.AuthHandler
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	InvoiceHandler      *invoiceHandler.InvoiceHandler
	PaymentHandler      *paymentHandler.PaymentHandler
	NotifHandler        *notifyHandler.NotificationHandler
	WSHandler           *wsHandler.WebSocketHandler
	AuthMiddleware      *middleware.AuthMiddleware
	Limiter             middleware.Limiter
	Metrics             *metrics.Metrics
	HealthCheck         func(ctx context.Context) error
	Logger              *zap.Logger
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	// ==================== Health & Metrics ====================
	r.GET("/health", func(c *gin.Context) {
		if h.HealthCheck != nil {
			if err := h.HealthCheck(c.Request.Context()); err != nil {
				response.Error(c, http.StatusServiceUnavailable, "database unavailable", err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	api := r.Group("/api/v1")
	api.Use(h.AuthMiddleware.Auth())

	// ==================== Auth ====================
	auth := api.Group("/auth")
	{
		auth.POST("/logout", h.AuthHandler.Logout)
		auth.GET("/me", h.AuthHandler.Me)
	}

	// ==================== Subscriptions ====================
	subscriptions := api.Group("/subscriptions")
	{
		subscriptions.POST("", h.SubscriptionHandler.CreateSubscription)
		subscriptions.GET("", h.SubscriptionHandler.ListSubscriptions)
		subscriptions.GET("/:id", h.SubscriptionHandler.GetSubscription)
		subscriptions.PATCH("/:id/status", h.SubscriptionHandler.UpdateStatus)
		subscriptions.POST("/:id/renew", h.SubscriptionHandler.RenewSubscription)
		subscriptions.POST("/:id/upsell", h.SubscriptionHandler.UpsellSubscription)
		subscriptions.DELETE("/:id", h.SubscriptionHandler.DeleteSubscription)
	}

	// ==================== Invoices ====================
	invoices := api.Group("/invoices")
	{
		invoices.POST("", h.InvoiceHandler.CreateInvoice)
		invoices.GET("", h.InvoiceHandler.ListInvoices)
		invoices.GET("/:id", h.InvoiceHandler.GetInvoice)
		invoices.PATCH("/:id/status", h.InvoiceHandler.UpdateStatus)
	}

	// ==================== Payments ====================
	payments := api.Group("/payments")
	{
		payments.POST("", h.PaymentHandler.RecordPayment)
		payments.GET("", h.PaymentHandler.ListPayments)
	}

	// ==================== Notifications ====================
	notifications := api.Group("/notifications")
	{
		notifications.GET("", h.NotifHandler.GetNotifications)
		notifications.POST("/generate",
			middleware.RateLimit(h.Limiter, "notifications:generate", triggerLimit, time.Minute, h.Logger),
			h.NotifHandler.Generate,
		)
		notifications.PATCH("/:id/read", h.NotifHandler.MarkAsRead)
	}

	adminOnly := h.AuthMiddleware.RequireAdmin()
	adminNotifications := api.Group("/notifications", adminOnly)
	{
		adminNotifications.POST("/broadcast",
			middleware.RateLimit(h.Limiter, "notifications:broadcast", triggerLimit, time.Minute, h.Logger),
			h.NotifHandler.Broadcast,
		)
		adminNotifications.GET("/all", h.NotifHandler.GetAllNotifications)
	}

	// ==================== Admin ====================
	admin := api.Group("/admin", adminOnly)
	{
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}
}
