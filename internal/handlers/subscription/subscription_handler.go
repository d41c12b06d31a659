// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"context"
	"net/http"
	"strconv"

	"billing-service/internal/domain/subscription"
	"billing-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// Service is the subscription lifecycle used by the handler
type Service interface {
	CreateSubscription(ctx context.Context, req *subscription.CreateSubscriptionRequest) (*subscription.Subscription, error)
	GetSubscription(ctx context.Context, id int64) (*subscription.Subscription, error)
	ListSubscriptions(ctx context.Context, filters *subscription.ListFilters) (*subscription.ListResponse, error)
	UpdateStatus(ctx context.Context, id int64, req *subscription.UpdateStatusRequest) (*subscription.Subscription, error)
	Renew(ctx context.Context, id int64) (*subscription.Subscription, error)
	Upsell(ctx context.Context, id int64) (*subscription.Subscription, error)
	DeleteSubscription(ctx context.Context, id int64) (*subscription.Subscription, error)
}

type SubscriptionHandler struct {
	subscriptionService Service
}

func NewSubscriptionHandler(subscriptionService Service) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

// CreateSubscription creates a draft subscription from line items or a flat total
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	var req subscription.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	sub, err := h.subscriptionService.CreateSubscription(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to create subscription", err)
		return
	}

	response.Success(c, http.StatusCreated, "subscription created successfully", sub)
}

// GetSubscription retrieves a subscription with its lines
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid subscription ID", err)
		return
	}

	sub, err := h.subscriptionService.GetSubscription(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, "subscription not found", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription retrieved successfully", sub)
}

// ListSubscriptions lists subscriptions with filters
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	var filters subscription.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}

	result, err := h.subscriptionService.ListSubscriptions(c.Request.Context(), &filters)
	if err != nil {
		response.FromError(c, "failed to list subscriptions", err)
		return
	}

	response.Success(c, http.StatusOK, "subscriptions retrieved successfully", result)
}

// UpdateStatus applies {action} or {status}
func (h *SubscriptionHandler) UpdateStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid subscription ID", err)
		return
	}

	var req subscription.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	sub, err := h.subscriptionService.UpdateStatus(c.Request.Context(), id, &req)
	if err != nil {
		response.FromError(c, "failed to update subscription status", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription status updated", sub)
}

func (h *SubscriptionHandler) RenewSubscription(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid subscription ID", err)
		return
	}

	child, err := h.subscriptionService.Renew(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, "failed to renew subscription", err)
		return
	}

	response.Success(c, http.StatusCreated, "subscription renewed", child)
}

func (h *SubscriptionHandler) UpsellSubscription(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid subscription ID", err)
		return
	}

	child, err := h.subscriptionService.Upsell(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, "failed to upsell subscription", err)
		return
	}

	response.Success(c, http.StatusCreated, "upsell subscription created", child)
}

// DeleteSubscription removes a subscription with its invoices and payments
func (h *SubscriptionHandler) DeleteSubscription(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid subscription ID", err)
		return
	}

	deleted, err := h.subscriptionService.DeleteSubscription(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, "failed to delete subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription deleted", deleted)
}
