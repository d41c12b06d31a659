// internal/handlers/payment/payment_handler.go
package payment

import (
	"context"
	"net/http"

	"billing-service/internal/domain/payment"
	"billing-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Service interface {
	RecordPayment(ctx context.Context, req *payment.RecordPaymentRequest) (*payment.Payment, error)
	ListPayments(ctx context.Context) ([]payment.Payment, error)
}

type PaymentHandler struct {
	paymentService Service
}

func NewPaymentHandler(paymentService Service) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// RecordPayment records a payment against an invoice and marks it paid
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	var req payment.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	p, err := h.paymentService.RecordPayment(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to record payment", err)
		return
	}

	response.Success(c, http.StatusCreated, "payment recorded successfully", p)
}

func (h *PaymentHandler) ListPayments(c *gin.Context) {
	payments, err := h.paymentService.ListPayments(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to list payments", err)
		return
	}

	response.Success(c, http.StatusOK, "payments retrieved successfully", payments)
}
