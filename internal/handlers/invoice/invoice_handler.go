// internal/handlers/invoice/invoice_handler.go
package invoice

import (
	"context"
	"net/http"
	"strconv"

	"billing-service/internal/domain/invoice"
	"billing-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Service interface {
	CreateInvoice(ctx context.Context, subscriptionID int64) (*invoice.CreateInvoiceResponse, error)
	UpdateStatus(ctx context.Context, id int64, action string) (*invoice.Invoice, error)
	GetInvoice(ctx context.Context, id int64) (*invoice.Invoice, error)
	ListInvoices(ctx context.Context) ([]invoice.Invoice, error)
}

type InvoiceHandler struct {
	invoiceService Service
}

func NewInvoiceHandler(invoiceService Service) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
	}
}

// CreateInvoice drafts an invoice for a subscription
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req invoice.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	result, err := h.invoiceService.CreateInvoice(c.Request.Context(), req.SubscriptionID)
	if err != nil {
		response.FromError(c, "failed to create invoice", err)
		return
	}

	response.Success(c, http.StatusCreated, "invoice created successfully", result)
}

func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid invoice ID", err)
		return
	}

	inv, err := h.invoiceService.GetInvoice(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, "invoice not found", err)
		return
	}

	response.Success(c, http.StatusOK, "invoice retrieved successfully", inv)
}

func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	invoices, err := h.invoiceService.ListInvoices(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to list invoices", err)
		return
	}

	response.Success(c, http.StatusOK, "invoices retrieved successfully", invoices)
}

// UpdateStatus applies confirm, cancel or reset_to_draft
func (h *InvoiceHandler) UpdateStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid invoice ID", err)
		return
	}

	var req invoice.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	inv, err := h.invoiceService.UpdateStatus(c.Request.Context(), id, req.Action)
	if err != nil {
		response.FromError(c, "failed to update invoice status", err)
		return
	}

	response.Success(c, http.StatusOK, "invoice status updated", inv)
}
