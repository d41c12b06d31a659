package invoice

type CreateInvoiceRequest struct {
	SubscriptionID int64 `json:"subscriptionId" binding:"required"`
}

type CreateInvoiceResponse struct {
	Invoice     *Invoice `json:"invoice"`
	RedirectURL string   `json:"redirect_url"`
}

type UpdateStatusRequest struct {
	Action string `json:"action" binding:"required"`
}
