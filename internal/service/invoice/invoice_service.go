// internal/service/invoice/invoice_service.go
package invoice

import (
	"context"
	"time"

	"billing-service/internal/domain/invoice"
	"billing-service/internal/metrics"
	"billing-service/internal/pkg/reference"
	"billing-service/internal/repository/postgres"

	"go.uber.org/zap"
)

const invoicesTable = "invoices"

type InvoiceService struct {
	invoiceRepo      *postgres.InvoiceRepository
	subscriptionRepo *postgres.SubscriptionRepository
	schemaRepo       *postgres.SchemaRepository
	metrics          *metrics.Metrics
	logger           *zap.Logger
	now              func() time.Time
}

func NewInvoiceService(
	invoiceRepo *postgres.InvoiceRepository,
	subscriptionRepo *postgres.SubscriptionRepository,
	schemaRepo *postgres.SchemaRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo:      invoiceRepo,
		subscriptionRepo: subscriptionRepo,
		schemaRepo:       schemaRepo,
		metrics:          m,
		logger:           logger,
		now:              time.Now,
	}
}

// CreateInvoice drafts an invoice for the subscription total, writing only the
// columns the deployed invoices table has.
func (s *InvoiceService) CreateInvoice(ctx context.Context, subscriptionID int64) (*invoice.CreateInvoiceResponse, error) {
	sub, err := s.subscriptionRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	present, err := s.schemaRepo.PresentColumns(ctx, invoicesTable, invoice.CandidateColumns)
	if err != nil {
		return nil, err
	}

	plan, err := invoice.PlanColumns(present)
	if err != nil {
		s.logger.Error("invoices table cannot hold an amount",
			zap.Strings("columns", present),
			zap.Error(err),
		)
		return nil, err
	}

	now := s.now()
	inv, err := s.invoiceRepo.CreateWithPlan(ctx, plan, invoice.Draft{
		SubscriptionID: sub.ID,
		InvoiceNumber:  reference.InvoiceNumber(now),
		Amount:         sub.TotalAmount,
		IssuedAt:       now,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InvoicesCreated.WithLabelValues(plan.AmountColumn).Inc()
	s.logger.Info("invoice created",
		zap.Int64("invoice_id", inv.ID),
		zap.Int64("subscription_id", sub.ID),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("amount_column", plan.AmountColumn),
	)

	return &invoice.CreateInvoiceResponse{
		Invoice:     inv,
		RedirectURL: invoice.DraftLocator(inv.ID),
	}, nil
}

// UpdateStatus applies confirm, cancel or reset_to_draft.
func (s *InvoiceService) UpdateStatus(ctx context.Context, id int64, rawAction string) (*invoice.Invoice, error) {
	action, err := invoice.ParseAction(rawAction)
	if err != nil {
		return nil, err
	}

	current, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := invoice.Transition(current.Status, action)
	if err != nil {
		s.metrics.InvoiceTransitions.WithLabelValues(string(action), metrics.Outcome(err)).Inc()
		return nil, err
	}

	hasUpdatedAt, err := s.schemaRepo.HasColumn(ctx, invoicesTable, invoice.ColUpdatedAt)
	if err != nil {
		return nil, err
	}

	updated, err := s.invoiceRepo.UpdateStatus(ctx, id, current.Status, next, hasUpdatedAt)
	s.metrics.InvoiceTransitions.WithLabelValues(string(action), metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice status updated",
		zap.Int64("invoice_id", id),
		zap.String("action", string(action)),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next)),
	)

	return updated, nil
}

func (s *InvoiceService) GetInvoice(ctx context.Context, id int64) (*invoice.Invoice, error) {
	return s.invoiceRepo.FindByID(ctx, id)
}

func (s *InvoiceService) ListInvoices(ctx context.Context) ([]invoice.Invoice, error) {
	return s.invoiceRepo.List(ctx)
}
