// internal/service/payment/payment_service.go
package payment

import (
	"context"
	"fmt"
	"strings"

	"billing-service/internal/domain/invoice"
	"billing-service/internal/domain/payment"
	"billing-service/internal/metrics"
	xerrors "billing-service/internal/pkg/errors"
	"billing-service/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type PaymentService struct {
	paymentRepo *postgres.PaymentRepository
	invoiceRepo *postgres.InvoiceRepository
	db          *postgres.DB
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewPaymentService(
	paymentRepo *postgres.PaymentRepository,
	invoiceRepo *postgres.InvoiceRepository,
	db *postgres.DB,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		invoiceRepo: invoiceRepo,
		db:          db,
		metrics:     m,
		logger:      logger,
	}
}

// RecordPayment stores the payment and marks the invoice paid atomically. An
// invoice that is already paid is rejected with ErrConflict.
func (s *PaymentService) RecordPayment(ctx context.Context, req *payment.RecordPaymentRequest) (*payment.Payment, error) {
	method := strings.TrimSpace(req.PaymentMethod)
	switch {
	case req.InvoiceID <= 0:
		return nil, fmt.Errorf("%w: invoice_id is required", xerrors.ErrInvalidInput)
	case !req.Amount.IsPositive():
		return nil, fmt.Errorf("%w: amount must be greater than zero", xerrors.ErrInvalidInput)
	case method == "":
		return nil, fmt.Errorf("%w: payment_method is required", xerrors.ErrInvalidInput)
	}

	p := &payment.Payment{
		InvoiceID:     req.InvoiceID,
		Amount:        req.Amount.Round(2),
		PaymentMethod: method,
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		p.Notes = &notes
	}

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		status, err := s.invoiceRepo.LockStatusWithTx(ctx, tx, req.InvoiceID)
		if err != nil {
			return err
		}
		if status == invoice.StatusPaid {
			return fmt.Errorf("%w: invoice %d is already paid", xerrors.ErrConflict, req.InvoiceID)
		}

		if err := s.paymentRepo.CreateWithTx(ctx, tx, p); err != nil {
			return err
		}
		return s.invoiceRepo.MarkPaidWithTx(ctx, tx, req.InvoiceID)
	})
	if err != nil {
		s.logger.Warn("payment not recorded",
			zap.Int64("invoice_id", req.InvoiceID),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.PaymentsRecorded.Inc()
	s.logger.Info("payment recorded",
		zap.Int64("payment_id", p.ID),
		zap.Int64("invoice_id", p.InvoiceID),
		zap.String("amount", p.Amount.StringFixed(2)),
		zap.String("method", p.PaymentMethod),
	)

	return p, nil
}

func (s *PaymentService) ListPayments(ctx context.Context) ([]payment.Payment, error) {
	return s.paymentRepo.List(ctx)
}
