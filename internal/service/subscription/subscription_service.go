// internal/service/subscription/subscription_service.go
package subscription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"billing-service/internal/domain/subscription"
	"billing-service/internal/metrics"
	xerrors "billing-service/internal/pkg/errors"
	"billing-service/internal/pkg/reference"
	"billing-service/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type SubscriptionService struct {
	subscriptionRepo *postgres.SubscriptionRepository
	invoiceRepo      *postgres.InvoiceRepository
	paymentRepo      *postgres.PaymentRepository
	schemaRepo       *postgres.SchemaRepository
	db               *postgres.DB
	metrics          *metrics.Metrics
	logger           *zap.Logger
	now              func() time.Time
}

func NewSubscriptionService(
	subscriptionRepo *postgres.SubscriptionRepository,
	invoiceRepo *postgres.InvoiceRepository,
	paymentRepo *postgres.PaymentRepository,
	schemaRepo *postgres.SchemaRepository,
	db *postgres.DB,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subscriptionRepo: subscriptionRepo,
		invoiceRepo:      invoiceRepo,
		paymentRepo:      paymentRepo,
		schemaRepo:       schemaRepo,
		db:               db,
		metrics:          m,
		logger:           logger,
		now:              time.Now,
	}
}

// CreateSubscription writes the header and its lines in one transaction. With
// no lines the flat TotalAmount (or zero) is kept as the total.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, req *subscription.CreateSubscriptionRequest) (*subscription.Subscription, error) {
	return s.create(ctx, req, originNew)
}

const (
	originNew     = "new"
	originRenewal = "renewal"
	originUpsell  = "upsell"
)

func (s *SubscriptionService) create(ctx context.Context, req *subscription.CreateSubscriptionRequest, origin string) (*subscription.Subscription, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	sub := &subscription.Subscription{
		Code:                 reference.SubscriptionCode(s.now()),
		CustomerID:           req.CustomerID,
		BillingCycle:         strings.TrimSpace(req.BillingCycle),
		Status:               subscription.StatusDraft,
		TotalAmount:          decimal.Zero,
		StartDate:            req.StartDate,
		ParentSubscriptionID: req.ParentSubscriptionID,
	}
	if name := strings.TrimSpace(req.CustomerName); name != "" {
		sub.CustomerName = &name
	}
	if len(req.Lines) == 0 && req.TotalAmount != nil {
		sub.TotalAmount = *req.TotalAmount
	}

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		if sub.ParentSubscriptionID != nil {
			if err := s.subscriptionRepo.LockWithTx(ctx, tx, *sub.ParentSubscriptionID); err != nil {
				return fmt.Errorf("parent %w", err)
			}
		}

		if err := s.subscriptionRepo.CreateWithTx(ctx, tx, sub); err != nil {
			return err
		}

		if len(req.Lines) == 0 {
			return nil
		}

		lines := make([]subscription.Line, 0, len(req.Lines))
		for _, lr := range req.Lines {
			line := subscription.Line{
				SubscriptionID: sub.ID,
				ProductID:      lr.ProductID,
				Quantity:       lr.Quantity,
				UnitPrice:      lr.UnitPrice,
				Subtotal:       subscription.LineSubtotal(lr.Quantity, lr.UnitPrice),
			}
			if err := s.subscriptionRepo.InsertLineWithTx(ctx, tx, &line); err != nil {
				return err
			}
			lines = append(lines, line)
		}

		sub.Lines = lines
		sub.TotalAmount = subscription.SumLines(lines)
		return s.subscriptionRepo.UpdateTotalWithTx(ctx, tx, sub.ID, sub.TotalAmount)
	})
	if err != nil {
		s.logger.Error("failed to create subscription",
			zap.Error(err),
			zap.Int("lines", len(req.Lines)),
		)
		return nil, err
	}

	s.metrics.SubscriptionsCreated.WithLabelValues(origin).Inc()

	s.logger.Info("subscription created",
		zap.Int64("subscription_id", sub.ID),
		zap.String("code", sub.Code),
		zap.String("origin", origin),
		zap.String("total_amount", sub.TotalAmount.StringFixed(2)),
		zap.Int("lines", len(sub.Lines)),
	)

	return sub, nil
}

func validateCreate(req *subscription.CreateSubscriptionRequest) error {
	if req.CustomerID == nil && strings.TrimSpace(req.CustomerName) == "" {
		return fmt.Errorf("%w: customer_id or customer_name is required", xerrors.ErrInvalidInput)
	}
	if strings.TrimSpace(req.BillingCycle) == "" {
		return fmt.Errorf("%w: billing_cycle is required", xerrors.ErrInvalidInput)
	}
	if req.TotalAmount != nil {
		if req.TotalAmount.IsNegative() {
			return fmt.Errorf("%w: total_amount must not be negative", xerrors.ErrInvalidInput)
		}
		if !subscription.IsWholeCents(*req.TotalAmount) {
			return fmt.Errorf("%w: total_amount has more than 2 decimal places", xerrors.ErrInvalidInput)
		}
	}
	// Amounts are stored with 2 decimals; anything finer would be rounded by
	// the database and break total = sum(quantity × unit_price).
	for i, l := range req.Lines {
		if l.Quantity.IsNegative() {
			return fmt.Errorf("%w: line %d quantity must not be negative", xerrors.ErrInvalidInput, i+1)
		}
		if l.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: line %d unit_price must not be negative", xerrors.ErrInvalidInput, i+1)
		}
		if !subscription.IsWholeCents(l.Quantity) || !subscription.IsWholeCents(l.UnitPrice) {
			return fmt.Errorf("%w: line %d quantity and unit_price allow at most 2 decimal places", xerrors.ErrInvalidInput, i+1)
		}
		if sub := subscription.LineSubtotal(l.Quantity, l.UnitPrice); !subscription.IsWholeCents(sub) {
			return fmt.Errorf("%w: line %d subtotal %s is not a whole number of cents", xerrors.ErrInvalidInput, i+1, sub.String())
		}
	}
	return nil
}

// GetSubscription returns the subscription with its lines and child ids
func (s *SubscriptionService) GetSubscription(ctx context.Context, id int64) (*subscription.Subscription, error) {
	sub, err := s.subscriptionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.Lines, err = s.subscriptionRepo.FindLines(ctx, id); err != nil {
		return nil, err
	}
	if sub.ChildrenIDs, err = s.subscriptionRepo.FindChildrenIDs(ctx, id); err != nil {
		return nil, err
	}

	return sub, nil
}

func (s *SubscriptionService) ListSubscriptions(ctx context.Context, filters *subscription.ListFilters) (*subscription.ListResponse, error) {
	subs, total, err := s.subscriptionRepo.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / filters.PageSize
	if int(total)%filters.PageSize > 0 {
		totalPages++
	}

	return &subscription.ListResponse{
		Subscriptions: subs,
		Total:         total,
		Page:          filters.Page,
		PageSize:      filters.PageSize,
		TotalPages:    totalPages,
	}, nil
}

// UpdateStatus applies an action (or the action implied by a raw status)
// through the transition table.
func (s *SubscriptionService) UpdateStatus(ctx context.Context, id int64, req *subscription.UpdateStatusRequest) (*subscription.Subscription, error) {
	action, err := subscription.ResolveAction(req.Action, req.Status)
	if err != nil {
		return nil, err
	}

	current, err := s.subscriptionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := subscription.Transition(current.Status, action)
	if err != nil {
		s.metrics.SubscriptionTransitions.WithLabelValues(string(action), metrics.Outcome(err)).Inc()
		return nil, err
	}

	upd := postgres.StatusUpdate{ID: id, From: current.Status, To: next}
	if action == subscription.ActionConfirm {
		today := truncateDay(s.now())
		upd.StartDate = &today

		hasNextBilling, err := s.schemaRepo.HasColumn(ctx, "subscriptions", "next_billing_date")
		if err != nil {
			return nil, err
		}
		if hasNextBilling {
			nb := subscription.NextBillingDate(today)
			upd.NextBillingDate = &nb
		}
	}

	updated, err := s.subscriptionRepo.UpdateStatus(ctx, upd)
	s.metrics.SubscriptionTransitions.WithLabelValues(string(action), metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription status updated",
		zap.Int64("subscription_id", id),
		zap.String("action", string(action)),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next)),
	)

	return updated, nil
}

// Renew creates a draft child with the parent's customer, cycle and total,
// starting tomorrow. The parent is not modified.
func (s *SubscriptionService) Renew(ctx context.Context, id int64) (*subscription.Subscription, error) {
	parent, err := s.subscriptionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.createChild(ctx, parent, parent.TotalAmount, originRenewal)
}

// Upsell is Renew with the total scaled by 1.3.
func (s *SubscriptionService) Upsell(ctx context.Context, id int64) (*subscription.Subscription, error) {
	parent, err := s.subscriptionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.createChild(ctx, parent, subscription.UpsellTotal(parent.TotalAmount), originUpsell)
}

func (s *SubscriptionService) createChild(ctx context.Context, parent *subscription.Subscription, total decimal.Decimal, origin string) (*subscription.Subscription, error) {
	tomorrow := truncateDay(s.now()).AddDate(0, 0, 1)

	req := &subscription.CreateSubscriptionRequest{
		CustomerID:           parent.CustomerID,
		BillingCycle:         parent.BillingCycle,
		StartDate:            &tomorrow,
		TotalAmount:          &total,
		ParentSubscriptionID: &parent.ID,
	}
	if parent.CustomerName != nil {
		req.CustomerName = *parent.CustomerName
	}

	return s.create(ctx, req, origin)
}

// DeleteSubscription removes the subscription together with its lines,
// invoices and their payments in one transaction.
func (s *SubscriptionService) DeleteSubscription(ctx context.Context, id int64) (*subscription.Subscription, error) {
	var deleted *subscription.Subscription

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		invoiceIDs, err := s.invoiceRepo.ListIDsBySubscriptionWithTx(ctx, tx, id)
		if err != nil {
			return err
		}

		if len(invoiceIDs) > 0 {
			if _, err := s.paymentRepo.DeleteByInvoiceIDsWithTx(ctx, tx, invoiceIDs); err != nil {
				return err
			}
			if _, err := s.invoiceRepo.DeleteByIDsWithTx(ctx, tx, invoiceIDs); err != nil {
				return err
			}
		}

		if err := s.subscriptionRepo.DeleteLinesWithTx(ctx, tx, id); err != nil {
			return err
		}

		deleted, err = s.subscriptionRepo.DeleteWithTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SubscriptionsDeleted.Inc()
	s.logger.Info("subscription deleted",
		zap.Int64("subscription_id", id),
		zap.String("code", deleted.Code),
	)

	return deleted, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
