// internal/service/notification/service.go
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"billing-service/internal/domain/notification"
	wstypes "billing-service/internal/domain/websocket"
	"billing-service/internal/metrics"
	xerrors "billing-service/internal/pkg/errors"
	"billing-service/internal/repository/postgres"

	"go.uber.org/zap"
)

// Pusher delivers stored notifications to connected websocket clients. A nil
// Pusher disables delivery (CLI runs).
type Pusher interface {
	PushNotification(identityID int64, data *wstypes.NotificationData)
	PushNotificationToAll(data *wstypes.NotificationData)
}

type Config struct {
	Lookahead   time.Duration
	DedupWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		Lookahead:   7 * 24 * time.Hour,
		DedupWindow: 14 * 24 * time.Hour,
	}
}

// NotificationService handles renewal reminders, broadcasts and read state
type NotificationService struct {
	repo       *postgres.NotificationRepository
	userRepo   *postgres.UserRepository
	schemaRepo *postgres.SchemaRepository
	pusher     Pusher
	cfg        Config
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewNotificationService(
	repo *postgres.NotificationRepository,
	userRepo *postgres.UserRepository,
	schemaRepo *postgres.SchemaRepository,
	pusher Pusher,
	cfg Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		repo:       repo,
		userRepo:   userRepo,
		schemaRepo: schemaRepo,
		pusher:     pusher,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// GenerateRenewalNotifications inserts one renewal_due notification per
// subscription due within the look-ahead window, skipping subscriptions already
// reminded within the dedup window. It returns the number inserted.
func (s *NotificationService) GenerateRenewalNotifications(ctx context.Context) (int, error) {
	now := s.now()
	until := now.Add(s.cfg.Lookahead)

	hasNextBilling, err := s.schemaRepo.HasColumn(ctx, "subscriptions", "next_billing_date")
	if err != nil {
		return 0, err
	}

	var candidates []notification.RenewalCandidate
	if hasNextBilling {
		candidates, err = s.repo.FindRenewalCandidatesBySubscription(ctx, now, until)
	} else {
		candidates, err = s.repo.FindRenewalCandidatesByInvoice(ctx, now, until)
	}
	if err != nil {
		return 0, err
	}

	since := now.Add(-s.cfg.DedupWindow)
	generated := 0
	for _, c := range candidates {
		subscriptionID := c.SubscriptionID
		n := &notification.Notification{
			SubscriptionID: &subscriptionID,
			UserID:         c.UserID,
			Type:           notification.TypeRenewalDue,
			Message:        notification.RenewalMessage(c.CustomerName, c.DueDate),
			CreatedAt:      now,
		}

		inserted, err := s.repo.InsertRenewalIfAbsent(ctx, n, since)
		if err != nil {
			return generated, err
		}
		if !inserted {
			continue
		}

		generated++
		if s.pusher != nil && n.UserID != nil {
			s.pusher.PushNotification(*n.UserID, toPushData(n))
		}
	}

	s.metrics.NotificationsGenerated.Add(float64(generated))
	s.logger.Info("renewal notifications generated",
		zap.Int("candidates", len(candidates)),
		zap.Int("generated", generated),
		zap.Bool("by_next_billing_date", hasNextBilling),
	)

	return generated, nil
}

// Broadcast stores a single notification for every user and returns the
// audience size.
func (s *NotificationService) Broadcast(ctx context.Context, message string) (int, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return 0, fmt.Errorf("%w: message is required", xerrors.ErrInvalidInput)
	}

	recipients, err := s.userRepo.Count(ctx)
	if err != nil {
		return 0, err
	}

	audience := notification.AudienceAll
	n := &notification.Notification{
		Type:     notification.TypeBroadcast,
		Message:  message,
		Audience: &audience,
	}
	if err := s.repo.CreateBroadcast(ctx, n); err != nil {
		return 0, err
	}

	if s.pusher != nil {
		s.pusher.PushNotificationToAll(toPushData(n))
	}
	s.metrics.BroadcastsSent.Inc()

	s.logger.Info("broadcast stored",
		zap.Int64("notification_id", n.ID),
		zap.Int("audience", recipients),
	)

	return recipients, nil
}

// ListForUser returns the user's own notifications and broadcasts
func (s *NotificationService) ListForUser(ctx context.Context, userID int64, filters *notification.NotificationListFilters) ([]notification.Notification, error) {
	if filters == nil {
		filters = &notification.NotificationListFilters{}
	}
	return s.repo.ListForUser(ctx, userID, filters)
}

func (s *NotificationService) ListAll(ctx context.Context) ([]notification.Notification, error) {
	return s.repo.ListAll(ctx)
}

// MarkRead marks a notification as read for userID. Direct notifications may
// only be marked by their owner or an admin.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID int64, isAdmin bool) (*notification.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if n.Audience != nil {
		if err := s.repo.MarkBroadcastRead(ctx, id, userID); err != nil {
			return nil, err
		}
		n.IsRead = true
		return n, nil
	}

	if !isAdmin && (n.UserID == nil || *n.UserID != userID) {
		// Not revealing that the id exists
		return nil, fmt.Errorf("notification %d: %w", id, xerrors.ErrNotFound)
	}

	return s.repo.MarkAsRead(ctx, id)
}

func toPushData(n *notification.Notification) *wstypes.NotificationData {
	return &wstypes.NotificationData{
		ID:             n.ID,
		SubscriptionID: n.SubscriptionID,
		Type:           string(n.Type),
		Message:        n.Message,
		IsRead:         n.IsRead,
		CreatedAt:      n.CreatedAt,
	}
}
