// internal/app/services.go
package app

import (
	"billing-service/internal/config"
	"billing-service/internal/metrics"
	"billing-service/internal/repository/postgres"
	invoicesvc "billing-service/internal/service/invoice"
	notifysvc "billing-service/internal/service/notification"
	paymentsvc "billing-service/internal/service/payment"
	subscriptionsvc "billing-service/internal/service/subscription"

	"go.uber.org/zap"
)

// Services groups the business services over one connection pool. The API
// server and billingctl build it the same way.
type Services struct {
	Subscription *subscriptionsvc.SubscriptionService
	Invoice      *invoicesvc.InvoiceService
	Payment      *paymentsvc.PaymentService
	Notification *notifysvc.NotificationService
}

func NewServices(pool postgres.Pool, pusher notifysvc.Pusher, cfg config.AppConfig, m *metrics.Metrics, logger *zap.Logger) *Services {
	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool, logger)
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	notifyRepo := postgres.NewNotificationRepository(pool)
	schemaRepo := postgres.NewSchemaRepository(pool)
	userRepo := postgres.NewUserRepository(pool)

	// ----- Services -----
	return &Services{
		Subscription: subscriptionsvc.NewSubscriptionService(
			subscriptionRepo,
			invoiceRepo,
			paymentRepo,
			schemaRepo,
			dbWrapper,
			m,
			logger,
		),
		Invoice: invoicesvc.NewInvoiceService(
			invoiceRepo,
			subscriptionRepo,
			schemaRepo,
			m,
			logger,
		),
		Payment: paymentsvc.NewPaymentService(
			paymentRepo,
			invoiceRepo,
			dbWrapper,
			m,
			logger,
		),
		Notification: notifysvc.NewNotificationService(
			notifyRepo,
			userRepo,
			schemaRepo,
			pusher,
			notifysvc.Config{
				Lookahead:   cfg.Notifier.Lookahead,
				DedupWindow: cfg.Notifier.DedupWindow,
			},
			m,
			logger,
		),
	}
}
