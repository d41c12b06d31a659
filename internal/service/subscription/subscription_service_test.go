package subscription

import (
	"context"
	"regexp"
	"testing"
	"time"

	"billing-service/internal/domain/subscription"
	"billing-service/internal/metrics"
	xerrors "billing-service/internal/pkg/errors"
	"billing-service/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// decimalArg matches a decimal argument by value rather than representation.
type decimalArg string

func (d decimalArg) Match(v interface{}) bool {
	got, ok := v.(decimal.Decimal)
	return ok && got.Equal(decimal.RequireFromString(string(d)))
}

var fixedNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*SubscriptionService, pgxmock.PgxPoolIface, *metrics.Metrics) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	logger := zap.NewNop()
	m := metrics.New()
	svc := NewSubscriptionService(
		postgres.NewSubscriptionRepository(mock),
		postgres.NewInvoiceRepository(mock),
		postgres.NewPaymentRepository(mock),
		postgres.NewSchemaRepository(mock),
		postgres.NewDB(mock, logger),
		m,
		logger,
	)
	svc.now = func() time.Time { return fixedNow }

	return svc, mock, m
}

var subscriptionCols = []string{
	"id", "code", "customer_id", "customer_name", "billing_cycle", "status", "total_amount",
	"start_date", "next_billing_date", "parent_subscription_id", "created_at", "updated_at",
}

func subscriptionRow(id int64, status subscription.Status, total string) *pgxmock.Rows {
	customerID := int64(3)
	return pgxmock.NewRows(subscriptionCols).
		AddRow(id, "SUB/2026/01TEST", &customerID, nil, "Monthly", status, total,
			nil, nil, nil, fixedNow, fixedNow)
}

func TestCreateSubscriptionSumsLines(t *testing.T) {
	svc, mock, m := newTestService(t)
	customerID := int64(3)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO subscriptions").
		WithArgs(pgxmock.AnyArg(), &customerID, pgxmock.AnyArg(), "Monthly", subscription.StatusDraft,
			decimalArg("0"), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), fixedNow, fixedNow))
	mock.ExpectQuery("INSERT INTO subscription_lines").
		WithArgs(int64(1), int64(10), decimalArg("2"), decimalArg("50"), decimalArg("100")).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO subscription_lines").
		WithArgs(int64(1), int64(11), decimalArg("1"), decimalArg("25"), decimalArg("25")).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subscriptions SET total_amount = $1")).
		WithArgs(decimalArg("125.00"), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	sub, err := svc.CreateSubscription(context.Background(), &subscription.CreateSubscriptionRequest{
		CustomerID:   &customerID,
		BillingCycle: "Monthly",
		Lines: []subscription.LineRequest{
			{ProductID: 10, Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50)},
			{ProductID: 11, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(25)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, subscription.StatusDraft, sub.Status)
	assert.Equal(t, "125.00", sub.TotalAmount.StringFixed(2))
	assert.Len(t, sub.Lines, 2)
	assert.Regexp(t, `^SUB/2026/[0-9A-Z]{26}$`, sub.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubscriptionsCreated.WithLabelValues("new")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSubscriptionFlatTotal(t *testing.T) {
	svc, mock, _ := newTestService(t)
	total := decimal.RequireFromString("80")

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO subscriptions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "Yearly", subscription.StatusDraft,
			decimalArg("80.00"), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(2), fixedNow, fixedNow))
	mock.ExpectCommit()

	sub, err := svc.CreateSubscription(context.Background(), &subscription.CreateSubscriptionRequest{
		CustomerName: "Walk-in",
		BillingCycle: "Yearly",
		TotalAmount:  &total,
	})
	require.NoError(t, err)
	assert.Equal(t, "80.00", sub.TotalAmount.StringFixed(2))
	require.NotNil(t, sub.CustomerName)
	assert.Equal(t, "Walk-in", *sub.CustomerName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSubscriptionValidation(t *testing.T) {
	svc, mock, _ := newTestService(t)
	negative := decimal.NewFromInt(-1)
	subCent := decimal.RequireFromString("0.005")

	tests := []struct {
		name string
		req  subscription.CreateSubscriptionRequest
	}{
		{"no customer", subscription.CreateSubscriptionRequest{BillingCycle: "Monthly"}},
		{"no cycle", subscription.CreateSubscriptionRequest{CustomerName: "Acme"}},
		{"negative total", subscription.CreateSubscriptionRequest{CustomerName: "Acme", BillingCycle: "Monthly", TotalAmount: &negative}},
		{"negative quantity", subscription.CreateSubscriptionRequest{
			CustomerName: "Acme", BillingCycle: "Monthly",
			Lines: []subscription.LineRequest{{ProductID: 1, Quantity: negative, UnitPrice: decimal.NewFromInt(5)}},
		}},
		{"sub-cent total", subscription.CreateSubscriptionRequest{CustomerName: "Acme", BillingCycle: "Monthly", TotalAmount: &subCent}},
		{"sub-cent unit price", subscription.CreateSubscriptionRequest{
			CustomerName: "Acme", BillingCycle: "Monthly",
			Lines: []subscription.LineRequest{
				{ProductID: 1, Quantity: decimal.NewFromInt(1), UnitPrice: subCent},
				{ProductID: 2, Quantity: decimal.NewFromInt(1), UnitPrice: subCent},
			},
		}},
		{"sub-cent quantity", subscription.CreateSubscriptionRequest{
			CustomerName: "Acme", BillingCycle: "Monthly",
			Lines: []subscription.LineRequest{{ProductID: 1, Quantity: decimal.RequireFromString("1.125"), UnitPrice: decimal.NewFromInt(8)}},
		}},
		{"sub-cent subtotal", subscription.CreateSubscriptionRequest{
			CustomerName: "Acme", BillingCycle: "Monthly",
			Lines: []subscription.LineRequest{{ProductID: 1, Quantity: decimal.RequireFromString("0.5"), UnitPrice: decimal.RequireFromString("0.25")}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSubscription(context.Background(), &tt.req)
			assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSubscriptionUnknownParentIsNotFound(t *testing.T) {
	svc, mock, _ := newTestService(t)
	parentID := int64(77)
	total := decimal.NewFromInt(10)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM subscriptions WHERE id = $1 FOR SHARE")).
		WithArgs(parentID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.CreateSubscription(context.Background(), &subscription.CreateSubscriptionRequest{
		CustomerName:         "Acme",
		BillingCycle:         "Monthly",
		TotalAmount:          &total,
		ParentSubscriptionID: &parentID,
	})
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	assert.NotErrorIs(t, err, xerrors.ErrTransactionFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSubscriptionRollsBackOnLineFailure(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO subscriptions").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), fixedNow, fixedNow))
	mock.ExpectQuery("INSERT INTO subscription_lines").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := svc.CreateSubscription(context.Background(), &subscription.CreateSubscriptionRequest{
		CustomerName: "Acme",
		BillingCycle: "Monthly",
		Lines:        []subscription.LineRequest{{ProductID: 1, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(5)}},
	})
	assert.ErrorIs(t, err, xerrors.ErrTransactionFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmSetsStartAndNextBillingDate(t *testing.T) {
	svc, mock, m := newTestService(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	nextBilling := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	customerID := int64(3)

	mock.ExpectQuery("FROM subscriptions s WHERE s.id = ").
		WithArgs(int64(5)).
		WillReturnRows(subscriptionRow(5, subscription.StatusQuotationSent, "125.00"))
	mock.ExpectQuery("information_schema.columns").
		WithArgs("subscriptions", []string{"next_billing_date"}).
		WillReturnRows(pgxmock.NewRows([]string{"column_name"}).AddRow("next_billing_date"))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE subscriptions s SET status = $1, updated_at = NOW(), start_date = $2, next_billing_date = $3")).
		WithArgs(subscription.StatusConfirmed, today, nextBilling, int64(5), subscription.StatusQuotationSent).
		WillReturnRows(pgxmock.NewRows(subscriptionCols).
			AddRow(int64(5), "SUB/2026/01TEST", &customerID, nil, "Monthly", subscription.StatusConfirmed, "125.00",
				&today, &nextBilling, nil, fixedNow, fixedNow))

	sub, err := svc.UpdateStatus(context.Background(), 5, &subscription.UpdateStatusRequest{Action: "confirm"})
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusConfirmed, sub.Status)
	require.NotNil(t, sub.NextBillingDate)
	assert.Equal(t, nextBilling, *sub.NextBillingDate)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubscriptionTransitions.WithLabelValues("confirm", "applied")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmWithoutNextBillingColumn(t *testing.T) {
	svc, mock, _ := newTestService(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM subscriptions s WHERE s.id = ").
		WithArgs(int64(5)).
		WillReturnRows(subscriptionRow(5, subscription.StatusDraft, "10.00"))
	mock.ExpectQuery("information_schema.columns").
		WithArgs("subscriptions", []string{"next_billing_date"}).
		WillReturnRows(pgxmock.NewRows([]string{"column_name"}))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE subscriptions s SET status = $1, updated_at = NOW(), start_date = $2\n")).
		WithArgs(subscription.StatusConfirmed, today, int64(5), subscription.StatusDraft).
		WillReturnRows(subscriptionRow(5, subscription.StatusConfirmed, "10.00"))

	sub, err := svc.UpdateStatus(context.Background(), 5, &subscription.UpdateStatusRequest{Status: "confirmed"})
	require.NoError(t, err)
	assert.Nil(t, sub.NextBillingDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusRejectsCancelledSubscription(t *testing.T) {
	svc, mock, m := newTestService(t)

	mock.ExpectQuery("FROM subscriptions s WHERE s.id = ").
		WithArgs(int64(5)).
		WillReturnRows(subscriptionRow(5, subscription.StatusCancelled, "10.00"))

	_, err := svc.UpdateStatus(context.Background(), 5, &subscription.UpdateStatusRequest{Action: "confirm"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubscriptionTransitions.WithLabelValues("confirm", "rejected")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusConcurrentChange(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery("FROM subscriptions s WHERE s.id = ").
		WithArgs(int64(5)).
		WillReturnRows(subscriptionRow(5, subscription.StatusDraft, "10.00"))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE subscriptions s SET status = $1, updated_at = NOW()")).
		WithArgs(subscription.StatusCancelled, int64(5), subscription.StatusDraft).
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.UpdateStatus(context.Background(), 5, &subscription.UpdateStatusRequest{Action: "cancel"})
	assert.ErrorIs(t, err, xerrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsellCreatesScaledChild(t *testing.T) {
	svc, mock, m := newTestService(t)
	tomorrow := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	parentID := int64(5)
	customerID := int64(3)

	mock.ExpectQuery("FROM subscriptions s WHERE s.id = ").
		WithArgs(int64(5)).
		WillReturnRows(subscriptionRow(5, subscription.StatusConfirmed, "125.00"))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM subscriptions WHERE id = $1 FOR SHARE")).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery("INSERT INTO subscriptions").
		WithArgs(pgxmock.AnyArg(), &customerID, pgxmock.AnyArg(), "Monthly", subscription.StatusDraft,
			decimalArg("162.50"), &tomorrow, &parentID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(6), fixedNow, fixedNow))
	mock.ExpectCommit()

	child, err := svc.Upsell(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, int64(6), child.ID)
	assert.True(t, child.IsRenewal())
	assert.Equal(t, "162.50", child.TotalAmount.StringFixed(2))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubscriptionsCreated.WithLabelValues("upsell")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRenewMissingParent(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery("FROM subscriptions s WHERE s.id = ").
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.Renew(context.Background(), 404)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSubscriptionCascades(t *testing.T) {
	svc, mock, m := newTestService(t)
	invoiceIDs := []int64{11, 12}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM invoices WHERE subscription_id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)).AddRow(int64(12)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM payments WHERE invoice_id = ANY($1)")).
		WithArgs(invoiceIDs).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM invoices WHERE id = ANY($1)")).
		WithArgs(invoiceIDs).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subscription_lines WHERE subscription_id = $1")).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM subscriptions s WHERE s.id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(subscriptionRow(5, subscription.StatusConfirmed, "125.00"))
	mock.ExpectCommit()

	deleted, err := svc.DeleteSubscription(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted.ID)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubscriptionsDeleted))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSubscriptionNotFoundRollsBack(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM invoices WHERE subscription_id = $1")).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subscription_lines WHERE subscription_id = $1")).
		WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM subscriptions s WHERE s.id = $1")).
		WithArgs(int64(9)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.DeleteSubscription(context.Background(), 9)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
