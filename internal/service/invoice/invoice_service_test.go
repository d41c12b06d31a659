package invoice

import (
	"context"
	"regexp"
	"testing"
	"time"

	"billing-service/internal/domain/invoice"
	"billing-service/internal/domain/subscription"
	"billing-service/internal/metrics"
	xerrors "billing-service/internal/pkg/errors"
	"billing-service/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*InvoiceService, pgxmock.PgxPoolIface, *metrics.Metrics) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	m := metrics.New()
	svc := NewInvoiceService(
		postgres.NewInvoiceRepository(mock),
		postgres.NewSubscriptionRepository(mock),
		postgres.NewSchemaRepository(mock),
		m,
		zap.NewNop(),
	)
	svc.now = func() time.Time { return fixedNow }
	return svc, mock, m
}

func expectSubscription(mock pgxmock.PgxPoolIface, id int64, total string) {
	mock.ExpectQuery("FROM subscriptions s WHERE s.id = ").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "code", "customer_id", "customer_name", "billing_cycle", "status", "total_amount",
			"start_date", "next_billing_date", "parent_subscription_id", "created_at", "updated_at",
		}).AddRow(id, "SUB/2026/01TEST", nil, nil, "Monthly", subscription.StatusConfirmed, total,
			nil, nil, nil, fixedNow, fixedNow))
}

func TestCreateInvoiceUsesDeployedColumns(t *testing.T) {
	svc, mock, m := newTestService(t)

	expectSubscription(mock, 9, "125.00")
	mock.ExpectQuery("information_schema.columns").
		WithArgs("invoices", invoice.CandidateColumns).
		WillReturnRows(pgxmock.NewRows([]string{"column_name"}).
			AddRow("subscription_id").AddRow("invoice_number").AddRow("total").AddRow("status"))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO invoices ("subscription_id", "invoice_number", "total", "status") VALUES ($1, $2, $3, $4) RETURNING *`)).
		WithArgs(int64(9), pgxmock.AnyArg(), pgxmock.AnyArg(), "draft").
		WillReturnRows(pgxmock.NewRows([]string{"id", "subscription_id", "invoice_number", "total", "status"}).
			AddRow(int64(31), int64(9), "INV-01", "125.00", "draft"))

	resp, err := svc.CreateInvoice(context.Background(), 9)
	require.NoError(t, err)

	assert.Equal(t, int64(31), resp.Invoice.ID)
	assert.Equal(t, invoice.StatusDraft, resp.Invoice.Status)
	assert.Equal(t, "125.00", resp.Invoice.Amount.StringFixed(2))
	assert.Equal(t, "/invoices/draft/31", resp.RedirectURL)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.InvoicesCreated.WithLabelValues("total")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInvoiceWithoutAmountColumnWritesNothing(t *testing.T) {
	svc, mock, _ := newTestService(t)

	expectSubscription(mock, 9, "125.00")
	mock.ExpectQuery("information_schema.columns").
		WithArgs("invoices", invoice.CandidateColumns).
		WillReturnRows(pgxmock.NewRows([]string{"column_name"}).AddRow("subscription_id").AddRow("status"))

	_, err := svc.CreateInvoice(context.Background(), 9)
	assert.ErrorIs(t, err, xerrors.ErrSchemaConfig)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInvoiceUnknownSubscription(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery("FROM subscriptions s WHERE s.id = ").
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.CreateInvoice(context.Background(), 404)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestUpdateInvoiceStatus(t *testing.T) {
	svc, mock, m := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM invoices WHERE id = $1")).
		WithArgs(int64(31)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "amount", "status"}).AddRow(int64(31), "50.00", "draft"))
	mock.ExpectQuery("information_schema.columns").
		WithArgs("invoices", []string{"updated_at"}).
		WillReturnRows(pgxmock.NewRows([]string{"column_name"}).AddRow("updated_at"))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE invoices SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3 RETURNING *")).
		WithArgs("confirmed", int64(31), "draft").
		WillReturnRows(pgxmock.NewRows([]string{"id", "amount", "status"}).AddRow(int64(31), "50.00", "confirmed"))

	inv, err := svc.UpdateStatus(context.Background(), 31, "confirm")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusConfirmed, inv.Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.InvoiceTransitions.WithLabelValues("confirm", "applied")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateInvoiceStatusRejectsPaid(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM invoices WHERE id = $1")).
		WithArgs(int64(31)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "amount", "status"}).AddRow(int64(31), "50.00", "paid"))

	_, err := svc.UpdateStatus(context.Background(), 31, "cancel")
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)

	_, err = svc.UpdateStatus(context.Background(), 31, "pay")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}
