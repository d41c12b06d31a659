package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"billing-service/internal/domain/invoice"
	xerrors "billing-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWithPlanWritesOnlyPlannedColumns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewInvoiceRepository(mock)
	plan := invoice.ColumnPlan{
		HasSubscriptionID: true,
		HasInvoiceNumber:  true,
		AmountColumn:      invoice.ColTotal,
		HasStatus:         true,
	}
	amount := decimal.RequireFromString("125.00")

	mock.ExpectQuery(regexp.QuoteMeta(
		`INSERT INTO invoices ("subscription_id", "invoice_number", "total", "status") VALUES ($1, $2, $3, $4) RETURNING *`,
	)).
		WithArgs(int64(9), "INV-TEST", amount, "draft").
		WillReturnRows(pgxmock.NewRows([]string{"id", "subscription_id", "invoice_number", "total", "status"}).
			AddRow(int64(31), int64(9), "INV-TEST", "125.00", "draft"))

	inv, err := repo.CreateWithPlan(context.Background(), plan, invoice.Draft{
		SubscriptionID: 9,
		InvoiceNumber:  "INV-TEST",
		Amount:         amount,
		IssuedAt:       time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(31), inv.ID)
	assert.Equal(t, invoice.StatusDraft, inv.Status)
	assert.Equal(t, "125.00", inv.Amount.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceUpdateStatusConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewInvoiceRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE invoices SET status = $1 WHERE id = $2 AND status = $3 RETURNING *`)).
		WithArgs("cancelled", int64(4), "confirmed").
		WillReturnRows(pgxmock.NewRows([]string{"id", "amount", "status"}))

	_, err = repo.UpdateStatus(context.Background(), 4, invoice.StatusConfirmed, invoice.StatusCancelled, false)
	assert.ErrorIs(t, err, xerrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockStatusWithTxNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewInvoiceRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM invoices WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(77)).
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.LockStatusWithTx(context.Background(), mock, 77)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}
