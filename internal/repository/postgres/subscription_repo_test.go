package postgres

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"billing-service/internal/domain/subscription"
	xerrors "billing-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionColumnsToleratesMissingNextBillingDate(t *testing.T) {
	// a bare reference fails with "column does not exist" on older schemas
	for _, col := range strings.Split(subscriptionColumns, ",") {
		assert.NotEqual(t, "s.next_billing_date", strings.TrimSpace(col))
	}
	assert.Contains(t, subscriptionColumns, `(to_jsonb(s) ->> 'next_billing_date')::date AS next_billing_date`)
}

func TestSubscriptionFindByIDWithoutNextBillingDate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSubscriptionRepository(mock)
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	customerID := int64(3)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + subscriptionColumns + ` FROM subscriptions s WHERE s.id = $1`)).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "code", "customer_id", "customer_name", "billing_cycle", "status", "total_amount",
			"start_date", "next_billing_date", "parent_subscription_id", "created_at", "updated_at",
		}).AddRow(int64(5), "SUB/2026/01TEST", &customerID, nil, "Monthly", subscription.StatusConfirmed, "40.00",
			&now, nil, nil, now, now))

	sub, err := repo.FindByID(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, int64(5), sub.ID)
	assert.Nil(t, sub.NextBillingDate)
	assert.Equal(t, "40.00", sub.TotalAmount.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionLockWithTxNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSubscriptionRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM subscriptions WHERE id = $1 FOR SHARE`)).
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	err = repo.LockWithTx(context.Background(), mock, 404)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
