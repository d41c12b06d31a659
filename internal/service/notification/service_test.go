package notification

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"billing-service/internal/domain/notification"
	wstypes "billing-service/internal/domain/websocket"
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

type fakePusher struct {
	mu     sync.Mutex
	direct map[int64][]*wstypes.NotificationData
	all    []*wstypes.NotificationData
}

func newFakePusher() *fakePusher {
	return &fakePusher{direct: map[int64][]*wstypes.NotificationData{}}
}

func (p *fakePusher) PushNotification(identityID int64, data *wstypes.NotificationData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.direct[identityID] = append(p.direct[identityID], data)
}

func (p *fakePusher) PushNotificationToAll(data *wstypes.NotificationData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.all = append(p.all, data)
}

var fixedNow = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, pusher Pusher) (*NotificationService, pgxmock.PgxPoolIface, *metrics.Metrics) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	m := metrics.New()
	svc := NewNotificationService(
		postgres.NewNotificationRepository(mock),
		postgres.NewUserRepository(mock),
		postgres.NewSchemaRepository(mock),
		pusher,
		DefaultConfig(),
		m,
		zap.NewNop(),
	)
	svc.now = func() time.Time { return fixedNow }

	return svc, mock, m
}

func expectColumnLookup(mock pgxmock.PgxPoolIface, table, column string, present bool) {
	rows := pgxmock.NewRows([]string{"column_name"})
	if present {
		rows.AddRow(column)
	}
	mock.ExpectQuery("information_schema.columns").
		WithArgs(table, []string{column}).
		WillReturnRows(rows)
}

func TestGenerateRenewalNotificationsIsIdempotent(t *testing.T) {
	pusher := newFakePusher()
	svc, mock, m := newTestService(t, pusher)

	subID := int64(5)
	userID := int64(42)
	due := fixedNow.AddDate(0, 0, 3)
	since := fixedNow.Add(-DefaultConfig().DedupWindow)
	message := notification.RenewalMessage("Acme Ltd", due)

	candidates := func() *pgxmock.Rows {
		return pgxmock.NewRows([]string{"id", "customer_id", "name", "next_billing_date"}).
			AddRow(subID, &userID, "Acme Ltd", due)
	}

	// first run inserts
	expectColumnLookup(mock, "subscriptions", "next_billing_date", true)
	mock.ExpectQuery("FROM subscriptions s").
		WithArgs(fixedNow, fixedNow.Add(DefaultConfig().Lookahead)).
		WillReturnRows(candidates())
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO notifications (subscription_id, user_id, type, message, is_read, created_at)")).
		WithArgs(&subID, &userID, "renewal_due", message, fixedNow, since).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(100)))

	// second run finds the reminder from the first
	expectColumnLookup(mock, "subscriptions", "next_billing_date", true)
	mock.ExpectQuery("FROM subscriptions s").
		WithArgs(fixedNow, fixedNow.Add(DefaultConfig().Lookahead)).
		WillReturnRows(candidates())
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO notifications (subscription_id, user_id, type, message, is_read, created_at)")).
		WithArgs(&subID, &userID, "renewal_due", message, fixedNow, since).
		WillReturnError(pgx.ErrNoRows)

	first, err := svc.GenerateRenewalNotifications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := svc.GenerateRenewalNotifications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second)

	require.Len(t, pusher.direct[userID], 1)
	assert.Equal(t, int64(100), pusher.direct[userID][0].ID)
	assert.Equal(t, "renewal_due", pusher.direct[userID][0].Type)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationsGenerated))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateRenewalNotificationsFallsBackToInvoices(t *testing.T) {
	svc, mock, _ := newTestService(t, nil)

	expectColumnLookup(mock, "subscriptions", "next_billing_date", false)
	mock.ExpectQuery("FROM invoices i").
		WithArgs(fixedNow, fixedNow.Add(DefaultConfig().Lookahead)).
		WillReturnRows(pgxmock.NewRows([]string{"subscription_id", "customer_id", "name", "due_date"}))

	n, err := svc.GenerateRenewalNotifications(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBroadcastReturnsAudienceSize(t *testing.T) {
	pusher := newFakePusher()
	svc, mock, m := newTestService(t, pusher)
	audience := notification.AudienceAll

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO notifications (type, message, audience, is_read)")).
		WithArgs("broadcast", "Maintenance tonight", &audience).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(9), fixedNow))

	count, err := svc.Broadcast(context.Background(), "  Maintenance tonight ")
	require.NoError(t, err)

	assert.Equal(t, 3, count)
	require.Len(t, pusher.all, 1)
	assert.Equal(t, "Maintenance tonight", pusher.all[0].Message)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BroadcastsSent))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBroadcastRejectsEmptyMessage(t *testing.T) {
	svc, mock, _ := newTestService(t, nil)

	_, err := svc.Broadcast(context.Background(), "   ")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func notificationRow(id int64, userID *int64, audience *string) *pgxmock.Rows {
	typ := notification.TypeRenewalDue
	if audience != nil {
		typ = notification.TypeBroadcast
	}
	return pgxmock.NewRows([]string{"id", "subscription_id", "user_id", "type", "message", "audience", "is_read", "created_at"}).
		AddRow(id, nil, userID, typ, "hello", audience, false, fixedNow)
}

func TestMarkReadBroadcastRecordsPerUserRead(t *testing.T) {
	svc, mock, _ := newTestService(t, nil)
	audience := notification.AudienceAll

	mock.ExpectQuery("FROM notifications WHERE id = ").
		WithArgs(int64(9)).
		WillReturnRows(notificationRow(9, nil, &audience))
	mock.ExpectExec("INSERT INTO notification_reads").
		WithArgs(int64(9), int64(42)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := svc.MarkRead(context.Background(), 9, 42, false)
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadHidesOtherUsersNotifications(t *testing.T) {
	svc, mock, _ := newTestService(t, nil)
	owner := int64(7)

	mock.ExpectQuery("FROM notifications WHERE id = ").
		WithArgs(int64(3)).
		WillReturnRows(notificationRow(3, &owner, nil))

	_, err := svc.MarkRead(context.Background(), 3, 42, false)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadByAdmin(t *testing.T) {
	svc, mock, _ := newTestService(t, nil)
	owner := int64(7)

	mock.ExpectQuery("FROM notifications WHERE id = ").
		WithArgs(int64(3)).
		WillReturnRows(notificationRow(3, &owner, nil))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE notifications SET is_read = true WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "subscription_id", "user_id", "type", "message", "audience", "is_read", "created_at"}).
			AddRow(int64(3), nil, &owner, notification.TypeRenewalDue, "hello", nil, true, fixedNow))

	n, err := svc.MarkRead(context.Background(), 3, 1, true)
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	assert.NoError(t, mock.ExpectationsWereMet())
}
