// internal/repository/postgres/notification_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"billing-service/internal/domain/notification"
	xerrors "billing-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
)

const notificationColumns = `id, subscription_id, user_id, type, message, audience, is_read, created_at`

type NotificationRepository struct {
	db Querier
}

func NewNotificationRepository(db Querier) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func scanNotification(row pgx.Row, n *notification.Notification) error {
	return row.Scan(&n.ID, &n.SubscriptionID, &n.UserID, &n.Type, &n.Message, &n.Audience, &n.IsRead, &n.CreatedAt)
}

// FindRenewalCandidatesBySubscription selects confirmed subscriptions whose
// next_billing_date falls in [from, to]
func (r *NotificationRepository) FindRenewalCandidatesBySubscription(ctx context.Context, from, to time.Time) ([]notification.RenewalCandidate, error) {
	query := `
		SELECT s.id, s.customer_id, COALESCE(u.name, s.customer_name, ''), s.next_billing_date
		FROM subscriptions s
		LEFT JOIN users u ON u.id = s.customer_id
		WHERE s.status = 'confirmed'
		  AND s.next_billing_date IS NOT NULL
		  AND s.next_billing_date BETWEEN $1 AND $2
		ORDER BY s.next_billing_date, s.id
	`
	return r.queryCandidates(ctx, query, from, to)
}

// FindRenewalCandidatesByInvoice is the fallback for schemas without
// subscriptions.next_billing_date: pending or due invoices whose due_date
// falls in [from, to]
func (r *NotificationRepository) FindRenewalCandidatesByInvoice(ctx context.Context, from, to time.Time) ([]notification.RenewalCandidate, error) {
	query := `
		SELECT i.subscription_id, s.customer_id, COALESCE(u.name, s.customer_name, ''), i.due_date
		FROM invoices i
		JOIN subscriptions s ON s.id = i.subscription_id
		LEFT JOIN users u ON u.id = s.customer_id
		WHERE i.status IN ('pending', 'due')
		  AND i.due_date IS NOT NULL
		  AND i.due_date BETWEEN $1 AND $2
		ORDER BY i.due_date, i.subscription_id
	`
	return r.queryCandidates(ctx, query, from, to)
}

func (r *NotificationRepository) queryCandidates(ctx context.Context, query string, from, to time.Time) ([]notification.RenewalCandidate, error) {
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to find renewal candidates: %w", err)
	}
	defer rows.Close()

	candidates := []notification.RenewalCandidate{}
	for rows.Next() {
		var c notification.RenewalCandidate
		if err := rows.Scan(&c.SubscriptionID, &c.UserID, &c.CustomerName, &c.DueDate); err != nil {
			return nil, fmt.Errorf("failed to scan renewal candidate: %w", err)
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// InsertRenewalIfAbsent writes a renewal_due notification unless one exists
// for the subscription created at or after since. The check and the insert
// are one statement. It reports whether a row was written.
func (r *NotificationRepository) InsertRenewalIfAbsent(ctx context.Context, n *notification.Notification, since time.Time) (bool, error) {
	query := `
		INSERT INTO notifications (subscription_id, user_id, type, message, is_read, created_at)
		SELECT $1::bigint, $2::bigint, $3::text, $4::text, false, $5::timestamptz
		WHERE NOT EXISTS (
			SELECT 1 FROM notifications
			WHERE subscription_id = $1::bigint
			  AND type = $3::text
			  AND created_at >= $6::timestamptz
		)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		n.SubscriptionID, n.UserID, string(n.Type), n.Message, n.CreatedAt, since,
	).Scan(&n.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert renewal notification: %w", err)
	}

	return true, nil
}

// CreateBroadcast stores one broadcast row addressed to an audience
func (r *NotificationRepository) CreateBroadcast(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (type, message, audience, is_read)
		VALUES ($1, $2, $3, false)
		RETURNING id, created_at
	`

	if err := r.db.QueryRow(ctx, query, string(n.Type), n.Message, n.Audience).Scan(&n.ID, &n.CreatedAt); err != nil {
		return fmt.Errorf("failed to create broadcast: %w", err)
	}
	return nil
}

// FindByID retrieves a notification by ID
func (r *NotificationRepository) FindByID(ctx context.Context, id int64) (*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	var n notification.Notification
	if err := scanNotification(r.db.QueryRow(ctx, query, id), &n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("notification %d: %w", id, xerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find notification: %w", err)
	}
	return &n, nil
}

// ListForUser returns the user's own notifications plus broadcasts, with
// is_read resolved per user for broadcasts
func (r *NotificationRepository) ListForUser(ctx context.Context, userID int64, filters *notification.NotificationListFilters) ([]notification.Notification, error) {
	isRead := "CASE WHEN n.audience IS NOT NULL THEN r.user_id IS NOT NULL ELSE n.is_read END"

	conditions := []string{"(n.user_id = $1 OR n.audience = 'all')"}
	args := []interface{}{userID}
	argPos := 2

	if filters.IsRead != nil {
		conditions = append(conditions, fmt.Sprintf("(%s) = $%d", isRead, argPos))
		args = append(args, *filters.IsRead)
		argPos++
	}
	if filters.Type != nil {
		conditions = append(conditions, fmt.Sprintf("n.type = $%d", argPos))
		args = append(args, string(*filters.Type))
		argPos++
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 50
	}

	query := fmt.Sprintf(`
		SELECT n.id, n.subscription_id, n.user_id, n.type, n.message, n.audience, %s, n.created_at
		FROM notifications n
		LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = $1
		WHERE %s
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT $%d OFFSET $%d
	`, isRead, strings.Join(conditions, " AND "), argPos, argPos+1)
	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)

	return r.queryList(ctx, query, args...)
}

// ListAll returns every notification, newest first
func (r *NotificationRepository) ListAll(ctx context.Context) ([]notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications ORDER BY created_at DESC, id DESC`
	return r.queryList(ctx, query)
}

func (r *NotificationRepository) queryList(ctx context.Context, query string, args ...interface{}) ([]notification.Notification, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []notification.Notification{}
	for rows.Next() {
		var n notification.Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkAsRead flags a directly addressed notification as read
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id int64) (*notification.Notification, error) {
	query := `UPDATE notifications SET is_read = true WHERE id = $1 RETURNING ` + notificationColumns

	var n notification.Notification
	if err := scanNotification(r.db.QueryRow(ctx, query, id), &n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("notification %d: %w", id, xerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return &n, nil
}

// MarkBroadcastRead records that userID has read a broadcast
func (r *NotificationRepository) MarkBroadcastRead(ctx context.Context, id, userID int64) error {
	query := `
		INSERT INTO notification_reads (notification_id, user_id, read_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (notification_id, user_id) DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, id, userID); err != nil {
		return fmt.Errorf("failed to mark broadcast as read: %w", err)
	}
	return nil
}
