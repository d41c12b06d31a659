// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"billing-service/internal/domain/subscription"
	xerrors "billing-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// subscriptionColumns projects a row aliased as s. next_billing_date is not
// present in every deployed schema, so it is read through the row's JSON form
// and comes back NULL when the column does not exist.
const subscriptionColumns = `s.id, s.code, s.customer_id, s.customer_name, s.billing_cycle, s.status, s.total_amount,
		       s.start_date, (to_jsonb(s) ->> 'next_billing_date')::date AS next_billing_date,
		       s.parent_subscription_id, s.created_at, s.updated_at`

type SubscriptionRepository struct {
	db Querier
}

func NewSubscriptionRepository(db Querier) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func scanSubscription(row pgx.Row, s *subscription.Subscription) error {
	return row.Scan(
		&s.ID, &s.Code, &s.CustomerID, &s.CustomerName, &s.BillingCycle, &s.Status, &s.TotalAmount,
		&s.StartDate, &s.NextBillingDate, &s.ParentSubscriptionID, &s.CreatedAt, &s.UpdatedAt,
	)
}

// CreateWithTx inserts the subscription header within a transaction
func (r *SubscriptionRepository) CreateWithTx(ctx context.Context, tx Querier, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			code, customer_id, customer_name, billing_cycle, status,
			total_amount, start_date, parent_subscription_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(
		ctx, query,
		sub.Code, sub.CustomerID, sub.CustomerName, sub.BillingCycle, sub.Status,
		sub.TotalAmount, sub.StartDate, sub.ParentSubscriptionID,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

// LockWithTx share-locks the subscription row for the rest of the
// transaction, so it cannot be deleted underneath a dependent insert.
func (r *SubscriptionRepository) LockWithTx(ctx context.Context, tx Querier, id int64) error {
	var found int64
	err := tx.QueryRow(ctx, `SELECT id FROM subscriptions WHERE id = $1 FOR SHARE`, id).Scan(&found)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("subscription %d: %w", id, xerrors.ErrNotFound)
		}
		return fmt.Errorf("failed to lock subscription: %w", err)
	}
	return nil
}

// InsertLineWithTx writes one line item within a transaction
func (r *SubscriptionRepository) InsertLineWithTx(ctx context.Context, tx Querier, line *subscription.Line) error {
	query := `
		INSERT INTO subscription_lines (subscription_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := tx.QueryRow(
		ctx, query,
		line.SubscriptionID, line.ProductID, line.Quantity, line.UnitPrice, line.Subtotal,
	).Scan(&line.ID)
	if err != nil {
		return fmt.Errorf("failed to create subscription line: %w", err)
	}

	return nil
}

// UpdateTotalWithTx sets the header total within a transaction
func (r *SubscriptionRepository) UpdateTotalWithTx(ctx context.Context, tx Querier, id int64, total decimal.Decimal) error {
	query := `UPDATE subscriptions SET total_amount = $1, updated_at = NOW() WHERE id = $2`

	result, err := tx.Exec(ctx, query, total, id)
	if err != nil {
		return fmt.Errorf("failed to update subscription total: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// FindByID retrieves a subscription header by ID
func (r *SubscriptionRepository) FindByID(ctx context.Context, id int64) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions s WHERE s.id = $1`

	var sub subscription.Subscription
	if err := scanSubscription(r.db.QueryRow(ctx, query, id), &sub); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("subscription %d: %w", id, xerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}

	return &sub, nil
}

// FindLines retrieves the line items of a subscription in insertion order
func (r *SubscriptionRepository) FindLines(ctx context.Context, subscriptionID int64) ([]subscription.Line, error) {
	query := `
		SELECT id, subscription_id, product_id, quantity, unit_price, subtotal
		FROM subscription_lines
		WHERE subscription_id = $1
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription lines: %w", err)
	}
	defer rows.Close()

	lines := []subscription.Line{}
	for rows.Next() {
		var l subscription.Line
		if err := rows.Scan(&l.ID, &l.SubscriptionID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.Subtotal); err != nil {
			return nil, fmt.Errorf("failed to scan subscription line: %w", err)
		}
		lines = append(lines, l)
	}

	return lines, rows.Err()
}

// FindChildrenIDs lists renewals and upsells spawned from a subscription
func (r *SubscriptionRepository) FindChildrenIDs(ctx context.Context, parentID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM subscriptions WHERE parent_subscription_id = $1 ORDER BY id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list child subscriptions: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan child subscription ids: %w", err)
	}
	return ids, nil
}

// List retrieves subscriptions with filters, newest first
func (r *SubscriptionRepository) List(ctx context.Context, filters *subscription.ListFilters) ([]subscription.Subscription, int64, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filters.Status)
		argPos++
	}

	if filters.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *filters.CustomerID)
		argPos++
	}

	if filters.ParentID != nil {
		conditions = append(conditions, fmt.Sprintf("parent_subscription_id = $%d", argPos))
		args = append(args, *filters.ParentID)
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM subscriptions WHERE %s", whereClause)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	offset := (filters.Page - 1) * filters.PageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM subscriptions s
		WHERE %s
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT $%d OFFSET $%d
	`, subscriptionColumns, whereClause, argPos, argPos+1)
	args = append(args, filters.PageSize, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []subscription.Subscription{}
	for rows.Next() {
		var sub subscription.Subscription
		if err := scanSubscription(rows, &sub); err != nil {
			return nil, 0, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	return subs, total, rows.Err()
}

// StatusUpdate moves a subscription from From to To. StartDate and
// NextBillingDate are written only when non-nil.
type StatusUpdate struct {
	ID              int64
	From            subscription.Status
	To              subscription.Status
	StartDate       *time.Time
	NextBillingDate *time.Time
}

// UpdateStatus applies the update only while the row is still in From, so a
// concurrent transition surfaces as ErrConflict instead of being overwritten.
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, upd StatusUpdate) (*subscription.Subscription, error) {
	sets := []string{"status = $1", "updated_at = NOW()"}
	args := []interface{}{upd.To}
	argPos := 2

	if upd.StartDate != nil {
		sets = append(sets, fmt.Sprintf("start_date = $%d", argPos))
		args = append(args, *upd.StartDate)
		argPos++
	}
	if upd.NextBillingDate != nil {
		sets = append(sets, fmt.Sprintf("next_billing_date = $%d", argPos))
		args = append(args, *upd.NextBillingDate)
		argPos++
	}

	query := fmt.Sprintf(`
		UPDATE subscriptions s SET %s
		WHERE s.id = $%d AND s.status = $%d
		RETURNING %s
	`, strings.Join(sets, ", "), argPos, argPos+1, subscriptionColumns)
	args = append(args, upd.ID, upd.From)

	var sub subscription.Subscription
	if err := scanSubscription(r.db.QueryRow(ctx, query, args...), &sub); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: subscription %d is no longer %s", xerrors.ErrConflict, upd.ID, upd.From)
		}
		return nil, fmt.Errorf("failed to update subscription status: %w", err)
	}

	return &sub, nil
}

// DeleteLinesWithTx removes the line items of a subscription within a transaction
func (r *SubscriptionRepository) DeleteLinesWithTx(ctx context.Context, tx Querier, subscriptionID int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM subscription_lines WHERE subscription_id = $1`, subscriptionID); err != nil {
		return fmt.Errorf("failed to delete subscription lines: %w", err)
	}
	return nil
}

// DeleteWithTx removes the subscription header and returns the deleted row
func (r *SubscriptionRepository) DeleteWithTx(ctx context.Context, tx Querier, id int64) (*subscription.Subscription, error) {
	query := `DELETE FROM subscriptions s WHERE s.id = $1 RETURNING ` + subscriptionColumns

	var sub subscription.Subscription
	if err := scanSubscription(tx.QueryRow(ctx, query, id), &sub); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("subscription %d: %w", id, xerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to delete subscription: %w", err)
	}

	return &sub, nil
}
