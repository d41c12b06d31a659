// internal/repository/postgres/invoice_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"billing-service/internal/domain/invoice"
	xerrors "billing-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// InvoiceRepository reads invoices with SELECT * because the amount and date
// column names differ between deployments; rows are normalised by
// invoice.FromRecord.
type InvoiceRepository struct {
	db Querier
}

func NewInvoiceRepository(db Querier) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func collectInvoice(rows pgx.Rows) (*invoice.Invoice, error) {
	rec, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	return invoice.FromRecord(rec)
}

// CreateWithPlan inserts a draft invoice using only the columns the plan allows
func (r *InvoiceRepository) CreateWithPlan(ctx context.Context, plan invoice.ColumnPlan, draft invoice.Draft) (*invoice.Invoice, error) {
	cols, vals := plan.Assignments(draft)

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = pq.QuoteIdentifier(col)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO invoices (%s) VALUES (%s) RETURNING *",
		strings.Join(quoted, ", "), strings.Join(placeholders, ", "),
	)

	rows, err := r.db.Query(ctx, query, vals...)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	inv, err := collectInvoice(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read created invoice: %w", err)
	}
	return inv, nil
}

// FindByID retrieves an invoice by ID
func (r *InvoiceRepository) FindByID(ctx context.Context, id int64) (*invoice.Invoice, error) {
	rows, err := r.db.Query(ctx, `SELECT * FROM invoices WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}

	inv, err := collectInvoice(rows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", id, xerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}
	return inv, nil
}

// List retrieves all invoices, newest first
func (r *InvoiceRepository) List(ctx context.Context) ([]invoice.Invoice, error) {
	rows, err := r.db.Query(ctx, `SELECT * FROM invoices ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	recs, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoices: %w", err)
	}

	invoices := make([]invoice.Invoice, 0, len(recs))
	for _, rec := range recs {
		inv, err := invoice.FromRecord(rec)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, nil
}

// UpdateStatus moves an invoice from one status to another. touchUpdatedAt is
// false on tables without an updated_at column.
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id int64, from, to invoice.Status, touchUpdatedAt bool) (*invoice.Invoice, error) {
	set := "status = $1"
	if touchUpdatedAt {
		set += ", updated_at = NOW()"
	}
	query := fmt.Sprintf(`UPDATE invoices SET %s WHERE id = $2 AND status = $3 RETURNING *`, set)

	rows, err := r.db.Query(ctx, query, string(to), id, string(from))
	if err != nil {
		return nil, fmt.Errorf("failed to update invoice status: %w", err)
	}

	inv, err := collectInvoice(rows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice %d is no longer %s", xerrors.ErrConflict, id, from)
		}
		return nil, fmt.Errorf("failed to update invoice status: %w", err)
	}
	return inv, nil
}

// LockStatusWithTx reads the invoice status and holds a row lock until the
// transaction ends
func (r *InvoiceRepository) LockStatusWithTx(ctx context.Context, tx Querier, id int64) (invoice.Status, error) {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM invoices WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("invoice %d: %w", id, xerrors.ErrNotFound)
		}
		return "", fmt.Errorf("failed to lock invoice: %w", err)
	}
	return invoice.Status(status), nil
}

// MarkPaidWithTx sets the invoice status to paid within a transaction
func (r *InvoiceRepository) MarkPaidWithTx(ctx context.Context, tx Querier, id int64) error {
	result, err := tx.Exec(ctx, `UPDATE invoices SET status = $1 WHERE id = $2`, string(invoice.StatusPaid), id)
	if err != nil {
		return fmt.Errorf("failed to mark invoice paid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("invoice %d: %w", id, xerrors.ErrNotFound)
	}
	return nil
}

// ListIDsBySubscriptionWithTx collects the invoice ids of a subscription
func (r *InvoiceRepository) ListIDsBySubscriptionWithTx(ctx context.Context, tx Querier, subscriptionID int64) ([]int64, error) {
	rows, err := tx.Query(ctx, `SELECT id FROM invoices WHERE subscription_id = $1`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription invoices: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoice ids: %w", err)
	}
	return ids, nil
}

// DeleteByIDsWithTx removes the given invoices within a transaction
func (r *InvoiceRepository) DeleteByIDsWithTx(ctx context.Context, tx Querier, ids []int64) (int64, error) {
	result, err := tx.Exec(ctx, `DELETE FROM invoices WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete invoices: %w", err)
	}
	return result.RowsAffected(), nil
}
