// internal/repository/postgres/payment_repo.go
package postgres

import (
	"context"
	"fmt"

	"billing-service/internal/domain/payment"
)

type PaymentRepository struct {
	db Querier
}

func NewPaymentRepository(db Querier) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreateWithTx inserts a payment dated now within a transaction
func (r *PaymentRepository) CreateWithTx(ctx context.Context, tx Querier, p *payment.Payment) error {
	query := `
		INSERT INTO payments (invoice_id, amount, payment_method, payment_date, notes)
		VALUES ($1, $2, $3, NOW(), $4)
		RETURNING id, payment_date, created_at
	`

	err := tx.QueryRow(ctx, query, p.InvoiceID, p.Amount, p.PaymentMethod, p.Notes).
		Scan(&p.ID, &p.PaymentDate, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// List retrieves the payment history, newest first
func (r *PaymentRepository) List(ctx context.Context) ([]payment.Payment, error) {
	query := `
		SELECT id, invoice_id, amount, payment_method, payment_date, notes, created_at
		FROM payments
		ORDER BY payment_date DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := []payment.Payment{}
	for rows.Next() {
		var p payment.Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.PaymentMethod, &p.PaymentDate, &p.Notes, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}

// DeleteByInvoiceIDsWithTx removes every payment recorded against the given invoices
func (r *PaymentRepository) DeleteByInvoiceIDsWithTx(ctx context.Context, tx Querier, invoiceIDs []int64) (int64, error) {
	result, err := tx.Exec(ctx, `DELETE FROM payments WHERE invoice_id = ANY($1)`, invoiceIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete payments: %w", err)
	}
	return result.RowsAffected(), nil
}
