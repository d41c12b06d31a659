// internal/domain/invoice/entity.go
package invoice

import (
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusPaid      Status = "paid"

	// Read by the renewal fallback path; never written by this service.
	StatusPending Status = "pending"
	StatusDue     Status = "due"
)

type Invoice struct {
	ID             int64           `json:"id"`
	SubscriptionID *int64          `json:"subscription_id,omitempty"`
	InvoiceNumber  string          `json:"invoice_number,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Status         Status          `json:"status"`
	IssueDate      *time.Time      `json:"issue_date,omitempty"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
}

// DraftLocator is the review view a freshly created draft should be opened in.
func DraftLocator(id int64) string {
	return fmt.Sprintf("/invoices/draft/%d", id)
}

// FromRecord normalises a row read with SELECT * / RETURNING * into an
// Invoice, resolving the column synonyms deployments use.
func FromRecord(rec map[string]any) (*Invoice, error) {
	inv := &Invoice{}

	id, err := toInt64(rec["id"])
	if err != nil {
		return nil, fmt.Errorf("invoice id: %w", err)
	}
	inv.ID = id

	if v, ok := rec["subscription_id"]; ok && v != nil {
		sid, err := toInt64(v)
		if err != nil {
			return nil, fmt.Errorf("invoice subscription_id: %w", err)
		}
		inv.SubscriptionID = &sid
	}

	if v, ok := rec["invoice_number"].(string); ok {
		inv.InvoiceNumber = v
	}
	if v, ok := rec["status"].(string); ok {
		inv.Status = Status(v)
	}

	for _, col := range amountPriority {
		if v, ok := rec[col]; ok && v != nil {
			amount, err := toDecimal(v)
			if err != nil {
				return nil, fmt.Errorf("invoice %s: %w", col, err)
			}
			inv.Amount = amount
			break
		}
	}

	for _, col := range []string{ColIssueDate, ColIssuedDate} {
		if t := toTime(rec[col]); t != nil {
			inv.IssueDate = t
			break
		}
	}
	inv.DueDate = toTime(rec["due_date"])
	inv.CreatedAt = toTime(rec[ColCreatedAt])
	inv.UpdatedAt = toTime(rec[ColUpdatedAt])

	return inv, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case nil:
		return 0, fmt.Errorf("missing value")
	default:
		return 0, fmt.Errorf("unsupported integer type %T", v)
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case pgtype.Numeric:
		if !n.Valid {
			return decimal.Zero, nil
		}
		if n.NaN || n.InfinityModifier != pgtype.Finite {
			return decimal.Zero, fmt.Errorf("non-finite numeric")
		}
		if n.Int == nil {
			return decimal.Zero, nil
		}
		return decimal.NewFromBigInt(new(big.Int).Set(n.Int), n.Exp), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case string:
		return decimal.NewFromString(n)
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric type %T", v)
	}
}

func toTime(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case *time.Time:
		return t
	case pgtype.Date:
		if t.Valid {
			return &t.Time
		}
	case pgtype.Timestamptz:
		if t.Valid {
			return &t.Time
		}
	case pgtype.Timestamp:
		if t.Valid {
			return &t.Time
		}
	}
	return nil
}
