package invoice

import (
	"fmt"
	"time"

	xerrors "billing-service/internal/pkg/errors"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	ColSubscriptionID = "subscription_id"
	ColInvoiceNumber  = "invoice_number"
	ColAmount         = "amount"
	ColTotalAmount    = "total_amount"
	ColTotal          = "total"
	ColStatus         = "status"
	ColIssueDate      = "issue_date"
	ColIssuedDate     = "issued_date"
	ColCreatedAt      = "created_at"
	ColUpdatedAt      = "updated_at"
)

// CandidateColumns is the set looked up on the invoices table before an insert.
var CandidateColumns = []string{
	ColSubscriptionID, ColInvoiceNumber,
	ColAmount, ColTotalAmount, ColTotal,
	ColStatus,
	ColIssueDate, ColIssuedDate, ColCreatedAt,
	ColUpdatedAt,
}

var (
	amountPriority = []string{ColAmount, ColTotalAmount, ColTotal}
	datePriority   = []string{ColIssueDate, ColIssuedDate, ColCreatedAt}
)

// ColumnPlan describes which invoice columns a deployment exposes.
type ColumnPlan struct {
	HasSubscriptionID bool
	HasInvoiceNumber  bool
	AmountColumn      string
	HasStatus         bool
	// DateColumn is written explicitly; empty when the table has only
	// created_at (left to its default) or no date column at all.
	DateColumn   string
	HasUpdatedAt bool
}

// PlanColumns resolves the column plan from the columns present on the table.
func PlanColumns(present []string) (ColumnPlan, error) {
	plan := ColumnPlan{
		HasSubscriptionID: lo.Contains(present, ColSubscriptionID),
		HasInvoiceNumber:  lo.Contains(present, ColInvoiceNumber),
		HasStatus:         lo.Contains(present, ColStatus),
		HasUpdatedAt:      lo.Contains(present, ColUpdatedAt),
	}

	amount, ok := lo.Find(amountPriority, func(col string) bool { return lo.Contains(present, col) })
	if !ok {
		return ColumnPlan{}, fmt.Errorf("%w: invoices table has none of %v", xerrors.ErrSchemaConfig, amountPriority)
	}
	plan.AmountColumn = amount

	if date, ok := lo.Find(datePriority, func(col string) bool { return lo.Contains(present, col) }); ok && date != ColCreatedAt {
		plan.DateColumn = date
	}

	return plan, nil
}

// Draft carries the values written for a new invoice.
type Draft struct {
	SubscriptionID int64
	InvoiceNumber  string
	Amount         decimal.Decimal
	IssuedAt       time.Time
}

// Assignments returns the insert columns, in write order, and their values.
func (p ColumnPlan) Assignments(d Draft) ([]string, []any) {
	var (
		cols []string
		vals []any
	)
	add := func(col string, val any) {
		cols = append(cols, col)
		vals = append(vals, val)
	}

	if p.HasSubscriptionID {
		add(ColSubscriptionID, d.SubscriptionID)
	}
	if p.HasInvoiceNumber {
		add(ColInvoiceNumber, d.InvoiceNumber)
	}
	add(p.AmountColumn, d.Amount)
	if p.HasStatus {
		add(ColStatus, string(StatusDraft))
	}
	if p.DateColumn != "" {
		add(p.DateColumn, d.IssuedAt)
	}
	return cols, vals
}
