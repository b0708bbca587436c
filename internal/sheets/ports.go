// Package sheets defines the ports for the spreadsheet backup of sales and
// expenses.
package sheets

import (
	"context"

	"ellas/internal/core"
)

// Ports for outbound adapters.
type (
	SaleWriter interface {
		AppendSale(ctx context.Context, s core.Sale) (rowRef string, err error)
	}

	ExpenseWriter interface {
		AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	// RowDeleter removes a backup row located by its descriptive fields,
	// since the source record no longer exists when the delete arrives.
	RowDeleter interface {
		DeleteRow(ctx context.Context, table, description, date string, amountCents int64) error
	}
)
