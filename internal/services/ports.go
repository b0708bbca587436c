// Package services orchestrates domain operations across storage and the
// sync broker. Writes land in SQLite first; the broker publish is
// best-effort and never fails the request.
package services

import (
	"context"

	"ellas/internal/amqp"
	"ellas/internal/core"
)

// SaleStore is the storage surface the sale service needs.
type SaleStore interface {
	CreateSale(ctx context.Context, s *core.Sale) error
	GetSale(ctx context.Context, id string) (core.Sale, error)
	ListSales(ctx context.Context) ([]core.Sale, error)
	DeleteSale(ctx context.Context, id string) error
	SetSaleInstallmentPaid(ctx context.Context, saleID string, index int, paidOn *core.Date) error
}

// ExpenseStore is the storage surface the expense service needs.
type ExpenseStore interface {
	CreateExpenseGroup(ctx context.Context, rows []core.Expense) (string, error)
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	ListExpenseGroup(ctx context.Context, groupID string) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	SetExpensePaid(ctx context.Context, id string, paidOn *core.Date) error
	DeleteExpenseGroup(ctx context.Context, groupID string) error
}

// Publisher sends record change notifications to the sync worker.
type Publisher interface {
	Publish(ctx context.Context, msg *amqp.RecordSyncMessage) error
}
