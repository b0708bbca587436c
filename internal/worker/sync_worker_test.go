package worker

import (
	"context"
	"path/filepath"
	"testing"

	"ellas/internal/amqp"
	"ellas/internal/core"
	"ellas/internal/sheets/memory"
	"ellas/internal/storage"
)

func newWorker(t *testing.T) (*SyncWorker, *storage.SQLiteRepository, *memory.Store) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	backup := memory.New()
	return NewSyncWorker(repo, backup, backup, backup, 10), repo, backup
}

func seedExpense(t *testing.T, repo *storage.SQLiteRepository) core.Expense {
	t.Helper()
	rows := []core.Expense{{
		Description:   "Embalagens",
		Category:      core.CategoryEmbalagens,
		Date:          core.NewDate(2024, 3, 5),
		Amount:        core.Money{Cents: 4200},
		PaymentMethod: core.ExpensePix,
	}}
	groupID, err := repo.CreateExpenseGroup(context.Background(), rows)
	if err != nil {
		t.Fatalf("seed expense: %v", err)
	}
	saved, err := repo.ListExpenseGroup(context.Background(), groupID)
	if err != nil {
		t.Fatalf("load seeded expense: %v", err)
	}
	return saved[0]
}

func TestHandleSyncMessage(t *testing.T) {
	w, repo, backup := newWorker(t)
	ctx := context.Background()
	e := seedExpense(t, repo)

	if err := w.Handle(ctx, amqp.NewSyncMessage("expenses", e.ID)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := backup.Expenses(); len(got) != 1 || got[0].Description != "Embalagens" {
		t.Errorf("backup = %+v", got)
	}

	// The record is no longer pending.
	ids, err := repo.PendingSync(ctx, "expenses", 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("still pending: %v", ids)
	}
}

func TestHandleDeleteMessage(t *testing.T) {
	w, repo, backup := newWorker(t)
	ctx := context.Background()
	e := seedExpense(t, repo)

	if err := w.Handle(ctx, amqp.NewSyncMessage("expenses", e.ID)); err != nil {
		t.Fatalf("sync: %v", err)
	}
	msg := amqp.NewDeleteMessage("expenses", e.ID, e.Description, e.Date.ISO(), e.Amount.Cents)
	if err := w.Handle(ctx, msg); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := backup.Expenses(); len(got) != 0 {
		t.Errorf("backup row survived delete: %+v", got)
	}
}

func TestHandleUnknownOp(t *testing.T) {
	w, _, _ := newWorker(t)
	msg := &amqp.RecordSyncMessage{Op: "compact", Table: "expenses", ID: "x"}
	if err := w.Handle(context.Background(), msg); err == nil {
		t.Error("unknown op accepted")
	}
}

func TestProcessPendingCatchesUp(t *testing.T) {
	w, repo, backup := newWorker(t)
	ctx := context.Background()
	seedExpense(t, repo)

	sale := core.Sale{
		CustomerName:  "Elisa",
		PurchaseDate:  core.NewDate(2024, 1, 10),
		PaymentDate:   core.NewDate(2024, 1, 15),
		PaymentMethod: core.PaymentPix,
		Products: []core.Product{
			{Ref: "B-01", Name: "Bolsa", PurchaseValue: core.Money{Cents: 10000}, SaleValue: core.Money{Cents: 25000}},
		},
	}
	if err := repo.CreateSale(ctx, &sale); err != nil {
		t.Fatalf("seed sale: %v", err)
	}

	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if len(backup.Sales()) != 1 || len(backup.Expenses()) != 1 {
		t.Errorf("backup = %d sales, %d expenses", len(backup.Sales()), len(backup.Expenses()))
	}

	// A second pass finds nothing to do.
	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(backup.Sales()) != 1 || len(backup.Expenses()) != 1 {
		t.Error("second pass duplicated rows")
	}
}
