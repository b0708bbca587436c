package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ellas/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func money(c int64) core.Money { return core.Money{Cents: c} }

func sampleSale() core.Sale {
	paid := core.NewDate(2024, 2, 16)
	return core.Sale{
		CustomerName:  "Carla",
		PurchaseDate:  core.NewDate(2024, 1, 10),
		PaymentDate:   core.NewDate(2024, 1, 15),
		PaymentMethod: core.PaymentInstallment,
		Discount:      money(1000),
		Advance:       money(5000),
		Products: []core.Product{
			{Ref: "B-01", Name: "Bolsa couro", PurchaseValue: money(12000), SaleValue: money(30000)},
			{Ref: "C-02", Name: "Carteira", PurchaseValue: money(4000), SaleValue: money(10000)},
		},
		Installments: []core.SaleInstallment{
			{Index: 1, Amount: money(11334), DueDate: core.NewDate(2024, 1, 15)},
			{Index: 2, Amount: money(11333), DueDate: core.NewDate(2024, 2, 15), PaidOn: &paid},
			{Index: 3, Amount: money(11333), DueDate: core.NewDate(2024, 3, 15)},
		},
	}
}

func TestSaleRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := sampleSale()
	if err := repo.CreateSale(ctx, &want); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if want.ID == "" {
		t.Fatal("sale id not generated")
	}

	got, err := repo.GetSale(ctx, want.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if got.CustomerName != want.CustomerName || got.PaymentMethod != want.PaymentMethod {
		t.Errorf("sale fields = %+v", got)
	}
	if got.Discount != want.Discount || got.Advance != want.Advance {
		t.Errorf("money fields = discount %d advance %d", got.Discount.Cents, got.Advance.Cents)
	}
	if len(got.Products) != 2 {
		t.Fatalf("products = %d, want 2", len(got.Products))
	}
	if len(got.Installments) != 3 {
		t.Fatalf("installments = %d, want 3", len(got.Installments))
	}
	for i, in := range got.Installments {
		w := want.Installments[i]
		if in.Index != w.Index || in.Amount != w.Amount || in.DueDate.ISO() != w.DueDate.ISO() {
			t.Errorf("installment %d = %+v, want %+v", i, in, w)
		}
	}
	if got.Installments[1].PaidOn == nil || got.Installments[1].PaidOn.ISO() != "2024-02-16" {
		t.Errorf("paid_on not preserved: %+v", got.Installments[1].PaidOn)
	}
	if got.Installments[0].PaidOn != nil || got.Installments[2].PaidOn != nil {
		t.Error("unpaid installments came back paid")
	}
}

func TestSetSaleInstallmentPaid(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := sampleSale()
	if err := repo.CreateSale(ctx, &s); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	d := core.NewDate(2024, 1, 20)
	if err := repo.SetSaleInstallmentPaid(ctx, s.ID, 1, &d); err != nil {
		t.Fatalf("set paid: %v", err)
	}
	got, _ := repo.GetSale(ctx, s.ID)
	if got.Installments[0].PaidOn == nil {
		t.Fatal("installment 1 still unpaid")
	}

	// Clearing works too.
	if err := repo.SetSaleInstallmentPaid(ctx, s.ID, 1, nil); err != nil {
		t.Fatalf("clear paid: %v", err)
	}
	got, _ = repo.GetSale(ctx, s.ID)
	if got.Installments[0].PaidOn != nil {
		t.Fatal("installment 1 still paid after clear")
	}

	if err := repo.SetSaleInstallmentPaid(ctx, s.ID, 99, &d); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing installment: got %v", err)
	}
}

func TestDeleteSaleCascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := sampleSale()
	if err := repo.CreateSale(ctx, &s); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if err := repo.DeleteSale(ctx, s.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	if _, err := repo.GetSale(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted sale still loads: %v", err)
	}
	if err := repo.DeleteSale(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: got %v", err)
	}

	var n int
	if err := repo.DB().QueryRow(`SELECT COUNT(*) FROM sale_installments`).Scan(&n); err != nil {
		t.Fatalf("count installments: %v", err)
	}
	if n != 0 {
		t.Errorf("orphan installments = %d", n)
	}
}

func sampleExpenseRows() []core.Expense {
	return []core.Expense{
		{
			Description:   "Tecido atacado",
			Category:      core.CategoryEstoque,
			Date:          core.NewDate(2024, 2, 5),
			Amount:        money(15000),
			PaymentMethod: core.ExpenseParcelado,
			Installments:  2,
			Installment:   1,
			Period:        "Fevereiro 2024",
			Note:          "fornecedor novo",
		},
		{
			Description:   "Tecido atacado",
			Category:      core.CategoryEstoque,
			Date:          core.NewDate(2024, 2, 5),
			Amount:        money(15000),
			PaymentMethod: core.ExpenseParcelado,
			Installments:  2,
			Installment:   2,
			Period:        "Março 2024",
		},
	}
}

func TestExpenseGroupRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	groupID, err := repo.CreateExpenseGroup(ctx, sampleExpenseRows())
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	rows, err := repo.ListExpenseGroup(ctx, groupID)
	if err != nil {
		t.Fatalf("list group: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	for i, e := range rows {
		if e.GroupID != groupID {
			t.Errorf("row %d group = %s", i, e.GroupID)
		}
		if e.Installment != i+1 {
			t.Errorf("row %d installment = %d", i, e.Installment)
		}
	}
	if rows[0].Period != "Fevereiro 2024" || rows[1].Period != "Março 2024" {
		t.Errorf("periods = %s, %s", rows[0].Period, rows[1].Period)
	}
	if rows[0].Note != "fornecedor novo" {
		t.Errorf("note = %q", rows[0].Note)
	}
}

func TestSetExpensePaid(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	groupID, err := repo.CreateExpenseGroup(ctx, sampleExpenseRows())
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	rows, _ := repo.ListExpenseGroup(ctx, groupID)

	d := core.NewDate(2024, 2, 10)
	if err := repo.SetExpensePaid(ctx, rows[0].ID, &d); err != nil {
		t.Fatalf("set paid: %v", err)
	}
	got, err := repo.GetExpense(ctx, rows[0].ID)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if got.PaidOn == nil || got.PaidOn.ISO() != "2024-02-10" {
		t.Errorf("paid_on = %+v", got.PaidOn)
	}

	if err := repo.SetExpensePaid(ctx, rows[0].ID, nil); err != nil {
		t.Fatalf("clear paid: %v", err)
	}
	got, _ = repo.GetExpense(ctx, rows[0].ID)
	if got.PaidOn != nil {
		t.Error("paid_on survived clear")
	}
}

func TestLegacyNoteMarkerFallback(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Force the legacy branch: paid dates travel inside the note field.
	repo.hasPaidOn = false

	groupID, err := repo.CreateExpenseGroup(ctx, sampleExpenseRows())
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	rows, _ := repo.ListExpenseGroup(ctx, groupID)

	d := core.NewDate(2024, 2, 10)
	if err := repo.SetExpensePaid(ctx, rows[0].ID, &d); err != nil {
		t.Fatalf("set paid: %v", err)
	}
	got, err := repo.GetExpense(ctx, rows[0].ID)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if got.PaidOn == nil || got.PaidOn.ISO() != "2024-02-10" {
		t.Errorf("paid_on via note = %+v", got.PaidOn)
	}
	// The marker never leaks into the display note.
	if got.Note != "fornecedor novo" {
		t.Errorf("note = %q", got.Note)
	}
}

func TestUpdateExpense(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	groupID, err := repo.CreateExpenseGroup(ctx, sampleExpenseRows())
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	rows, _ := repo.ListExpenseGroup(ctx, groupID)

	e := rows[0]
	e.Amount = money(16000)
	e.Note = "preço ajustado"
	if err := repo.UpdateExpense(ctx, e); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := repo.GetExpense(ctx, e.ID)
	if got.Amount.Cents != 16000 || got.Note != "preço ajustado" {
		t.Errorf("updated row = %+v", got)
	}

	e.ID = "missing"
	if err := repo.UpdateExpense(ctx, e); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing update: got %v", err)
	}
}

func TestDeleteExpenseGroup(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	groupID, err := repo.CreateExpenseGroup(ctx, sampleExpenseRows())
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := repo.DeleteExpenseGroup(ctx, groupID); err != nil {
		t.Fatalf("delete group: %v", err)
	}
	if _, err := repo.ListExpenseGroup(ctx, groupID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted group still loads: %v", err)
	}
}

func TestPendingSyncLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := sampleSale()
	if err := repo.CreateSale(ctx, &s); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	ids, err := repo.PendingSync(ctx, "sales", 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(ids) != 1 || ids[0] != s.ID {
		t.Fatalf("pending ids = %v", ids)
	}

	if err := repo.MarkSynced(ctx, "sales", s.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	ids, _ = repo.PendingSync(ctx, "sales", 10)
	if len(ids) != 0 {
		t.Errorf("still pending after sync: %v", ids)
	}

	if _, err := repo.PendingSync(ctx, "products", 10); err == nil {
		t.Error("unknown table accepted")
	}
}
