package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"ellas/internal/amqp"
	"ellas/internal/core"
	"ellas/internal/retry"
	"ellas/internal/schedule"
)

func money(c int64) core.Money { return core.Money{Cents: c} }

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

// fakeStore implements SaleStore and ExpenseStore in memory.
type fakeStore struct {
	sales    map[string]core.Sale
	expenses map[string]core.Expense
	groups   map[string][]string
	nextID   int
	failures int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sales:    make(map[string]core.Sale),
		expenses: make(map[string]core.Expense),
		groups:   make(map[string][]string),
	}
}

func (f *fakeStore) fail() error {
	if f.failures > 0 {
		f.failures--
		return errors.New("transient")
	}
	return nil
}

func (f *fakeStore) id() string {
	f.nextID++
	return string(rune('a' + f.nextID - 1))
}

func (f *fakeStore) CreateSale(_ context.Context, s *core.Sale) error {
	if err := f.fail(); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = f.id()
	}
	f.sales[s.ID] = *s
	return nil
}

func (f *fakeStore) GetSale(_ context.Context, id string) (core.Sale, error) {
	s, ok := f.sales[id]
	if !ok {
		return core.Sale{}, errors.New("not found")
	}
	return s, nil
}

func (f *fakeStore) ListSales(context.Context) ([]core.Sale, error) {
	var out []core.Sale
	for _, s := range f.sales {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) DeleteSale(_ context.Context, id string) error {
	delete(f.sales, id)
	return nil
}

func (f *fakeStore) SetSaleInstallmentPaid(_ context.Context, saleID string, index int, paidOn *core.Date) error {
	s, ok := f.sales[saleID]
	if !ok {
		return errors.New("not found")
	}
	s.Installments[index-1].PaidOn = paidOn
	f.sales[saleID] = s
	return nil
}

func (f *fakeStore) CreateExpenseGroup(_ context.Context, rows []core.Expense) (string, error) {
	if err := f.fail(); err != nil {
		return "", err
	}
	groupID := "group-" + f.id()
	for i := range rows {
		rows[i].ID = f.id()
		rows[i].GroupID = groupID
		f.expenses[rows[i].ID] = rows[i]
		f.groups[groupID] = append(f.groups[groupID], rows[i].ID)
	}
	return groupID, nil
}

func (f *fakeStore) GetExpense(_ context.Context, id string) (core.Expense, error) {
	e, ok := f.expenses[id]
	if !ok {
		return core.Expense{}, errors.New("not found")
	}
	return e, nil
}

func (f *fakeStore) ListExpenses(context.Context) ([]core.Expense, error) {
	var out []core.Expense
	for _, e := range f.expenses {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeStore) ListExpenseGroup(_ context.Context, groupID string) ([]core.Expense, error) {
	ids, ok := f.groups[groupID]
	if !ok {
		return nil, errors.New("not found")
	}
	out := make([]core.Expense, len(ids))
	for i, id := range ids {
		out[i] = f.expenses[id]
	}
	return out, nil
}

func (f *fakeStore) UpdateExpense(_ context.Context, e core.Expense) error {
	if _, ok := f.expenses[e.ID]; !ok {
		return errors.New("not found")
	}
	f.expenses[e.ID] = e
	return nil
}

func (f *fakeStore) SetExpensePaid(_ context.Context, id string, paidOn *core.Date) error {
	e, ok := f.expenses[id]
	if !ok {
		return errors.New("not found")
	}
	e.PaidOn = paidOn
	f.expenses[id] = e
	return nil
}

func (f *fakeStore) DeleteExpenseGroup(_ context.Context, groupID string) error {
	for _, id := range f.groups[groupID] {
		delete(f.expenses, id)
	}
	delete(f.groups, groupID)
	return nil
}

type fakePublisher struct {
	messages []*amqp.RecordSyncMessage
}

func (f *fakePublisher) Publish(_ context.Context, msg *amqp.RecordSyncMessage) error {
	f.messages = append(f.messages, msg)
	return nil
}

func saleInput() SaleInput {
	return SaleInput{
		CustomerName:  "Dani",
		PurchaseDate:  core.NewDate(2024, 1, 10),
		PaymentDate:   core.NewDate(2024, 1, 15),
		PaymentMethod: core.PaymentInstallment,
		Products: []core.Product{
			{Ref: "B-01", Name: "Bolsa", PurchaseValue: money(10000), SaleValue: money(30000)},
		},
		Installments: 3,
		Cadence:      schedule.Monthly,
	}
}

func TestCreateSaleBuildsSchedule(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := NewSaleService(store, pub)
	svc.retry = fastRetry()

	sale, err := svc.CreateSale(context.Background(), saleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(sale.Installments) != 3 {
		t.Fatalf("installments = %d, want 3", len(sale.Installments))
	}
	var sum int64
	for _, in := range sale.Installments {
		sum += in.Amount.Cents
	}
	if sum != 30000 {
		t.Errorf("installments sum = %d, want 30000", sum)
	}
	if sale.Installments[1].DueDate.ISO() != "2024-02-15" {
		t.Errorf("due date 2 = %s", sale.Installments[1].DueDate.ISO())
	}
	if len(pub.messages) != 1 || pub.messages[0].Op != amqp.OpSync {
		t.Errorf("published = %+v", pub.messages)
	}
}

func TestCreateSaleAppliesOverrides(t *testing.T) {
	store := newFakeStore()
	svc := NewSaleService(store, &fakePublisher{})
	svc.retry = fastRetry()

	in := saleInput()
	in.Overrides = map[int]core.Money{0: money(15000)}
	sale, err := svc.CreateSale(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := []int64{15000, 7500, 7500}
	for i, w := range want {
		if sale.Installments[i].Amount.Cents != w {
			t.Fatalf("installment %d = %d, want %d", i, sale.Installments[i].Amount.Cents, w)
		}
	}
}

func TestCreateSaleRejectsOverDiscount(t *testing.T) {
	svc := NewSaleService(newFakeStore(), &fakePublisher{})
	svc.retry = fastRetry()

	in := saleInput()
	in.Discount = money(40000)
	if _, err := svc.CreateSale(context.Background(), in); !errors.Is(err, core.ErrInvalidAllocation) {
		t.Errorf("over-discount: got %v", err)
	}
}

func TestCreateSaleRetriesTransientFailure(t *testing.T) {
	store := newFakeStore()
	store.failures = 1
	svc := NewSaleService(store, &fakePublisher{})
	svc.retry = fastRetry()

	if _, err := svc.CreateSale(context.Background(), saleInput()); err != nil {
		t.Fatalf("create with one transient failure: %v", err)
	}
}

func TestDeleteSalePublishesRowData(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := NewSaleService(store, pub)
	svc.retry = fastRetry()

	sale, err := svc.CreateSale(context.Background(), saleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.DeleteSale(context.Background(), sale.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	last := pub.messages[len(pub.messages)-1]
	if last.Op != amqp.OpDelete || last.Description != "Dani" || last.AmountCents != 30000 {
		t.Errorf("delete message = %+v", last)
	}
}

func expenseInput() ExpenseInput {
	return ExpenseInput{
		Description:   "Tecido atacado",
		Category:      core.CategoryEstoque,
		Date:          core.NewDate(2024, 1, 5),
		Amount:        money(10000),
		PaymentMethod: core.ExpenseParcelado,
		Installments:  3,
	}
}

func TestCreateExpenseExpandsParcelado(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := NewExpenseService(store, pub)
	svc.retry = fastRetry()

	rows, err := svc.CreateExpense(context.Background(), expenseInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	// 100.00 over 3: 33.33 + 33.33 + 33.34, remainder on the last row.
	want := []int64{3333, 3333, 3334}
	for i, w := range want {
		if rows[i].Amount.Cents != w {
			t.Errorf("row %d amount = %d, want %d", i, rows[i].Amount.Cents, w)
		}
		if rows[i].Installment != i+1 {
			t.Errorf("row %d index = %d", i, rows[i].Installment)
		}
	}
	if rows[0].Period != "Janeiro 2024" || rows[2].Period != "Março 2024" {
		t.Errorf("periods = %s .. %s", rows[0].Period, rows[2].Period)
	}
	if rows[0].GroupID == "" || rows[0].GroupID != rows[2].GroupID {
		t.Errorf("group ids = %s, %s", rows[0].GroupID, rows[2].GroupID)
	}
	if len(pub.messages) != 3 {
		t.Errorf("published = %d messages, want 3", len(pub.messages))
	}
}

func TestCreateExpensePixSingleRow(t *testing.T) {
	svc := NewExpenseService(newFakeStore(), &fakePublisher{})
	svc.retry = fastRetry()

	in := expenseInput()
	in.PaymentMethod = core.ExpensePix
	in.Installments = 0
	rows, err := svc.CreateExpense(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(rows) != 1 || rows[0].Amount.Cents != 10000 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Period != "Janeiro 2024" {
		t.Errorf("period = %s", rows[0].Period)
	}
}

func TestCreateExpenseRejectsBadInstallmentCount(t *testing.T) {
	svc := NewExpenseService(newFakeStore(), &fakePublisher{})
	svc.retry = fastRetry()

	in := expenseInput()
	in.Installments = 1
	if _, err := svc.CreateExpense(context.Background(), in); !errors.Is(err, core.ErrInvalidInstallments) {
		t.Errorf("one installment: got %v", err)
	}
	in.Installments = 13
	if _, err := svc.CreateExpense(context.Background(), in); !errors.Is(err, core.ErrInvalidInstallments) {
		t.Errorf("thirteen installments: got %v", err)
	}
}

func TestDeleteGroupPublishesEveryRow(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := NewExpenseService(store, pub)
	svc.retry = fastRetry()

	rows, err := svc.CreateExpense(context.Background(), expenseInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	pub.messages = nil

	if err := svc.DeleteGroup(context.Background(), rows[0].GroupID); err != nil {
		t.Fatalf("delete group: %v", err)
	}
	if len(pub.messages) != 3 {
		t.Fatalf("published = %d messages, want 3", len(pub.messages))
	}
	for _, m := range pub.messages {
		if m.Op != amqp.OpDelete || m.Description != "Tecido atacado" {
			t.Errorf("message = %+v", m)
		}
	}
}

func TestSetPaid(t *testing.T) {
	store := newFakeStore()
	svc := NewExpenseService(store, &fakePublisher{})
	svc.retry = fastRetry()

	rows, err := svc.CreateExpense(context.Background(), expenseInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	d := core.NewDate(2024, 1, 20)
	if err := svc.SetPaid(context.Background(), rows[0].ID, &d); err != nil {
		t.Fatalf("set paid: %v", err)
	}
	got, _ := store.GetExpense(context.Background(), rows[0].ID)
	if got.PaidOn == nil {
		t.Error("row still unpaid")
	}
}
