// Package storage persists sales and payable expenses in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"ellas/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// SQLiteRepository is the storage collaborator for sales and expenses.
// All writes happen inside transactions so an installment plan is persisted
// atomically with its sale.
type SQLiteRepository struct {
	db *sql.DB

	// hasPaidOn records whether the expenses table carries the paid_on
	// column. Probed once at open; when false the paid date is encoded as
	// a marker inside the note field.
	hasPaidOn bool
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath,
// applies migrations and probes the schema.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	repo.hasPaidOn, err = probePaidOnColumn(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("probe expenses schema: %w", err)
	}

	return repo, nil
}

// probePaidOnColumn checks the expenses table for the paid_on column so the
// legacy note-marker branch is chosen once instead of on every write.
func probePaidOnColumn(db *sql.DB) (bool, error) {
	rows, err := db.Query("PRAGMA table_info(expenses)")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == "paid_on" {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// DB exposes the pool for health checks.
func (r *SQLiteRepository) DB() *sql.DB { return r.db }

// CreateSale persists a sale with its products and installment schedule in
// one transaction. A missing ID is generated.
func (r *SQLiteRepository) CreateSale(ctx context.Context, s *core.Sale) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, customer_name, purchase_date, payment_date, payment_method, discount_cents, advance_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.CustomerName, s.PurchaseDate.ISO(), s.PaymentDate.ISO(),
		string(s.PaymentMethod), s.Discount.Cents, s.Advance.Cents)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}

	for _, p := range s.Products {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO products (sale_id, ref, name, purchase_cents, sale_cents)
			VALUES (?, ?, ?, ?, ?)`,
			s.ID, p.Ref, p.Name, p.PurchaseValue.Cents, p.SaleValue.Cents)
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
	}

	for _, in := range s.Installments {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_installments (sale_id, idx, amount_cents, due_date, paid_on)
			VALUES (?, ?, ?, ?, ?)`,
			s.ID, in.Index, in.Amount.Cents, in.DueDate.ISO(), dateOrNull(in.PaidOn))
		if err != nil {
			return fmt.Errorf("insert installment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sale: %w", err)
	}

	slog.InfoContext(ctx, "Sale saved",
		"id", s.ID,
		"customer", s.CustomerName,
		"products", len(s.Products),
		"installments", len(s.Installments))
	return nil
}

// GetSale loads one sale with products and installments.
func (r *SQLiteRepository) GetSale(ctx context.Context, id string) (core.Sale, error) {
	var (
		s                         core.Sale
		purchaseDate, paymentDate string
		method                    string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_name, purchase_date, payment_date, payment_method, discount_cents, advance_cents
		FROM sales WHERE id = ?`, id).
		Scan(&s.ID, &s.CustomerName, &purchaseDate, &paymentDate, &method, &s.Discount.Cents, &s.Advance.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Sale{}, fmt.Errorf("sale %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Sale{}, fmt.Errorf("select sale: %w", err)
	}
	s.PaymentMethod = core.PaymentMethod(method)
	if s.PurchaseDate, err = core.ParseDate(purchaseDate); err != nil {
		return core.Sale{}, fmt.Errorf("sale %s purchase_date: %w", id, err)
	}
	if s.PaymentDate, err = core.ParseDate(paymentDate); err != nil {
		return core.Sale{}, fmt.Errorf("sale %s payment_date: %w", id, err)
	}

	if s.Products, err = r.saleProducts(ctx, id); err != nil {
		return core.Sale{}, err
	}
	if s.Installments, err = r.saleInstallments(ctx, id); err != nil {
		return core.Sale{}, err
	}
	return s, nil
}

func (r *SQLiteRepository) saleProducts(ctx context.Context, saleID string) ([]core.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ref, name, purchase_cents, sale_cents
		FROM products WHERE sale_id = ? ORDER BY id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var out []core.Product
	for rows.Next() {
		var p core.Product
		if err := rows.Scan(&p.Ref, &p.Name, &p.PurchaseValue.Cents, &p.SaleValue.Cents); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) saleInstallments(ctx context.Context, saleID string) ([]core.SaleInstallment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT idx, amount_cents, due_date, paid_on
		FROM sale_installments WHERE sale_id = ? ORDER BY idx`, saleID)
	if err != nil {
		return nil, fmt.Errorf("select installments: %w", err)
	}
	defer rows.Close()

	var out []core.SaleInstallment
	for rows.Next() {
		var (
			in      core.SaleInstallment
			dueDate string
			paidOn  sql.NullString
		)
		if err := rows.Scan(&in.Index, &in.Amount.Cents, &dueDate, &paidOn); err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		if in.DueDate, err = core.ParseDate(dueDate); err != nil {
			return nil, fmt.Errorf("installment due_date: %w", err)
		}
		if in.PaidOn, err = nullDate(paidOn); err != nil {
			return nil, fmt.Errorf("installment paid_on: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// ListSales returns all sales, newest purchase first.
func (r *SQLiteRepository) ListSales(ctx context.Context) ([]core.Sale, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM sales ORDER BY purchase_date DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan sale id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]core.Sale, 0, len(ids))
	for _, id := range ids {
		s, err := r.GetSale(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// DeleteSale removes a sale; products and installments cascade.
func (r *SQLiteRepository) DeleteSale(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete sale rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sale %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetSaleInstallmentPaid sets or clears the paid-on date of one installment.
func (r *SQLiteRepository) SetSaleInstallmentPaid(ctx context.Context, saleID string, index int, paidOn *core.Date) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sale_installments SET paid_on = ? WHERE sale_id = ? AND idx = ?`,
		dateOrNull(paidOn), saleID, index)
	if err != nil {
		return fmt.Errorf("update installment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update installment rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sale %s installment %d: %w", saleID, index, ErrNotFound)
	}
	return nil
}

// CreateExpenseGroup persists a parcelado purchase as one row per
// installment, all sharing a generated group id, in one transaction. A PIX
// expense is a single-row group.
func (r *SQLiteRepository) CreateExpenseGroup(ctx context.Context, rows []core.Expense) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("create expense group: %w", core.ErrInvalidAllocation)
	}
	groupID := uuid.NewString()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range rows {
		e := &rows[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.GroupID = groupID

		note := e.Note
		var paidOn any
		if r.hasPaidOn {
			paidOn = dateOrNull(e.PaidOn)
		} else if e.PaidOn != nil {
			note = core.EncodePaidOnNote(note, *e.PaidOn)
		}

		if r.hasPaidOn {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO expenses (id, group_id, description, category, date, amount_cents, payment_method, installments, installment, period, note, paid_on)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, e.GroupID, e.Description, string(e.Category), e.Date.ISO(), e.Amount.Cents,
				string(e.PaymentMethod), e.Installments, e.Installment, e.Period, note, paidOn)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO expenses (id, group_id, description, category, date, amount_cents, payment_method, installments, installment, period, note)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, e.GroupID, e.Description, string(e.Category), e.Date.ISO(), e.Amount.Cents,
				string(e.PaymentMethod), e.Installments, e.Installment, e.Period, note)
		}
		if err != nil {
			return "", fmt.Errorf("insert expense: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit expense group: %w", err)
	}

	slog.InfoContext(ctx, "Expense group saved",
		"group_id", groupID,
		"rows", len(rows),
		"description", rows[0].Description)
	return groupID, nil
}

// GetExpense loads one expense row.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	query := expenseSelect(r.hasPaidOn) + ` WHERE id = ?`
	e, err := r.scanExpense(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("select expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns all expense rows, newest date first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	query := expenseSelect(r.hasPaidOn) + ` ORDER BY date DESC, group_id, installment`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := r.scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListExpenseGroup returns the rows of one group in installment order.
func (r *SQLiteRepository) ListExpenseGroup(ctx context.Context, groupID string) ([]core.Expense, error) {
	query := expenseSelect(r.hasPaidOn) + ` WHERE group_id = ? ORDER BY installment`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("select expense group: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := r.scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("expense group %s: %w", groupID, ErrNotFound)
	}
	return out, nil
}

// UpdateExpense rewrites the mutable fields of one expense row.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	note := e.Note
	if !r.hasPaidOn && e.PaidOn != nil {
		note = core.EncodePaidOnNote(note, *e.PaidOn)
	}

	var (
		res sql.Result
		err error
	)
	if r.hasPaidOn {
		res, err = r.db.ExecContext(ctx, `
			UPDATE expenses
			SET description = ?, category = ?, date = ?, amount_cents = ?, period = ?, note = ?, paid_on = ?, sync_status = 'pending'
			WHERE id = ?`,
			e.Description, string(e.Category), e.Date.ISO(), e.Amount.Cents, e.Period, note, dateOrNull(e.PaidOn), e.ID)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE expenses
			SET description = ?, category = ?, date = ?, amount_cents = ?, period = ?, note = ?, sync_status = 'pending'
			WHERE id = ?`,
			e.Description, string(e.Category), e.Date.ISO(), e.Amount.Cents, e.Period, note, e.ID)
	}
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update expense rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", e.ID, ErrNotFound)
	}
	return nil
}

// SetExpensePaid sets or clears one expense row's paid date. On a legacy
// schema without the paid_on column the date is carried in the note marker.
func (r *SQLiteRepository) SetExpensePaid(ctx context.Context, id string, paidOn *core.Date) error {
	if r.hasPaidOn {
		res, err := r.db.ExecContext(ctx, `
			UPDATE expenses SET paid_on = ?, sync_status = 'pending' WHERE id = ?`,
			dateOrNull(paidOn), id)
		if err != nil {
			return fmt.Errorf("update expense paid_on: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update expense rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("expense %s: %w", id, ErrNotFound)
		}
		return nil
	}

	e, err := r.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	note := core.StripPaidOnNote(e.Note)
	if paidOn != nil {
		note = core.EncodePaidOnNote(note, *paidOn)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE expenses SET note = ?, sync_status = 'pending' WHERE id = ?`, note, id)
	if err != nil {
		return fmt.Errorf("update expense note: %w", err)
	}
	return nil
}

// DeleteExpenseGroup removes every row of one group.
func (r *SQLiteRepository) DeleteExpenseGroup(ctx context.Context, groupID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE group_id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("delete expense group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense group rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense group %s: %w", groupID, ErrNotFound)
	}
	return nil
}

// PendingSync lists record ids in a table still waiting for the backup
// sync. The batch cap keeps catch-up passes bounded.
func (r *SQLiteRepository) PendingSync(ctx context.Context, table string, limit int) ([]string, error) {
	if table != "sales" && table != "expenses" {
		return nil, fmt.Errorf("pending sync: unknown table %q", table)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM `+table+` WHERE sync_status = 'pending' ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending %s: %w", table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkSynced flags a record as backed up.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, table, id string) error {
	return r.setSyncStatus(ctx, table, id, "synced")
}

// MarkSyncError flags a record whose backup failed so it is retried later.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, table, id string) error {
	return r.setSyncStatus(ctx, table, id, "error")
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, table, id, status string) error {
	if table != "sales" && table != "expenses" {
		return fmt.Errorf("set sync status: unknown table %q", table)
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE `+table+` SET sync_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update %s sync status: %w", table, err)
	}
	return nil
}

func expenseSelect(hasPaidOn bool) string {
	if hasPaidOn {
		return `SELECT id, group_id, description, category, date, amount_cents, payment_method, installments, installment, period, note, paid_on FROM expenses`
	}
	return `SELECT id, group_id, description, category, date, amount_cents, payment_method, installments, installment, period, note FROM expenses`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e      core.Expense
		date   string
		cat    string
		method string
		paidOn sql.NullString
	)
	dest := []any{&e.ID, &e.GroupID, &e.Description, &cat, &date, &e.Amount.Cents,
		&method, &e.Installments, &e.Installment, &e.Period, &e.Note}
	if r.hasPaidOn {
		dest = append(dest, &paidOn)
	}
	if err := row.Scan(dest...); err != nil {
		return core.Expense{}, err
	}
	e.Category = core.ExpenseCategory(cat)
	e.PaymentMethod = core.ExpensePayment(method)

	var err error
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, fmt.Errorf("expense date: %w", err)
	}
	if r.hasPaidOn {
		if e.PaidOn, err = nullDate(paidOn); err != nil {
			return core.Expense{}, fmt.Errorf("expense paid_on: %w", err)
		}
	} else if d, ok := core.ExtractPaidOnNote(e.Note); ok {
		e.PaidOn = &d
		e.Note = core.StripPaidOnNote(e.Note)
	}
	return e, nil
}

func dateOrNull(d *core.Date) any {
	if d == nil {
		return nil
	}
	return d.ISO()
}

func nullDate(s sql.NullString) (*core.Date, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := core.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
