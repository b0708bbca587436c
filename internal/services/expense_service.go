package services

import (
	"context"
	"fmt"
	"log/slog"

	"ellas/internal/amqp"
	"ellas/internal/core"
	"ellas/internal/retry"
)

// ExpenseInput registers one payable purchase. A parcelado purchase is
// expanded into one row per installment, all sharing a generated group id.
type ExpenseInput struct {
	Description   string
	Category      core.ExpenseCategory
	Date          core.Date
	Amount        core.Money
	PaymentMethod core.ExpensePayment
	Installments  int
	Note          string
}

// ExpenseService orchestrates expense operations across SQLite and AMQP.
type ExpenseService struct {
	store     ExpenseStore
	publisher Publisher
	retry     retry.Policy
}

func NewExpenseService(store ExpenseStore, publisher Publisher) *ExpenseService {
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		retry:     retry.Default(),
	}
}

// CreateExpense expands the input into rows, persists them as one group and
// notifies the sync worker for each row.
func (s *ExpenseService) CreateExpense(ctx context.Context, in ExpenseInput) ([]core.Expense, error) {
	rows, err := expandExpense(in)
	if err != nil {
		return nil, err
	}

	var groupID string
	err = s.retry.Do(ctx, "create expense group", func(ctx context.Context) error {
		var err error
		groupID, err = s.store.CreateExpenseGroup(ctx, rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	saved, err := s.store.ListExpenseGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	for _, e := range saved {
		s.publish(ctx, e.ID)
	}
	return saved, nil
}

// expandExpense turns one purchase into its persisted rows. A PIX expense
// is a single row; a parcelado purchase splits the total with the rounding
// remainder on the last row and advancing period labels.
func expandExpense(in ExpenseInput) ([]core.Expense, error) {
	base := core.Expense{
		Description:   in.Description,
		Category:      in.Category,
		Date:          in.Date,
		PaymentMethod: in.PaymentMethod,
		Note:          in.Note,
	}

	if in.PaymentMethod == core.ExpensePix {
		base.Amount = in.Amount
		base.Period = core.PeriodOf(in.Date).Label()
		if err := base.Validate(); err != nil {
			return nil, err
		}
		return []core.Expense{base}, nil
	}

	if in.Installments < core.MinExpenseInstallments || in.Installments > core.MaxExpenseInstallments {
		return nil, core.ErrInvalidInstallments
	}
	if in.Amount.Cents <= 0 {
		return nil, core.ErrInvalidAmount
	}

	share := core.DivideCents(in.Amount.Cents, in.Installments)
	period := core.PeriodOf(in.Date)
	rows := make([]core.Expense, in.Installments)
	for i := 0; i < in.Installments; i++ {
		e := base
		e.Amount = core.Money{Cents: share}
		if i == in.Installments-1 {
			e.Amount.Cents += in.Amount.Cents - share*int64(in.Installments)
		}
		e.Installments = in.Installments
		e.Installment = i + 1
		e.Period = period.Label()
		period = period.Next()
		if err := e.Validate(); err != nil {
			return nil, err
		}
		rows[i] = e
	}
	return rows, nil
}

// ListExpenses returns all expense rows.
func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	var out []core.Expense
	err := s.retry.Do(ctx, "list expenses", func(ctx context.Context) error {
		var err error
		out, err = s.store.ListExpenses(ctx)
		return err
	})
	return out, err
}

// GetExpense returns one row by id.
func (s *ExpenseService) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	var out core.Expense
	err := s.retry.Do(ctx, "get expense", func(ctx context.Context) error {
		var err error
		out, err = s.store.GetExpense(ctx, id)
		return err
	})
	return out, err
}

// GetGroup returns one group's rows in installment order.
func (s *ExpenseService) GetGroup(ctx context.Context, groupID string) ([]core.Expense, error) {
	var out []core.Expense
	err := s.retry.Do(ctx, "get expense group", func(ctx context.Context) error {
		var err error
		out, err = s.store.ListExpenseGroup(ctx, groupID)
		return err
	})
	return out, err
}

// UpdateExpense rewrites one row's mutable fields.
func (s *ExpenseService) UpdateExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	err := s.retry.Do(ctx, "update expense", func(ctx context.Context) error {
		return s.store.UpdateExpense(ctx, e)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, e.ID)
	return nil
}

// SetPaid toggles one row's paid date.
func (s *ExpenseService) SetPaid(ctx context.Context, id string, paidOn *core.Date) error {
	err := s.retry.Do(ctx, "set expense paid", func(ctx context.Context) error {
		return s.store.SetExpensePaid(ctx, id, paidOn)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, id)
	return nil
}

// DeleteGroup removes a whole group and tells the worker to drop each
// backup row.
func (s *ExpenseService) DeleteGroup(ctx context.Context, groupID string) error {
	rows, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	err = s.retry.Do(ctx, "delete expense group", func(ctx context.Context) error {
		return s.store.DeleteExpenseGroup(ctx, groupID)
	})
	if err != nil {
		return err
	}

	for _, e := range rows {
		s.publishDelete(ctx, e)
	}
	return nil
}

func (s *ExpenseService) publish(ctx context.Context, id string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Publisher not available, skipping sync message", "id", id)
		return
	}
	if err := s.publisher.Publish(ctx, amqp.NewSyncMessage("expenses", id)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "error", err)
	}
}

func (s *ExpenseService) publishDelete(ctx context.Context, e core.Expense) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Publisher not available, skipping delete message", "id", e.ID)
		return
	}
	msg := amqp.NewDeleteMessage("expenses", e.ID, e.Description, e.Date.ISO(), e.Amount.Cents)
	if err := s.publisher.Publish(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message", "id", e.ID, "error", err)
	}
}

// Closer pairs the resources a service owns so main can shut them down
// together.
type Closer struct {
	Store     interface{ Close() error }
	Publisher interface{ Close() error }
}

// Close closes storage and broker connections, aggregating failures.
func (c Closer) Close() error {
	var errs []error
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close services: %v", errs)
	}
	return nil
}
