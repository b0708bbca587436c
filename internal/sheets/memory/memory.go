// Package memory is an in-memory stand-in for the spreadsheet backup, used
// in tests and local development without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"ellas/internal/core"
)

type Store struct {
	mu       sync.Mutex
	sales    []core.Sale
	expenses []core.Expense
}

func New() *Store {
	return &Store{}
}

// AppendSale stores the sale and returns a synthetic row reference.
func (s *Store) AppendSale(_ context.Context, sale core.Sale) (string, error) {
	if err := sale.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales = append(s.sales, sale)
	return fmt.Sprintf("mem:sales:%d", len(s.sales)), nil
}

// AppendExpense stores the expense and returns a synthetic row reference.
func (s *Store) AppendExpense(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, e)
	return fmt.Sprintf("mem:expenses:%d", len(s.expenses)), nil
}

// DeleteRow drops the first stored record matching the descriptive fields.
func (s *Store) DeleteRow(_ context.Context, table, description, date string, amountCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if table == "sales" {
		for i, sale := range s.sales {
			if sale.CustomerName == description && sale.PurchaseDate.ISO() == date {
				s.sales = append(s.sales[:i], s.sales[i+1:]...)
				return nil
			}
		}
		return nil
	}
	for i, e := range s.expenses {
		if e.Description == description && e.Date.ISO() == date && e.Amount.Cents == amountCents {
			s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
			return nil
		}
	}
	return nil
}

// Sales returns a copy of the stored sales.
func (s *Store) Sales() []core.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Sale(nil), s.sales...)
}

// Expenses returns a copy of the stored expenses.
func (s *Store) Expenses() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.expenses...)
}
