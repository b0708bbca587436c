package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// Payment methods for sales.
	PaymentPix         PaymentMethod = "pix"
	PaymentInstallment PaymentMethod = "installment"

	// Payment methods for expenses (labels kept as the business uses them).
	ExpensePix       ExpensePayment = "PIX"
	ExpenseParcelado ExpensePayment = "Parcelado"
)

// Expense categories form a closed set.
const (
	CategoryEstoque     ExpenseCategory = "Estoque"
	CategoryEmbalagens  ExpenseCategory = "Embalagens"
	CategoryFornecedor  ExpenseCategory = "Fornecedor"
	CategoryOperacional ExpenseCategory = "Despesa Operacional"
	CategoryOutros      ExpenseCategory = "Outros"
)

const (
	MinExpenseInstallments = 2
	MaxExpenseInstallments = 12
)

type (
	PaymentMethod   string
	ExpensePayment  string
	ExpenseCategory string

	// Date is a calendar day at UTC midnight.
	Date struct {
		time.Time
	}

	// Product is one line item of a sale.
	Product struct {
		Ref           string
		Name          string
		PurchaseValue Money
		SaleValue     Money
	}

	// Sale is the aggregate root for a customer sale. Parcelado sales carry
	// the generated installment schedule; PIX sales settle in full on the
	// payment date.
	Sale struct {
		ID            string
		CustomerName  string
		PurchaseDate  Date
		PaymentDate   Date
		PaymentMethod PaymentMethod
		Discount      Money
		Advance       Money
		Products      []Product
		Installments  []SaleInstallment
	}

	// SaleInstallment is one dated slice of a sale's schedule as persisted.
	SaleInstallment struct {
		Index   int // 1-based
		Amount  Money
		DueDate Date
		PaidOn  *Date
	}

	// Expense is one payable row. A parcelado purchase is stored as N rows
	// sharing a generated GroupID; a PIX expense is a single-row group with
	// its own GroupID.
	Expense struct {
		ID            string
		GroupID       string
		Description   string
		Category      ExpenseCategory
		Date          Date
		Amount        Money
		PaymentMethod ExpensePayment
		Installments  int // total count, 0 for PIX
		Installment   int // 1-based index, 0 for PIX
		Period        string
		Note          string
		PaidOn        *Date
	}
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidAllocation    = errors.New("invalid allocation")
	ErrEmptyDescription     = errors.New("empty description")
	ErrEmptyCustomer        = errors.New("empty customer name")
	ErrNoProducts           = errors.New("sale has no products")
	ErrInvalidCategory      = errors.New("invalid expense category")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidInstallments  = errors.New("invalid installment count")
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "2006-01-02" string. Unparseable input fails with
// ErrInvalidDate instead of silently producing a zero date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t.UTC()}, nil
}

// AddMonths returns the date shifted by n calendar months.
func (d Date) AddMonths(n int) Date {
	return Date{Time: d.Time.AddDate(0, n, 0)}
}

// AddDays returns the date shifted by n days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// ISO renders the date as "2006-01-02".
func (d Date) ISO() string {
	return d.Time.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m PaymentMethod) Valid() bool {
	return m == PaymentPix || m == PaymentInstallment
}

func (m ExpensePayment) Valid() bool {
	return m == ExpensePix || m == ExpenseParcelado
}

func (c ExpenseCategory) Valid() bool {
	switch c {
	case CategoryEstoque, CategoryEmbalagens, CategoryFornecedor, CategoryOperacional, CategoryOutros:
		return true
	default:
		return false
	}
}

// Categories returns the closed category set in display order.
func Categories() []ExpenseCategory {
	return []ExpenseCategory{
		CategoryEstoque,
		CategoryEmbalagens,
		CategoryFornecedor,
		CategoryOperacional,
		CategoryOutros,
	}
}

// PurchaseTotal sums the purchase value of all products.
func (s Sale) PurchaseTotal() Money {
	var sum int64
	for _, p := range s.Products {
		sum += p.PurchaseValue.Cents
	}
	return Money{Cents: sum}
}

// SaleTotal sums the sale value of all products.
func (s Sale) SaleTotal() Money {
	var sum int64
	for _, p := range s.Products {
		sum += p.SaleValue.Cents
	}
	return Money{Cents: sum}
}

// Profit is sale total minus purchase total minus discount, across all
// line items.
func (s Sale) Profit() Money {
	return s.SaleTotal().Sub(s.PurchaseTotal()).Sub(s.Discount)
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Ref) == "" || strings.TrimSpace(p.Name) == "" {
		return ErrEmptyDescription
	}
	if err := p.PurchaseValue.Validate(); err != nil {
		return err
	}
	return p.SaleValue.Validate()
}

func (s Sale) Validate() error {
	if strings.TrimSpace(s.CustomerName) == "" {
		return ErrEmptyCustomer
	}
	if err := s.PurchaseDate.Validate(); err != nil {
		return err
	}
	if err := s.PaymentDate.Validate(); err != nil {
		return err
	}
	if !s.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	if len(s.Products) == 0 {
		return ErrNoProducts
	}
	for _, p := range s.Products {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	if err := s.Discount.Validate(); err != nil {
		return err
	}
	if err := s.Advance.Validate(); err != nil {
		return err
	}
	if s.PaymentMethod == PaymentInstallment {
		if len(s.Installments) == 0 {
			return ErrInvalidInstallments
		}
		for _, in := range s.Installments {
			if in.Amount.Cents <= 0 {
				return ErrInvalidAmount
			}
		}
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if !e.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	if e.PaymentMethod == ExpenseParcelado {
		if e.Installments < MinExpenseInstallments || e.Installments > MaxExpenseInstallments {
			return ErrInvalidInstallments
		}
		if e.Installment < 1 || e.Installment > e.Installments {
			return ErrInvalidInstallments
		}
	}
	return nil
}
