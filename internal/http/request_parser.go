package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ellas/internal/core"
	"ellas/internal/schedule"
	"ellas/internal/services"
)

const maxBodyBytes = 1 << 20 // 1MB

func decodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("decode request body: trailing data")
	}
	_, _ = io.Copy(io.Discard, body)
	return nil
}

type productRequest struct {
	Ref           string `json:"ref"`
	Name          string `json:"name"`
	PurchaseValue string `json:"purchase_value"`
	SaleValue     string `json:"sale_value"`
}

type overrideRequest struct {
	Index  int    `json:"index"` // 1-based
	Amount string `json:"amount"`
}

type createSaleRequest struct {
	CustomerName  string            `json:"customer_name"`
	PurchaseDate  string            `json:"purchase_date"`
	PaymentDate   string            `json:"payment_date"`
	PaymentMethod string            `json:"payment_method"`
	Discount      string            `json:"discount"`
	Advance       string            `json:"advance"`
	Products      []productRequest  `json:"products"`
	Installments  int               `json:"installments"`
	Cadence       string            `json:"cadence"`
	Overrides     []overrideRequest `json:"overrides"`
}

func (req createSaleRequest) toInput() (services.SaleInput, error) {
	in := services.SaleInput{
		CustomerName:  req.CustomerName,
		PaymentMethod: core.PaymentMethod(req.PaymentMethod),
		Installments:  req.Installments,
	}

	var err error
	if in.PurchaseDate, err = core.ParseDate(req.PurchaseDate); err != nil {
		return services.SaleInput{}, fmt.Errorf("purchase_date: %w", err)
	}
	if in.PaymentDate, err = core.ParseDate(req.PaymentDate); err != nil {
		return services.SaleInput{}, fmt.Errorf("payment_date: %w", err)
	}
	if in.Discount, err = parseOptionalAmount(req.Discount); err != nil {
		return services.SaleInput{}, fmt.Errorf("discount: %w", err)
	}
	if in.Advance, err = parseOptionalAmount(req.Advance); err != nil {
		return services.SaleInput{}, fmt.Errorf("advance: %w", err)
	}

	for i, p := range req.Products {
		product := core.Product{Ref: p.Ref, Name: p.Name}
		if product.PurchaseValue, err = parseAmount(p.PurchaseValue); err != nil {
			return services.SaleInput{}, fmt.Errorf("product %d purchase_value: %w", i+1, err)
		}
		if product.SaleValue, err = parseAmount(p.SaleValue); err != nil {
			return services.SaleInput{}, fmt.Errorf("product %d sale_value: %w", i+1, err)
		}
		in.Products = append(in.Products, product)
	}

	if in.PaymentMethod == core.PaymentInstallment {
		in.Cadence = schedule.Cadence(req.Cadence)
		if in.Cadence == "" {
			in.Cadence = schedule.Monthly
		}
		if len(req.Overrides) > 0 {
			in.Overrides = make(map[int]core.Money, len(req.Overrides))
			for _, o := range req.Overrides {
				amount, err := parseAmount(o.Amount)
				if err != nil {
					return services.SaleInput{}, fmt.Errorf("override %d amount: %w", o.Index, err)
				}
				in.Overrides[o.Index-1] = amount
			}
		}
	}

	return in, nil
}

type createExpenseRequest struct {
	Description   string `json:"description"`
	Category      string `json:"category"`
	Date          string `json:"date"`
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	Installments  int    `json:"installments"`
	Note          string `json:"note"`
}

func (req createExpenseRequest) toInput() (services.ExpenseInput, error) {
	in := services.ExpenseInput{
		Description:   req.Description,
		Category:      core.ExpenseCategory(req.Category),
		PaymentMethod: core.ExpensePayment(req.PaymentMethod),
		Installments:  req.Installments,
		Note:          req.Note,
	}

	var err error
	if in.Date, err = core.ParseDate(req.Date); err != nil {
		return services.ExpenseInput{}, fmt.Errorf("date: %w", err)
	}
	if in.Amount, err = parseAmount(req.Amount); err != nil {
		return services.ExpenseInput{}, fmt.Errorf("amount: %w", err)
	}
	return in, nil
}

// updateExpenseRequest carries partial updates: absent fields stay
// unchanged, a present empty note or period clears the stored value.
type updateExpenseRequest struct {
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Date        *string `json:"date"`
	Amount      *string `json:"amount"`
	Period      *string `json:"period"`
	Note        *string `json:"note"`
}

type paidRequest struct {
	// PaidOn empty clears the paid state.
	PaidOn string `json:"paid_on"`
}

func (req paidRequest) toDate() (*core.Date, error) {
	if req.PaidOn == "" {
		return nil, nil
	}
	d, err := core.ParseDate(req.PaidOn)
	if err != nil {
		return nil, fmt.Errorf("paid_on: %w", err)
	}
	return &d, nil
}

func parseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

// parseOptionalAmount treats an absent value as zero.
func parseOptionalAmount(s string) (core.Money, error) {
	if s == "" {
		return core.Money{}, nil
	}
	return parseAmount(s)
}
