package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ellas/internal/core"
	"ellas/internal/retry"
	"ellas/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeRawJSON writes an already-marshaled JSON document, used for cached
// summaries.
func writeRawJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps domain and infrastructure errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *retry.PersistenceError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidAllocation),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrEmptyCustomer),
		errors.Is(err, core.ErrNoProducts),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrInvalidPaymentMethod),
		errors.Is(err, core.ErrInvalidInstallments):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &pe):
		slog.ErrorContext(r.Context(), "Persistence failure", "op", pe.Op, "attempts", pe.Attempts, "error", pe.Err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		slog.ErrorContext(r.Context(), "Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type installmentResponse struct {
	Index     int    `json:"index"`
	Amount    int64  `json:"amount"`
	Formatted string `json:"formatted"`
	DueDate   string `json:"due_date"`
	PaidOn    string `json:"paid_on,omitempty"`
}

type productResponse struct {
	Ref           string `json:"ref,omitempty"`
	Name          string `json:"name"`
	PurchaseValue int64  `json:"purchase_value"`
	SaleValue     int64  `json:"sale_value"`
}

type saleResponse struct {
	ID             string                `json:"id"`
	CustomerName   string                `json:"customer_name"`
	PurchaseDate   string                `json:"purchase_date"`
	PaymentDate    string                `json:"payment_date"`
	PaymentMethod  string                `json:"payment_method"`
	Discount       int64                 `json:"discount"`
	Advance        int64                 `json:"advance"`
	Total          int64                 `json:"total"`
	TotalFormatted string                `json:"total_formatted"`
	Profit         int64                 `json:"profit"`
	PeriodAmount   int64                 `json:"period_amount"`
	PeriodProfit   int64                 `json:"period_profit"`
	Products       []productResponse     `json:"products"`
	Installments   []installmentResponse `json:"installments,omitempty"`
	Settled        bool                  `json:"settled"`
}

func buildSaleResponse(s core.Sale, settled bool) saleResponse {
	resp := saleResponse{
		ID:             s.ID,
		CustomerName:   s.CustomerName,
		PurchaseDate:   s.PurchaseDate.ISO(),
		PaymentDate:    s.PaymentDate.ISO(),
		PaymentMethod:  string(s.PaymentMethod),
		Discount:       s.Discount.Cents,
		Advance:        s.Advance.Cents,
		Total:          s.SaleTotal().Cents,
		TotalFormatted: core.FormatBRL(s.SaleTotal().Cents),
		Profit:         s.Profit().Cents,
		Settled:        settled,
	}
	for _, p := range s.Products {
		resp.Products = append(resp.Products, productResponse{
			Ref:           p.Ref,
			Name:          p.Name,
			PurchaseValue: p.PurchaseValue.Cents,
			SaleValue:     p.SaleValue.Cents,
		})
	}
	for _, inst := range s.Installments {
		ir := installmentResponse{
			Index:     inst.Index,
			Amount:    inst.Amount.Cents,
			Formatted: core.FormatBRL(inst.Amount.Cents),
			DueDate:   inst.DueDate.ISO(),
		}
		if inst.PaidOn != nil {
			ir.PaidOn = inst.PaidOn.ISO()
		}
		resp.Installments = append(resp.Installments, ir)
	}
	return resp
}

type expenseResponse struct {
	ID              string `json:"id"`
	GroupID         string `json:"group_id"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	Date            string `json:"date"`
	Amount          int64  `json:"amount"`
	AmountFormatted string `json:"amount_formatted"`
	PaymentMethod   string `json:"payment_method"`
	Installments    int    `json:"installments,omitempty"`
	Installment     int    `json:"installment,omitempty"`
	Period          string `json:"period,omitempty"`
	Note            string `json:"note,omitempty"`
	PaidOn          string `json:"paid_on,omitempty"`
}

func buildExpenseResponse(e core.Expense) expenseResponse {
	resp := expenseResponse{
		ID:              e.ID,
		GroupID:         e.GroupID,
		Description:     e.Description,
		Category:        string(e.Category),
		Date:            e.Date.ISO(),
		Amount:          e.Amount.Cents,
		AmountFormatted: core.FormatBRL(e.Amount.Cents),
		PaymentMethod:   string(e.PaymentMethod),
		Installments:    e.Installments,
		Installment:     e.Installment,
		Period:          e.Period,
		Note:            e.Note,
	}
	if e.PaidOn != nil {
		resp.PaidOn = e.PaidOn.ISO()
	}
	return resp
}

func buildExpenseResponses(rows []core.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(rows))
	for _, e := range rows {
		out = append(out, buildExpenseResponse(e))
	}
	return out
}

// expenseGroupResponse is one payable card: the rows of a parcel group plus
// its settled state and the amount falling in the requested period.
type expenseGroupResponse struct {
	GroupID               string            `json:"group_id"`
	Settled               bool              `json:"settled"`
	PeriodAmount          int64             `json:"period_amount"`
	PeriodAmountFormatted string            `json:"period_amount_formatted"`
	Rows                  []expenseResponse `json:"rows"`
}

func buildExpenseGroupResponse(group []core.Expense, settled bool, periodAmount core.Money) expenseGroupResponse {
	return expenseGroupResponse{
		GroupID:               group[0].GroupID,
		Settled:               settled,
		PeriodAmount:          periodAmount.Cents,
		PeriodAmountFormatted: core.FormatBRL(periodAmount.Cents),
		Rows:                  buildExpenseResponses(group),
	}
}
