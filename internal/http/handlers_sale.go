package http

import (
	"net/http"
	"strconv"

	"ellas/internal/core"
	"ellas/internal/report"
)

// periodParam reads the period query parameter, defaulting to all periods,
// and rejects keys that parse to nothing.
func periodParam(r *http.Request) (string, error) {
	period := r.URL.Query().Get("period")
	if period == "" {
		return core.PeriodAll, nil
	}
	if period != core.PeriodAll {
		if _, err := core.ParsePeriod(period); err != nil {
			return "", err
		}
	}
	return period, nil
}

// saleView renders one sale with its settled state and the amount/profit
// attributable to the period.
func (s *Server) saleView(sale core.Sale, period string, now core.Date) (saleResponse, error) {
	amount, err := report.AmountForPeriod(sale, period, now)
	if err != nil {
		return saleResponse{}, err
	}
	profit, err := report.ProfitForPeriod(sale, period, now)
	if err != nil {
		return saleResponse{}, err
	}
	resp := buildSaleResponse(sale, report.IsFullySettled(sale, now))
	resp.PeriodAmount = amount.Cents
	resp.PeriodProfit = profit.Cents
	return resp, nil
}

func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sale, err := s.sales.CreateSale(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp, err := s.saleView(sale, core.PeriodAll, s.now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.flushSummaries(r.Context())
	writeJSON(w, http.StatusCreated, resp)
}

// handleListSales returns sorted sale cards. With a specific period every
// row carries the amount and profit falling in that period and rows with
// nothing due in it are dropped.
func (s *Server) handleListSales(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period")
		return
	}

	sales, err := s.sales.ListSales(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	now := s.now()
	report.SortSales(sales, now)

	out := make([]saleResponse, 0, len(sales))
	for _, sale := range sales {
		resp, err := s.saleView(sale, period, now)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if period != core.PeriodAll && resp.PeriodAmount == 0 {
			continue
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := s.sales.GetSale(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp, err := s.saleView(sale, core.PeriodAll, s.now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	if err := s.sales.DeleteSale(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.flushSummaries(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSaleInstallmentPaid(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 1 {
		writeError(w, http.StatusBadRequest, "invalid installment index")
		return
	}

	var req paidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	paidOn, err := req.toDate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.sales.SetInstallmentPaid(r.Context(), r.PathValue("id"), index, paidOn); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.flushSummaries(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
