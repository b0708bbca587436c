package http

import (
	"net/http"

	"ellas/internal/core"
	"ellas/internal/report"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := s.expenses.CreateExpense(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.flushSummaries(r.Context())
	writeJSON(w, http.StatusCreated, buildExpenseResponses(rows))
}

// handleListExpenses returns sorted payable cards, one per parcel group,
// each with its settled flag and the amount due in the requested period.
// With a specific period, groups with nothing due in it are dropped.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period")
		return
	}

	rows, err := s.expenses.ListExpenses(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	now := s.now()
	groups := report.GroupExpenses(rows)
	report.SortExpenseGroups(groups, now)

	out := make([]expenseGroupResponse, 0, len(groups))
	for _, g := range groups {
		amount, err := report.ExpenseAmountForPeriod(g, period)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if period != core.PeriodAll && amount.Cents == 0 {
			continue
		}
		out = append(out, buildExpenseGroupResponse(g, report.ExpenseGroupSettled(g, now), amount))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetExpenseGroup(w http.ResponseWriter, r *http.Request) {
	rows, err := s.expenses.GetGroup(r.Context(), r.PathValue("groupID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	amount, err := report.ExpenseAmountForPeriod(rows, core.PeriodAll)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, buildExpenseGroupResponse(rows, report.ExpenseGroupSettled(rows, s.now()), amount))
}

// handleUpdateExpense merges the submitted fields onto the stored row.
// Group membership and installment position are immutable.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req updateExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	existing, err := s.expenses.GetExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}
	if req.Category != nil {
		existing.Category = core.ExpenseCategory(*req.Category)
	}
	if req.Date != nil {
		d, err := core.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date: "+err.Error())
			return
		}
		existing.Date = d
	}
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "amount: "+err.Error())
			return
		}
		existing.Amount = amount
	}
	if req.Period != nil {
		existing.Period = *req.Period
	}
	if req.Note != nil {
		existing.Note = *req.Note
	}

	if err := s.expenses.UpdateExpense(r.Context(), existing); err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.flushSummaries(r.Context())
	writeJSON(w, http.StatusOK, buildExpenseResponse(existing))
}

func (s *Server) handleExpensePaid(w http.ResponseWriter, r *http.Request) {
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

	if err := s.expenses.SetPaid(r.Context(), r.PathValue("id"), paidOn); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.flushSummaries(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteExpenseGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.expenses.DeleteGroup(r.Context(), r.PathValue("groupID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.flushSummaries(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
