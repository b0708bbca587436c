package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ellas/internal/core"
	"ellas/internal/report"
)

// handleSummary serves the aggregated overview for one period. The period
// query parameter takes a "2006-01" key or the all-periods sentinel and
// defaults to all periods. Results are cached per period key until the
// next write.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = core.PeriodAll
	}

	ctx := r.Context()
	if s.summaries != nil {
		if cached, ok := s.summaries.Get(ctx, period); ok {
			writeRawJSON(w, http.StatusOK, cached)
			return
		}
	}

	sales, err := s.sales.ListSales(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	expenses, err := s.expenses.ListExpenses(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	overview, err := report.BuildOverview(period, sales, expenses, s.now())
	if err != nil {
		if errors.Is(err, core.ErrInvalidDate) {
			writeError(w, http.StatusBadRequest, "invalid period")
			return
		}
		writeServiceError(w, r, err)
		return
	}

	body, err := json.Marshal(overview)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode summary", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if s.summaries != nil {
		s.summaries.Set(ctx, period, string(body))
	}
	writeRawJSON(w, http.StatusOK, string(body))
}
