// Package http exposes the bookkeeping JSON API.
package http

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ellas/internal/cache"
	"ellas/internal/core"
	"ellas/internal/services"
)

// SaleAPI is the sale service surface the handlers need.
type SaleAPI interface {
	CreateSale(ctx context.Context, in services.SaleInput) (core.Sale, error)
	GetSale(ctx context.Context, id string) (core.Sale, error)
	ListSales(ctx context.Context) ([]core.Sale, error)
	DeleteSale(ctx context.Context, id string) error
	SetInstallmentPaid(ctx context.Context, saleID string, index int, paidOn *core.Date) error
}

// ExpenseAPI is the expense service surface the handlers need.
type ExpenseAPI interface {
	CreateExpense(ctx context.Context, in services.ExpenseInput) ([]core.Expense, error)
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	GetGroup(ctx context.Context, groupID string) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	SetPaid(ctx context.Context, id string, paidOn *core.Date) error
	DeleteGroup(ctx context.Context, groupID string) error
}

type Server struct {
	*http.Server

	sales     SaleAPI
	expenses  ExpenseAPI
	summaries cache.Summaries
	db        *sql.DB
	limiter   *rateLimiter

	// now is injectable for deterministic aggregation in tests.
	now func() core.Date
}

// NewServer wires the API routes. db may be nil; readiness then only
// covers the process itself.
func NewServer(addr string, sales SaleAPI, expenses ExpenseAPI, summaries cache.Summaries, db *sql.DB) *Server {
	s := &Server{
		sales:     sales,
		expenses:  expenses,
		summaries: summaries,
		db:        db,
		limiter:   newRateLimiter(),
		now: func() core.Date {
			t := time.Now().UTC()
			return core.NewDate(t.Year(), int(t.Month()), t.Day())
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/sales", s.withMiddleware(s.handleCreateSale))
	mux.HandleFunc("GET /api/sales", s.withMiddleware(s.handleListSales))
	mux.HandleFunc("GET /api/sales/{id}", s.withMiddleware(s.handleGetSale))
	mux.HandleFunc("DELETE /api/sales/{id}", s.withMiddleware(s.handleDeleteSale))
	mux.HandleFunc("PATCH /api/sales/{id}/installments/{index}/paid", s.withMiddleware(s.handleSaleInstallmentPaid))

	mux.HandleFunc("POST /api/expenses", s.withMiddleware(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses", s.withMiddleware(s.handleListExpenses))
	mux.HandleFunc("GET /api/expenses/group/{groupID}", s.withMiddleware(s.handleGetExpenseGroup))
	mux.HandleFunc("PUT /api/expenses/{id}", s.withMiddleware(s.handleUpdateExpense))
	mux.HandleFunc("PATCH /api/expenses/{id}/paid", s.withMiddleware(s.handleExpensePaid))
	mux.HandleFunc("DELETE /api/expenses/group/{groupID}", s.withMiddleware(s.handleDeleteExpenseGroup))

	mux.HandleFunc("GET /api/summary", s.withMiddleware(s.handleSummary))

	s.Server = &http.Server{
		Addr:           addr,
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	return s
}

// Shutdown stops the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stopCleanup()
	return s.Server.Shutdown(ctx)
}

// withMiddleware adds request ids, request logging, security headers and
// write rate limiting.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if isWrite(r.Method) && !s.limiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// flushSummaries drops every cached summary after a write, since any
// period may have changed.
func (s *Server) flushSummaries(ctx context.Context) {
	if s.summaries != nil {
		s.summaries.Flush(ctx)
	}
}
