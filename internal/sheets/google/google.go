// Package google backs sales and expenses up to a Google Spreadsheet, one
// sheet per table.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"ellas/internal/core"
	ports "ellas/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	salesSheet    string
	expensesSheet string
}

// Ensure interface conformance
var (
	_ ports.SaleWriter    = (*Client)(nil)
	_ ports.ExpenseWriter = (*Client)(nil)
	_ ports.RowDeleter    = (*Client)(nil)
)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus service account credentials via
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional sheet names: GOOGLE_SALES_SHEET_NAME (default "Vendas") and
// GOOGLE_EXPENSES_SHEET_NAME (default "APagar").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	salesSheet := strings.TrimSpace(os.Getenv("GOOGLE_SALES_SHEET_NAME"))
	if salesSheet == "" {
		salesSheet = "Vendas"
	}
	expensesSheet := strings.TrimSpace(os.Getenv("GOOGLE_EXPENSES_SHEET_NAME"))
	if expensesSheet == "" {
		expensesSheet = "APagar"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		salesSheet:    salesSheet,
		expensesSheet: expensesSheet,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// AppendSale writes one sale as a row: date, customer, method, totals and a
// compact installment summary.
func (c *Client) AppendSale(ctx context.Context, s core.Sale) (string, error) {
	if err := s.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	row := []any{
		s.PurchaseDate.ISO(),
		s.CustomerName,
		string(s.PaymentMethod),
		s.SaleTotal().Reais(),
		s.Discount.Reais(),
		s.Advance.Reais(),
		s.Profit().Reais(),
		installmentSummary(s.Installments),
	}
	return c.appendRow(ctx, c.salesSheet, row)
}

// AppendExpense writes one expense row: date, description, category, amount,
// period and paid state.
func (c *Client) AppendExpense(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	paid := ""
	if e.PaidOn != nil {
		paid = e.PaidOn.ISO()
	}
	row := []any{
		e.Date.ISO(),
		e.Description,
		string(e.Category),
		e.Amount.Reais(),
		string(e.PaymentMethod),
		fmt.Sprintf("%d/%d", e.Installment, e.Installments),
		e.Period,
		paid,
	}
	return c.appendRow(ctx, c.expensesSheet, row)
}

func (c *Client) appendRow(ctx context.Context, sheet string, row []any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", sheet, err)
	}
	nextRow := len(resp.Values) + 1

	dataRange := fmt.Sprintf("%s!A%d", sheet, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append row to sheet %s: %w", sheet, err)
	}

	ref := fmt.Sprintf("%s!A%d", sheet, nextRow)
	slog.InfoContext(ctx, "Appended backup row", "sheet", sheet, "ref", ref)
	return ref, nil
}

// DeleteRow locates a backup row by its descriptive fields and clears it.
// The source record is already gone, so a missed match is logged rather
// than failed.
func (c *Client) DeleteRow(ctx context.Context, table, description, date string, amountCents int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	sheet := c.expensesSheet
	if table == "sales" {
		sheet = c.salesSheet
	}

	rng := fmt.Sprintf("%s!A:H", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	want := core.Money{Cents: amountCents}.Reais()
	for i, row := range resp.Values {
		if !rowMatches(row, description, date, want) {
			continue
		}
		clearRange := fmt.Sprintf("%s!A%d:H%d", sheet, i+1, i+1)
		_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("clear row %s: %w", clearRange, err)
		}
		slog.InfoContext(ctx, "Cleared backup row", "sheet", sheet, "row", i+1)
		return nil
	}

	slog.WarnContext(ctx, "Backup row not found for deletion",
		"sheet", sheet,
		"description", description,
		"date", date)
	return nil
}

func rowMatches(row []any, description, date string, amount float64) bool {
	if len(row) < 2 {
		return false
	}
	gotDate, _ := row[0].(string)
	gotDesc, _ := row[1].(string)
	if gotDate != date || gotDesc != description {
		return false
	}
	// The amount column position differs per sheet; match on any cell.
	for _, cell := range row {
		if v, ok := cell.(float64); ok && v == amount {
			return true
		}
		if s, ok := cell.(string); ok && s == fmt.Sprintf("%.2f", amount) {
			return true
		}
	}
	return false
}

func installmentSummary(plan []core.SaleInstallment) string {
	if len(plan) == 0 {
		return ""
	}
	parts := make([]string, len(plan))
	for i, in := range plan {
		parts[i] = fmt.Sprintf("%s %s", in.DueDate.ISO(), core.FormatBRL(in.Amount.Cents))
	}
	return strings.Join(parts, "; ")
}
