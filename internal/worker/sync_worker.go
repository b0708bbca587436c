// Package worker moves record changes from SQLite to the spreadsheet
// backup, driven by AMQP messages with a periodic catch-up pass for
// anything the broker lost.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"ellas/internal/amqp"
	"ellas/internal/sheets"
	"ellas/internal/storage"
)

// SyncWorker applies record change notifications to the backup spreadsheet.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	sales     sheets.SaleWriter
	expenses  sheets.ExpenseWriter
	deleter   sheets.RowDeleter
	batchSize int
}

func NewSyncWorker(st *storage.SQLiteRepository, sales sheets.SaleWriter, expenses sheets.ExpenseWriter, deleter sheets.RowDeleter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   st,
		sales:     sales,
		expenses:  expenses,
		deleter:   deleter,
		batchSize: batchSize,
	}
}

// Handle dispatches one message from the broker.
func (w *SyncWorker) Handle(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	switch msg.Op {
	case amqp.OpSync:
		return w.handleSync(ctx, msg)
	case amqp.OpDelete:
		return w.handleDelete(ctx, msg)
	default:
		return fmt.Errorf("unknown message op %q", msg.Op)
	}
}

func (w *SyncWorker) handleSync(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "table", msg.Table, "id", msg.ID)

	if err := w.syncRecord(ctx, msg.Table, msg.ID); err != nil {
		return err
	}
	if err := w.storage.MarkSynced(ctx, msg.Table, msg.ID); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

func (w *SyncWorker) syncRecord(ctx context.Context, table, id string) error {
	switch table {
	case "sales":
		sale, err := w.storage.GetSale(ctx, id)
		if err != nil {
			return fmt.Errorf("get sale from storage: %w", err)
		}
		if _, err := w.sales.AppendSale(ctx, sale); err != nil {
			return fmt.Errorf("append sale to backup: %w", err)
		}
	case "expenses":
		expense, err := w.storage.GetExpense(ctx, id)
		if err != nil {
			return fmt.Errorf("get expense from storage: %w", err)
		}
		if _, err := w.expenses.AppendExpense(ctx, expense); err != nil {
			return fmt.Errorf("append expense to backup: %w", err)
		}
	default:
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

func (w *SyncWorker) handleDelete(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	slog.InfoContext(ctx, "Processing delete message", "table", msg.Table, "id", msg.ID)

	if w.deleter == nil {
		slog.WarnContext(ctx, "No row deleter configured, skipping backup deletion", "id", msg.ID)
		return nil
	}
	err := w.deleter.DeleteRow(ctx, msg.Table, msg.Description, msg.Date, msg.AmountCents)
	if err != nil {
		return fmt.Errorf("delete backup row: %w", err)
	}
	return nil
}

// ProcessPending backs up records still flagged pending. This is the
// catch-up path for messages the broker lost.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	for _, table := range []string{"sales", "expenses"} {
		ids, err := w.storage.PendingSync(ctx, table, w.batchSize)
		if err != nil {
			return fmt.Errorf("get pending %s: %w", table, err)
		}
		if len(ids) == 0 {
			continue
		}
		slog.InfoContext(ctx, "Processing pending records", "table", table, "count", len(ids))

		for _, id := range ids {
			if err := w.syncRecord(ctx, table, id); err != nil {
				slog.ErrorContext(ctx, "Failed to sync pending record",
					"table", table, "id", id, "error", err)
				if err := w.storage.MarkSyncError(ctx, table, id); err != nil {
					slog.ErrorContext(ctx, "Failed to mark sync error",
						"table", table, "id", id, "error", err)
				}
				continue
			}
			if err := w.storage.MarkSynced(ctx, table, id); err != nil {
				slog.ErrorContext(ctx, "Failed to mark synced",
					"table", table, "id", id, "error", err)
			}
		}
	}
	return nil
}
