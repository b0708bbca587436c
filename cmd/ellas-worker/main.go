package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"ellas/internal/amqp"
	"ellas/internal/config"
	applog "ellas/internal/log"
	"ellas/internal/sheets"
	"ellas/internal/sheets/google"
	"ellas/internal/sheets/memory"
	"ellas/internal/storage"
	"ellas/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(slog.LevelInfo, applog.ComponentWorker)
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var (
		saleWriter    sheets.SaleWriter
		expenseWriter sheets.ExpenseWriter
		rowDeleter    sheets.RowDeleter
	)
	switch cfg.BackupBackend {
	case "sheets":
		cli, err := google.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		saleWriter, expenseWriter, rowDeleter = cli, cli, cli
		logger.Info("Backup backend: Google Sheets", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	default:
		store := memory.New()
		saleWriter, expenseWriter, rowDeleter = store, store, store
		logger.Info("Backup backend: memory")
	}

	syncWorker := worker.NewSyncWorker(repo, saleWriter, expenseWriter, rowDeleter, cfg.SyncBatchSize)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err, "url", cfg.AMQPURL)
		os.Exit(1)
	}
	defer amqpClient.Close()
	logger.Info("AMQP connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.Consume(ctx, func(msg *amqp.RecordSyncMessage) error {
			return syncWorker.Handle(ctx, msg)
		})
	})

	// Periodic catch-up for records that never got a message, for example
	// writes made while the broker was down.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := syncWorker.ProcessPending(ctx); err != nil {
					logger.Error("Pending sync pass failed", "error", err)
				}
			}
		}
	})

	logger.Info("Sync worker started", "interval", cfg.SyncInterval, "batch_size", cfg.SyncBatchSize)
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
