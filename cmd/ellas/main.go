package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ellas/internal/amqp"
	"ellas/internal/cache"
	"ellas/internal/config"
	apphttp "ellas/internal/http"
	applog "ellas/internal/log"
	"ellas/internal/services"
	"ellas/internal/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := applog.New(slog.LevelInfo, applog.ComponentApp)
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
	logger.Info("Database ready", "path", cfg.SQLiteDBPath)

	// AMQP is best effort: without a broker the API still works, records
	// stay pending and the worker catches up once the broker returns.
	var publisher services.Publisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, sync notifications disabled", "error", err)
	} else {
		publisher = amqpClient
		defer amqpClient.Close()
		logger.Info("AMQP connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	saleSvc := services.NewSaleService(repo, publisher)
	expenseSvc := services.NewExpenseService(repo, publisher)

	manager := cache.NewManager()
	var summaries cache.Summaries
	if cfg.RedisAddr != "" {
		redis := cache.NewRedis(cfg.RedisAddr, cfg.CacheTTL)
		if err := redis.Ping(context.Background()); err != nil {
			logger.Error("Redis unavailable", "error", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		defer redis.Close()
		summaries = redis
		logger.Info("Summary cache on Redis", "addr", cfg.RedisAddr)
	} else {
		mem := cache.NewMemory(cfg.CacheSize, cfg.CacheTTL)
		manager.Register(mem)
		summaries = mem
		logger.Info("Summary cache in memory", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	}
	manager.StartCleanup(time.Minute)
	defer manager.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, saleSvc, expenseSvc, summaries, repo.DB())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting ellas server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
