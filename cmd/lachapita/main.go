package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/lachapita/lachapita/internal/app"
	"github.com/lachapita/lachapita/internal/backup"
	"github.com/lachapita/lachapita/internal/catalog"
	"github.com/lachapita/lachapita/internal/directory"
	"github.com/lachapita/lachapita/internal/ledger"
	"github.com/lachapita/lachapita/internal/observability"
	"github.com/lachapita/lachapita/internal/platform/db"
	"github.com/lachapita/lachapita/internal/reports"
	"github.com/lachapita/lachapita/internal/shared"
	"github.com/lachapita/lachapita/internal/trade"
	"github.com/lachapita/lachapita/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	validate := validator.New()
	auditLogger := shared.NewAuditLogger(pool)
	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, auditLogger, reportsCache)
	catalogHandler := catalog.NewHandler(logger, catalogService, validate)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger, reportsCache)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, validate)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo, reportsCache, cfg.Currency)
	reportsHandler := reports.NewHandler(logger, reportsService)

	tradeRepo := trade.NewRepository(pool)
	tradeService := trade.NewService(tradeRepo, ledgerService, auditLogger, reportsCache)
	tradeHandler := trade.NewHandler(logger, tradeService, validate)

	directoryRepo := directory.NewRepository(pool)
	directoryService := directory.NewService(directoryRepo, auditLogger)
	directoryHandler := directory.NewHandler(logger, directoryService, validate)

	backupService := backup.NewService(pool, cfg.BackupDir)
	backupHandler := backup.NewHandler(logger, backupService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Pool:             pool,
		CatalogHandler:   catalogHandler,
		LedgerHandler:    ledgerHandler,
		TradeHandler:     tradeHandler,
		DirectoryHandler: directoryHandler,
		ReportsHandler:   reportsHandler,
		BackupHandler:    backupHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
