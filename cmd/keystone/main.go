package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/keystone-erp/keystone-erp/internal/app"
	"github.com/keystone-erp/keystone-erp/internal/bankrec"
	"github.com/keystone-erp/keystone-erp/internal/budget"
	"github.com/keystone-erp/keystone-erp/internal/gl"
	"github.com/keystone-erp/keystone-erp/internal/lifecycle"
	"github.com/keystone-erp/keystone-erp/internal/numbering"
	"github.com/keystone-erp/keystone-erp/internal/observability"
	"github.com/keystone-erp/keystone-erp/internal/payments"
	"github.com/keystone-erp/keystone-erp/internal/platform/cache"
	"github.com/keystone-erp/keystone-erp/internal/platform/db"
	"github.com/keystone-erp/keystone-erp/internal/shared"
	"github.com/keystone-erp/keystone-erp/internal/stock"
	"github.com/keystone-erp/keystone-erp/internal/vouchers"
	"github.com/keystone-erp/keystone-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, account cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	machine := lifecycle.NewMachine()

	numberingRepo := numbering.NewRepository(dbpool)
	numberingService := numbering.NewService(numbering.NewRegistry(numbering.DefaultConfig()), numberingRepo)

	glRepo := gl.NewRepository(dbpool)
	glService := gl.NewService(glRepo, auditLogger)
	if redisClient != nil {
		glService.WithCache(gl.NewAccountCache(redisClient, cfg.AccountCacheTTL))
	}
	glHandler := gl.NewHandler(logger, glService)

	stockRepo := stock.NewRepository(dbpool)
	stockService := stock.NewService(stockRepo, auditLogger)
	stockService.WithAllowNegativeStock(cfg.AllowNegativeStock)
	stockHandler := stock.NewHandler(logger, stockService)

	paymentsRepo := payments.NewRepository(dbpool)
	paymentsService := payments.NewService(paymentsRepo, auditLogger)
	paymentsHandler := payments.NewHandler(logger, paymentsService)

	bankrecRepo := bankrec.NewRepository(dbpool)
	bankrecService := bankrec.NewService(bankrecRepo, auditLogger)
	bankrecService.WithMetrics(metrics)
	bankrecHandler := bankrec.NewHandler(logger, bankrecService)

	budgetRepo := budget.NewRepository(dbpool)
	budgetService := budget.NewService(budgetRepo)
	budgetHandler := budget.NewHandler(logger, budgetService)

	coordinator := vouchers.NewCoordinator(
		vouchers.NewUnitOfWork(dbpool),
		vouchers.NewRepository(dbpool),
		machine,
		numberingService,
		glService,
		stockService,
		paymentsService,
		auditLogger,
		logger,
	)
	coordinator.WithMetrics(metrics)
	vouchersHandler := vouchers.NewHandler(logger, coordinator)
	vouchersHandler.WithIdempotency(idempotencyStore)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		GLHandler:       glHandler,
		StockHandler:    stockHandler,
		PaymentsHandler: paymentsHandler,
		BankRecHandler:  bankrecHandler,
		BudgetHandler:   budgetHandler,
		VouchersHandler: vouchersHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
