package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lumapos/lumapos/internal/app"
	"github.com/lumapos/lumapos/internal/catalog"
	"github.com/lumapos/lumapos/internal/damages"
	"github.com/lumapos/lumapos/internal/entitlements"
	"github.com/lumapos/lumapos/internal/observability"
	"github.com/lumapos/lumapos/internal/platform/cache"
	"github.com/lumapos/lumapos/internal/platform/db"
	"github.com/lumapos/lumapos/internal/productusage"
	"github.com/lumapos/lumapos/internal/purchases"
	"github.com/lumapos/lumapos/internal/reports"
	"github.com/lumapos/lumapos/internal/sales"
	"github.com/lumapos/lumapos/internal/shared"
	"github.com/lumapos/lumapos/internal/stock"
	"github.com/lumapos/lumapos/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{
		MaxConns:        cfg.PGMaxConns,
		MaxConnLifetime: cfg.PGConnLifetime,
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, stock cache disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idemStore := shared.NewIdempotencyStore(pool)

	catalogService := catalog.NewService(catalog.NewRepository(pool), auditLogger)

	var stockCache stock.CachePort
	if redisClient != nil {
		stockCache = stock.NewCache(redisClient, cfg.StockCacheTTL)
	}
	stockService := stock.NewService(stock.NewRepository(pool), stockCache)

	entitlementsService := entitlements.NewService(entitlements.NewRepository(pool), catalogService, auditLogger, metrics)
	purchasesService := purchases.NewService(purchases.NewRepository(pool), catalogService, stockService, auditLogger, idemStore, logger)
	salesService := sales.NewService(sales.NewRepository(pool), catalogService, stockService, auditLogger, idemStore, logger)
	damagesService := damages.NewService(damages.NewRepository(pool), catalogService, stockService, auditLogger, logger)
	usageService := productusage.NewService(productusage.NewRepository(pool), catalogService, stockService, auditLogger, logger)
	reportsService := reports.NewService(catalogService, stockService, reports.NewRepository(pool))

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Warn("jobs client unavailable", slog.Any("error", err))
	}
	defer func() {
		if jobsClient != nil {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}
	}()
	jobHandler := jobs.NewHandler(asynq.NewInspector(redisOpts), jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		CatalogHandler:      catalog.NewHandler(logger, catalogService),
		StockHandler:        stock.NewHandler(logger, stockService),
		EntitlementsHandler: entitlements.NewHandler(logger, entitlementsService),
		PurchasesHandler:    purchases.NewHandler(logger, purchasesService),
		SalesHandler:        sales.NewHandler(logger, salesService),
		DamagesHandler:      damages.NewHandler(logger, damagesService),
		ProductUsageHandler: productusage.NewHandler(logger, usageService),
		ReportsHandler:      reports.NewHandler(logger, reportsService),
		JobHandler:          jobHandler,
		Metrics:             metrics,
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
