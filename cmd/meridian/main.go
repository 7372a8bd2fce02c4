package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-books/meridian/internal/app"
	"github.com/meridian-books/meridian/internal/ledger/accounts"
	"github.com/meridian-books/meridian/internal/ledger/checks"
	"github.com/meridian-books/meridian/internal/ledger/posting"
	"github.com/meridian-books/meridian/internal/ledger/reconcile"
	"github.com/meridian-books/meridian/internal/ledger/statements"
	"github.com/meridian-books/meridian/internal/platform/cache"
	"github.com/meridian-books/meridian/internal/platform/db"
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

	// Redis is optional; without it the status cache runs disabled.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, status cache disabled", slog.Any("error", err))
			redisClient = nil
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
		}
	}
	statusCache := cache.NewStore(redisClient, cfg.StatusCacheTTL)

	accountsRepo := accounts.NewRepository(dbpool)
	accountsService := accounts.NewService(accountsRepo, logger)
	accountsHandler := accounts.NewHandler(logger, accountsService)

	postingRepo := posting.NewRepository(dbpool)
	postingService := posting.NewService(postingRepo, logger)
	postingHandler := posting.NewHandler(logger, postingService)

	checksRepo := checks.NewRepository(dbpool)
	checksService := checks.NewService(checksRepo, logger)
	checksHandler := checks.NewHandler(logger, checksService)

	statementsRepo := statements.NewRepository(dbpool)
	statementsService := statements.NewService(statementsRepo, logger)
	statementsHandler := statements.NewHandler(logger, statementsService)

	reconcileRepo := reconcile.NewRepository(dbpool)
	reconcileService := reconcile.NewService(reconcileRepo, logger)
	reconcileHandler := reconcile.NewHandler(logger, reconcileService, statusCache, reconcile.Defaults{
		AmountTolerance: cfg.Tolerance(),
		DateWindowDays:  cfg.ReconcileWindowDays,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AccountsHandler:   accountsHandler,
		PostingHandler:    postingHandler,
		ChecksHandler:     checksHandler,
		StatementsHandler: statementsHandler,
		ReconcileHandler:  reconcileHandler,
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
