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

	"github.com/odyssey-erp/quotewizard/internal/app"
	"github.com/odyssey-erp/quotewizard/internal/drafts"
	draftshttp "github.com/odyssey-erp/quotewizard/internal/drafts/http"
	"github.com/odyssey-erp/quotewizard/internal/observability"
	"github.com/odyssey-erp/quotewizard/internal/platform/cache"
	"github.com/odyssey-erp/quotewizard/internal/platform/db"
	"github.com/odyssey-erp/quotewizard/jobs"
)

func main() {
	if app.SkipStartup("draftd") {
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	repo := drafts.NewRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		logger.Error("migrate drafts schema", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobClient, err := jobs.NewClient(cfg.AsynqRedis())
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	draftCache := drafts.NewCache(redisClient, cfg.DraftCacheTTL)
	service := drafts.NewService(repo, drafts.Options{
		Cache:    draftCache,
		Locker:   drafts.NewLocker(redisClient, cfg.DraftLockTTL),
		Notifier: jobClient,
		Metrics:  metrics,
		Logger:   logger,
	})

	err = draftCache.ListenForInvalidation(ctx, func(kind, id string) {
		logger.Debug("draft cache invalidated", slog.String("kind", kind), slog.String("id", id))
	})
	if err != nil {
		logger.Warn("listen for invalidation", slog.Any("error", err))
	}

	inspector := asynq.NewInspector(cfg.AsynqRedis())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		DraftHandler: draftshttp.NewHandler(logger, service),
		JobHandler:   jobs.NewHandler(inspector, jobClient, logger),
		Metrics:      metrics,
		Checks: []app.Check{
			{Name: "postgres", Fn: func(ctx context.Context) error { return db.Ping(ctx, pool, time.Second) }},
			{Name: "redis", Fn: func(ctx context.Context) error { return cache.Ping(ctx, redisClient) }},
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
