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
	"github.com/odyssey-erp/quotewizard/internal/observability"
	"github.com/odyssey-erp/quotewizard/internal/platform/cache"
	"github.com/odyssey-erp/quotewizard/internal/platform/db"
	"github.com/odyssey-erp/quotewizard/jobs"
)

func main() {
	if app.SkipStartup("worker") {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	metrics := observability.NewMetrics()
	service := drafts.NewService(drafts.NewRepository(pool), drafts.Options{
		Cache:   drafts.NewCache(redisClient, cfg.DraftCacheTTL),
		Metrics: metrics,
		Logger:  logger,
	})

	submittedJob := jobs.NewDraftSubmittedJob(service, jobs.NewRedisPublisher(redisClient), logger, metrics.Jobs())
	purgeJob := jobs.NewDraftPurgeJob(service, cfg.DraftRetention, logger, metrics.Jobs())

	purgeTask, err := jobs.NewDraftPurgeTask(cfg.DraftRetention)
	if err != nil {
		logger.Error("build purge task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.AsynqRedis(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDraftSubmitted, Handler: submittedJob.Handle},
			{Type: jobs.TaskDraftPurge, Handler: purgeJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DraftPurgeCron, Task: purgeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.WorkerMetricsAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
