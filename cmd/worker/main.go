package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sunlease/portal/internal/app"
	"github.com/sunlease/portal/internal/auth"
	"github.com/sunlease/portal/internal/platform/cache"
	"github.com/sunlease/portal/internal/platform/db"
	"github.com/sunlease/portal/internal/rbac"
	"github.com/sunlease/portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 4})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	grants := rbac.NewCachedRepository(rbac.NewRepository(pool), redisClient, cfg.PermissionCacheTTL, logger)

	purgeJob := jobs.NewSessionPurgeJob(auth.NewRepository(pool), logger, nil)
	warmJob := jobs.NewPermissionsWarmJob(grants, logger, nil)

	purgeTask, err := jobs.NewSessionPurgeTask(cfg.SessionRetainHours)
	if err != nil {
		logger.Error("build purge task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.RedisOptions(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionPurge, Handler: purgeJob.Handle},
			{Type: jobs.TaskPermissionsWarm, Handler: warmJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 2 * * *", Task: purgeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/10 * * * *", Task: jobs.NewPermissionsWarmTask(), Options: []asynq.Option{asynq.MaxRetry(1), asynq.Unique(cfg.PermissionCacheTTL)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
