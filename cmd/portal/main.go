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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/sunlease/portal/internal/app"
	"github.com/sunlease/portal/internal/auth"
	"github.com/sunlease/portal/internal/observability"
	"github.com/sunlease/portal/internal/platform/cache"
	"github.com/sunlease/portal/internal/platform/db"
	"github.com/sunlease/portal/internal/portal"
	"github.com/sunlease/portal/internal/rbac"
	"github.com/sunlease/portal/internal/session"
	"github.com/sunlease/portal/internal/shared"
	"github.com/sunlease/portal/internal/view"
	"github.com/sunlease/portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping portal startup")
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("portal exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		// Sessions degrade to backend validation on every load.
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	registry := rbac.NewRegistry(rbac.DefaultRoutes()...)

	params := app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		CSRFManager: csrfManager,
		Registry:    registry,
		Metrics:     metrics,
	}

	var backend session.Backend
	if cfg.InProcessBackend() {
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
		if err != nil {
			return err
		}
		defer pool.Close()

		authService, rbacService, err := buildServices(cfg, logger, pool, redisClient)
		if err != nil {
			return err
		}
		backend = auth.NewLocalBackend(authService)
		params.AuthHandler = auth.NewHandler(logger, authService)
		params.PermissionsHandler = rbac.NewPermissionsHandler(logger, rbacService, rbac.Middleware{Source: session.IdentitySource, Logger: logger}).
			WithAuditor(shared.NewAuditLogger(pool))
	} else {
		logger.Info("using remote auth api", slog.String("url", cfg.BackendURL))
		backend = session.NewHTTPBackend(cfg.BackendURL, &http.Client{Timeout: cfg.BackendTimeout})
	}

	sessions, err := session.NewManager(session.ManagerConfig{
		Backend:    backend,
		Cache:      session.NewRedisCache(redisClient, cfg.SessionTTL),
		Logger:     logger,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.IsProduction(),
		Capacity:   cfg.SessionStoreCapacity,
		Timeout:    cfg.BackendTimeout,
		Revalidate: cfg.RevalidateInterval,
		OnCheck:    metrics.ObserveSessionCheck,
	})
	if err != nil {
		return err
	}
	defer sessions.Close()
	metrics.TrackGauge("portal_session_stores", "Live session stores held in memory.", func() float64 {
		return float64(sessions.Len())
	})
	params.Sessions = sessions

	templates, err := view.NewEngine()
	if err != nil {
		return err
	}
	params.Portal = portal.NewHandler(logger, templates, csrfManager, registry, metrics)

	inspector := asynq.NewInspector(cfg.RedisOptions())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(cfg.RedisOptions())
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	params.JobsHandler = jobs.NewHandler(inspector, jobClient, logger)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      app.NewRouter(params),
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
	return group.Wait()
}

func buildServices(cfg *app.Config, logger *slog.Logger, pool *pgxpool.Pool, redisClient *redis.Client) (*auth.Service, *rbac.Service, error) {
	grants := rbac.NewCachedRepository(rbac.NewRepository(pool), redisClient, cfg.PermissionCacheTTL, logger)
	rbacService := rbac.NewService(grants)

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		return nil, nil, err
	}
	authService := auth.NewService(auth.NewRepository(pool), rbacService, tokens, auth.NewRedisRevocations(redisClient), logger)
	return authService, rbacService, nil
}
