// Command authd serves authentication, account and permission graph
// APIs. It is the only process with write access to the permission
// graph; every other service consumes its tokens and events.
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

	"golang.org/x/sync/errgroup"

	"github.com/meridian-hr/meridian-hr/internal/app"
	"github.com/meridian-hr/meridian-hr/internal/auth"
	"github.com/meridian-hr/meridian-hr/internal/authz"
	"github.com/meridian-hr/meridian-hr/internal/events"
	"github.com/meridian-hr/meridian-hr/internal/observability"
	"github.com/meridian-hr/meridian-hr/internal/permcache"
	"github.com/meridian-hr/meridian-hr/internal/platform/cache"
	"github.com/meridian-hr/meridian-hr/internal/platform/db"
	"github.com/meridian-hr/meridian-hr/internal/rbac"
	"github.com/meridian-hr/meridian-hr/internal/shared"
	"github.com/meridian-hr/meridian-hr/internal/token"
	"github.com/meridian-hr/meridian-hr/internal/users"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics("authd")
	auditLogger := shared.NewAuditLogger(pool)
	publisher := events.NewPublisher(redisClient, logger)
	permCache := permcache.New(redisClient, cfg.PermCacheTTL)

	authRepo := auth.NewRepository(pool)
	tokens, err := token.NewManager(token.Config{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		Blacklist:  authRepo,
	})
	if err != nil {
		logger.Error("init token manager", slog.Any("error", err))
		os.Exit(1)
	}
	guard := authz.Middleware{Manager: tokens, Cache: permCache, Logger: logger, Metrics: metrics}

	graphRepo := rbac.NewRepository(pool)
	graphService := rbac.NewService(graphRepo, publisher, permCache, auditLogger, logger)
	graphHandler := rbac.NewHandler(logger, graphService, guard)

	authService := auth.NewService(authRepo, tokens, graphService, permCache, logger)
	authHandler := auth.NewHandler(logger, authService, guard)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, graphService, publisher, permCache, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, guard)

	// Employee lifecycle events feed back into account state: a
	// terminated employee's linked account is deactivated, which in turn
	// publishes user.deactivated for the other services.
	subscriber := events.NewSubscriber(redisClient, logger, func(ctx context.Context, ev events.Event) error {
		if ev.EventType != events.EmployeeTerminated || ev.UserID == "" {
			return nil
		}
		return usersService.Deactivate(ctx, "system", ev.UserID)
	}, events.PatternEmployeeEvents)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Guard:        guard,
		AuthHandler:  authHandler,
		UsersHandler: usersHandler,
		GraphHandler: graphHandler,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return subscriber.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("authd run", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
