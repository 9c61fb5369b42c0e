// Command worker processes background jobs: payslip PDF rendering and
// the nightly token blacklist prune.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-hr/meridian-hr/internal/app"
	"github.com/meridian-hr/meridian-hr/internal/auth"
	"github.com/meridian-hr/meridian-hr/internal/events"
	"github.com/meridian-hr/meridian-hr/internal/payroll"
	"github.com/meridian-hr/meridian-hr/internal/permcache"
	"github.com/meridian-hr/meridian-hr/internal/platform/cache"
	"github.com/meridian-hr/meridian-hr/internal/platform/db"
	"github.com/meridian-hr/meridian-hr/internal/rbac"
	"github.com/meridian-hr/meridian-hr/internal/shared"
	"github.com/meridian-hr/meridian-hr/internal/token"
	"github.com/meridian-hr/meridian-hr/jobs"
	"github.com/meridian-hr/meridian-hr/report"
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

	auditLogger := shared.NewAuditLogger(pool)
	permCache := permcache.New(redisClient, cfg.PermCacheTTL)
	publisher := events.NewPublisher(redisClient, logger)

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
	graphService := rbac.NewService(rbac.NewRepository(pool), publisher, permCache, auditLogger, logger)
	authService := auth.NewService(authRepo, tokens, graphService, permCache, logger)

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	reportClient := report.NewClient(cfg.GotenbergURL)
	if err := reportClient.Ping(ctx); err != nil {
		logger.Warn("gotenberg ping", slog.Any("error", err))
	}

	payrollRepo := payroll.NewRepository(pool)
	payrollService := payroll.NewService(payrollRepo, jobClient, reportClient, auditLogger, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPayslipRender, Handler: jobs.NewPayslipRenderHandler(payrollService, logger)},
			{Type: jobs.TaskBlacklistPrune, Handler: jobs.NewBlacklistPruneHandler(authService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.BlacklistPruneSpec, Task: jobs.NewBlacklistPruneTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
