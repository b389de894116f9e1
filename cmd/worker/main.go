package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/pflag"

	"github.com/odyssey-erp/odyssey-academic/internal/app"
	jobmetrics "github.com/odyssey-erp/odyssey-academic/internal/jobs"
	"github.com/odyssey-erp/odyssey-academic/internal/observability"
	"github.com/odyssey-erp/odyssey-academic/internal/period"
	"github.com/odyssey-erp/odyssey-academic/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-academic/internal/platform/db"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
	"github.com/odyssey-erp/odyssey-academic/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	flags := pflag.NewFlagSet("worker", pflag.ContinueOnError)
	noCron := flags.Bool("no-cron", false, "process queued tasks without registering the lifecycle schedule")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
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

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	periodService := period.NewService(period.NewRepository(pool), shared.NewAuditLogger(pool), logger)
	periodService.WithLocation(cfg.Location())
	lifecycleJob := jobs.NewPeriodLifecycleJob(periodService, cache.NewLocker(redisClient), logger, jobMetrics, cfg.LifecycleLockTTL, cfg.Location())

	var cron []jobs.CronRegistration
	if !*noCron {
		lifecycleTask, err := jobs.NewPeriodLifecycleTask(time.Time{})
		if err != nil {
			logger.Error("build lifecycle task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.LifecycleCron,
			Task:    lifecycleTask,
			Options: []asynq.Option{asynq.MaxRetry(3), asynq.Unique(cfg.LifecycleLockTTL)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Location:    cfg.Location(),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPeriodLifecycle, Handler: lifecycleJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting worker",
		slog.String("lifecycle_cron", cfg.LifecycleCron),
		slog.String("timezone", cfg.Location().String()),
		slog.Bool("cron", !*noCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
