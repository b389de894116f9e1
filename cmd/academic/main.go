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

	"github.com/odyssey-erp/odyssey-academic/cmd/academic/cli"
	"github.com/odyssey-erp/odyssey-academic/internal/app"
	"github.com/odyssey-erp/odyssey-academic/internal/attendance"
	"github.com/odyssey-erp/odyssey-academic/internal/enrollment"
	"github.com/odyssey-erp/odyssey-academic/internal/grading"
	"github.com/odyssey-erp/odyssey-academic/internal/observability"
	"github.com/odyssey-erp/odyssey-academic/internal/period"
	"github.com/odyssey-erp/odyssey-academic/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-academic/internal/platform/db"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
	"github.com/odyssey-erp/odyssey-academic/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	flags := pflag.NewFlagSet("academic", pflag.ContinueOnError)
	addr := flags.String("addr", "", "HTTP listen address (overrides APP_ADDR)")
	requestLog := flags.Bool("request-log", true, "log every HTTP request")
	flags.SetInterspersed(false)
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
	if *addr != "" {
		cfg.AppAddr = *addr
	}
	logger := app.NewLogger(cfg)

	if args := flags.Args(); len(args) > 0 {
		if args[0] != "jobs" {
			fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
			os.Exit(2)
		}
		jobsCLI := cli.NewJobsCLI(cfg.RedisAddr, cfg.Location())
		err := jobsCLI.Run(ctx, args[1:], os.Stdout)
		if closeErr := jobsCLI.Close(); closeErr != nil {
			logger.Warn("jobs cli close", slog.Any("error", closeErr))
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, stop, cfg, logger, *requestLog); err != nil {
		logger.Error("academic api", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger, requestLog bool) error {
	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL)

	periodService := period.NewService(period.NewRepository(dbpool), auditLogger, logger)
	periodService.WithLocation(cfg.Location())
	enrollmentService := enrollment.NewService(enrollment.NewRepository(dbpool), auditLogger, logger)
	enrollmentService.WithLocation(cfg.Location())
	gradingService := grading.NewService(grading.NewRepository(dbpool), auditLogger, logger)
	attendanceService := attendance.NewService(attendance.NewRepository(dbpool), auditLogger, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		PeriodHandler:     period.NewHandler(logger, periodService),
		EnrollmentHandler: enrollment.NewHandler(logger, enrollmentService, idempotencyStore),
		GradingHandler:    grading.NewHandler(logger, gradingService),
		AttendanceHandler: attendance.NewHandler(logger, attendanceService),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
		RequestLogging:    requestLog,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("timezone", cfg.Location().String()))
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
	return nil
}
