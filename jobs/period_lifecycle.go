package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-academic/internal/jobs"
	"github.com/odyssey-erp/odyssey-academic/internal/period"
	"github.com/odyssey-erp/odyssey-academic/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const defaultLifecycleLockTTL = 10 * time.Minute

type lifecycleService interface {
	Today() time.Time
	AdvanceLifecycle(ctx context.Context, day time.Time) (period.LifecycleReport, error)
}

type lifecycleLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*cache.Lock, error)
}

// PeriodLifecycleJob runs the daily period status sweep, one instance at a time.
type PeriodLifecycleJob struct {
	Service lifecycleService
	Locker  lifecycleLocker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	LockTTL time.Duration
	loc     *time.Location
}

// NewPeriodLifecycleJob wires dependencies for the lifecycle handler.
func NewPeriodLifecycleJob(svc lifecycleService, locker lifecycleLocker, logger *slog.Logger, metrics *jobmetrics.Metrics, lockTTL time.Duration, loc *time.Location) *PeriodLifecycleJob {
	if loc == nil {
		loc = time.UTC
	}
	return &PeriodLifecycleJob{
		Service: svc,
		Locker:  locker,
		Logger:  logger,
		Metrics: metrics,
		LockTTL: lockTTL,
		loc:     loc,
	}
}

// Handle processes lifecycle tasks.
func (j *PeriodLifecycleJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("period lifecycle: handler not configured")
	}
	day, err := parsePeriodLifecyclePayload(t.Payload(), j.loc)
	if err != nil {
		j.logger().Warn("invalid payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	if day.IsZero() {
		day = j.Service.Today()
	}
	_, err = j.Run(ctx, day)
	return err
}

// Run sweeps day under the Redis lease. A held lease is not an error: the other holder
// is doing the same work.
func (j *PeriodLifecycleJob) Run(ctx context.Context, day time.Time) (period.LifecycleReport, error) {
	logger := j.logger().With(slog.String("day", day.Format(time.DateOnly)))

	if j.Locker != nil {
		lock, err := j.Locker.Acquire(ctx, shared.LifecycleLockKey(day), j.lockTTL())
		if errors.Is(err, cache.ErrLockHeld) {
			j.metrics().Skip(TaskPeriodLifecycle, "locked")
			logger.Info("lifecycle sweep already running elsewhere")
			return period.LifecycleReport{}, nil
		}
		if err != nil {
			logger.Error("acquire lifecycle lock", slog.Any("error", err))
			return period.LifecycleReport{}, err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release lifecycle lock", slog.Any("error", err))
			}
		}()
	}

	tracker := j.metrics().Track(TaskPeriodLifecycle)
	report, err := j.Service.AdvanceLifecycle(ctx, day)
	if err = tracker.End(err); err != nil {
		logger.Error("lifecycle sweep failed", slog.Any("error", err))
		return period.LifecycleReport{}, err
	}
	for _, tc := range report.Transitions {
		j.metrics().AddTransitions(string(tc.From), string(tc.To), tc.Moved)
	}
	logger.Info("completed lifecycle sweep", slog.Int64("moved", report.Total()))
	return report, nil
}

func (j *PeriodLifecycleJob) lockTTL() time.Duration {
	if j.LockTTL > 0 {
		return j.LockTTL
	}
	return defaultLifecycleLockTTL
}

func (j *PeriodLifecycleJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPeriodLifecycle))
	}
	return slog.Default().With(slog.String("job", TaskPeriodLifecycle))
}

func (j *PeriodLifecycleJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
