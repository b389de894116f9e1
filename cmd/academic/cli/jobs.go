package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/pflag"

	"github.com/odyssey-erp/odyssey-academic/jobs"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type queueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    enqueuer
	inspector queueInspector
	loc       *time.Location
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address. Days given on
// the command line are read in loc.
func NewJobsCLI(redisAddr string, loc *time.Location) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return newJobsCLI(asynq.NewClient(opts), asynq.NewInspector(opts), loc)
}

func newJobsCLI(client enqueuer, inspector queueInspector, loc *time.Location) *JobsCLI {
	if loc == nil {
		loc = time.UTC
	}
	return &JobsCLI{client: client, inspector: inspector, loc: loc}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name. A zero day lets the worker pick today.
func (c *JobsCLI) Trigger(ctx context.Context, name string, day time.Time) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskPeriodLifecycle:
		task, err = jobs.NewPeriodLifecycleTask(day)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Failed    int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Failed = info.Failed
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// Run executes `jobs trigger <name> [--day YYYY-MM-DD]` or `jobs stats [--scheduled N]`.
func (c *JobsCLI) Run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: jobs trigger <name> [--day YYYY-MM-DD] | jobs stats [--scheduled N]")
	}
	switch args[0] {
	case "trigger":
		flags := pflag.NewFlagSet("jobs trigger", pflag.ContinueOnError)
		flags.SetOutput(out)
		dayFlag := flags.String("day", "", "calendar day to sweep (YYYY-MM-DD), defaults to today on the worker")
		if err := flags.Parse(args[1:]); err != nil {
			return err
		}
		if flags.NArg() != 1 {
			return errors.New("jobs trigger: exactly one job name is required")
		}
		var day time.Time
		if *dayFlag != "" {
			parsed, err := time.ParseInLocation(time.DateOnly, *dayFlag, c.loc)
			if err != nil {
				return fmt.Errorf("jobs trigger: --day: %w", err)
			}
			day = parsed
		}
		info, err := c.Trigger(ctx, flags.Arg(0), day)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return err
	case "stats":
		flags := pflag.NewFlagSet("jobs stats", pflag.ContinueOnError)
		flags.SetOutput(out)
		scheduled := flags.Int("scheduled", 0, "also list up to N scheduled tasks")
		if err := flags.Parse(args[1:]); err != nil {
			return err
		}
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tFAILED")
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Failed)
		if err := tw.Flush(); err != nil {
			return err
		}
		if *scheduled <= 0 {
			return nil
		}
		tasks, err := c.ListScheduled(ctx, *scheduled)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Fprintf(out, "%s %s next=%s\n", t.ID, t.Type, t.NextProcessAt.Format(time.RFC3339))
		}
		return nil
	default:
		return fmt.Errorf("jobs: unknown command %q", args[0])
	}
}
