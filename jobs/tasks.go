package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPeriodLifecycle advances period statuses whose transition date has arrived.
	TaskPeriodLifecycle = "period:lifecycle"
)

// PeriodLifecyclePayload optionally pins the sweep to a calendar day (YYYY-MM-DD).
// An empty day means today in the academic timezone.
type PeriodLifecyclePayload struct {
	Day string `json:"day,omitempty"`
}

// NewPeriodLifecycleTask constructs an Asynq task for the lifecycle sweep. A zero day
// leaves the choice of day to the worker.
func NewPeriodLifecycleTask(day time.Time) (*asynq.Task, error) {
	payload := PeriodLifecyclePayload{}
	if !day.IsZero() {
		payload.Day = day.Format(time.DateOnly)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPeriodLifecycle, body, asynq.Queue(QueueDefault)), nil
}

func parsePeriodLifecyclePayload(raw []byte, loc *time.Location) (time.Time, error) {
	var payload PeriodLifecyclePayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return time.Time{}, err
		}
	}
	if payload.Day == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, payload.Day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("period lifecycle: day %q: %w", payload.Day, err)
	}
	return day, nil
}
