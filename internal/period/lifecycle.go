package period

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Transition is a date-driven status move applied by the lifecycle sweep.
type Transition struct {
	From  Status
	To    Status
	Field DateField
}

// LifecycleTransitions are evaluated in order against the same day.
var LifecycleTransitions = []Transition{
	{From: StatusNotStarted, To: StatusOpenForEnrollment, Field: FieldEnrollmentStart},
	{From: StatusOpenForEnrollment, To: StatusInProgress, Field: FieldEnrollmentEnd},
	{From: StatusInProgress, To: StatusFinished, Field: FieldDeadline},
}

// TransitionCount reports how many periods one transition moved.
type TransitionCount struct {
	From  Status `json:"from"`
	To    Status `json:"to"`
	Moved int64  `json:"moved"`
}

// LifecycleReport summarises one sweep.
type LifecycleReport struct {
	Day         time.Time         `json:"day"`
	Transitions []TransitionCount `json:"transitions"`
}

// Total returns the number of periods moved.
func (r LifecycleReport) Total() int64 {
	var n int64
	for _, t := range r.Transitions {
		n += t.Moved
	}
	return n
}

// Today returns the current calendar day in the service timezone.
func (s *Service) Today() time.Time {
	return s.today()
}

// AdvanceLifecycle moves every period whose transition date is day. Transitions run in
// lifecycle order inside one transaction, so a period whose dates coincide advances through
// each matching step and a second sweep for the same day finds nothing left to move.
func (s *Service) AdvanceLifecycle(ctx context.Context, day time.Time) (LifecycleReport, error) {
	day = Day(day)
	report := LifecycleReport{Day: day}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		report.Transitions = make([]TransitionCount, 0, len(LifecycleTransitions))
		for _, t := range LifecycleTransitions {
			due, err := tx.DueForTransition(ctx, t.From, t.Field, day)
			if err != nil {
				return fmt.Errorf("load %s periods due: %w", t.From, err)
			}
			moved, err := tx.UpdateStatuses(ctx, due, t.From, t.To)
			if err != nil {
				return fmt.Errorf("move periods %s to %s: %w", t.From, t.To, err)
			}
			report.Transitions = append(report.Transitions, TransitionCount{From: t.From, To: t.To, Moved: moved})
		}
		return nil
	})
	if err != nil {
		return LifecycleReport{}, err
	}
	s.logger.InfoContext(ctx, "period lifecycle advanced",
		slog.String("day", day.Format(time.DateOnly)),
		slog.Int64("moved", report.Total()))
	return report, nil
}
