package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/period"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// AuditPort records audit entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// AbsenceInput is the submitted attendance of one student.
type AbsenceInput struct {
	StudentGUID   uuid.UUID
	TotalAbsences int
}

// CreateInput describes a new class day.
type CreateInput struct {
	PeriodGUID     uuid.UUID
	DisciplineGUID uuid.UUID
	ClassDate      time.Time
	TotalClasses   int
	ClassSummary   string
	Absences       []AbsenceInput
}

// UpdateInput carries the fields to change; nil fields keep their stored value. A non-nil
// Absences replaces the whole student list.
type UpdateInput struct {
	ClassDate    *time.Time
	TotalClasses *int
	ClassSummary *string
	Absences     *[]AbsenceInput
}

// Service keeps attendance logs of period disciplines.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service. audit and logger may be nil.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock used for audit timestamps.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func checkScope(ctx context.Context, r Reader, periodGUID, disciplineGUID uuid.UUID) error {
	status, err := r.PeriodStatus(ctx, periodGUID)
	if err != nil {
		return err
	}
	if status == period.StatusDraft || status == period.StatusCanceled {
		return fmt.Errorf("%w: a %s period has no classes", shared.ErrInvalidData, status)
	}
	ok, err := r.HasDiscipline(ctx, periodGUID, disciplineGUID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: discipline %s in period %s", shared.ErrNotFound, disciplineGUID, periodGUID)
	}
	return nil
}

func checkEnrolled(ctx context.Context, tx TxRepository, l Log) error {
	students := l.students()
	if len(students) == 0 {
		return nil
	}
	enrolled, err := tx.Enrolled(ctx, l.PeriodGUID, students)
	if err != nil {
		return err
	}
	for _, g := range students {
		if _, ok := enrolled[g]; !ok {
			return fmt.Errorf("%w: student %s is not enrolled in period %s", shared.ErrNotFound, g, l.PeriodGUID)
		}
	}
	return nil
}

func absences(in []AbsenceInput) []StudentAbsence {
	out := make([]StudentAbsence, len(in))
	for i, a := range in {
		out[i] = StudentAbsence{StudentGUID: a.StudentGUID, TotalAbsences: a.TotalAbsences}
	}
	return out
}

// Create stores a class day with the absences of its students.
func (s *Service) Create(ctx context.Context, input CreateInput) (Log, error) {
	l := Log{
		PeriodGUID:     input.PeriodGUID,
		DisciplineGUID: input.DisciplineGUID,
		ClassDate:      period.Day(input.ClassDate),
		TotalClasses:   input.TotalClasses,
		ClassSummary:   input.ClassSummary,
		Absences:       absences(input.Absences),
	}
	if err := l.Validate(); err != nil {
		return Log{}, err
	}
	l = l.withPresences()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := checkScope(ctx, tx, l.PeriodGUID, l.DisciplineGUID); err != nil {
			return err
		}
		if err := checkEnrolled(ctx, tx, l); err != nil {
			return err
		}
		created, err := tx.InsertLog(ctx, l)
		if err != nil {
			return err
		}
		l.GUID = created.GUID
		for _, a := range l.Absences {
			if err := tx.InsertAbsence(ctx, l.GUID, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Log{}, err
	}
	s.record(ctx, "attendance.create", l, map[string]any{"students": len(l.Absences)})
	return s.Get(ctx, l.GUID)
}

// Update changes a class day. Presences follow the class total, so changing it rewrites
// every student's row.
func (s *Service) Update(ctx context.Context, guid uuid.UUID, input UpdateInput) (Log, error) {
	var (
		next Log
		meta = map[string]any{}
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, guid)
		if err != nil {
			return err
		}
		if err := checkScope(ctx, tx, current.PeriodGUID, current.DisciplineGUID); err != nil {
			return err
		}
		next = current
		if input.ClassDate != nil {
			next.ClassDate = period.Day(*input.ClassDate)
		}
		if input.TotalClasses != nil {
			next.TotalClasses = *input.TotalClasses
		}
		if input.ClassSummary != nil {
			next.ClassSummary = *input.ClassSummary
		}
		if input.Absences != nil {
			next.Absences = absences(*input.Absences)
		}
		if err := next.Validate(); err != nil {
			return err
		}
		next = next.withPresences()
		if input.Absences != nil {
			if err := checkEnrolled(ctx, tx, next); err != nil {
				return err
			}
		}
		if err := tx.UpdateLog(ctx, next); err != nil {
			return err
		}
		created, updated, deleted, err := applyAbsences(ctx, tx, guid, current.Absences, next.Absences)
		if err != nil {
			return err
		}
		meta["created"], meta["updated"], meta["deleted"] = created, updated, deleted
		return nil
	})
	if err != nil {
		return Log{}, err
	}
	s.record(ctx, "attendance.update", next, meta)
	return s.Get(ctx, guid)
}

// applyAbsences diffs the requested rows against the stored ones by student.
func applyAbsences(ctx context.Context, tx TxRepository, logGUID uuid.UUID, stored, requested []StudentAbsence) (created, updated, deleted int, err error) {
	byStudent := make(map[uuid.UUID]StudentAbsence, len(stored))
	for _, a := range stored {
		byStudent[a.StudentGUID] = a
	}
	kept := make(map[uuid.UUID]struct{}, len(requested))
	for _, a := range requested {
		prev, ok := byStudent[a.StudentGUID]
		if !ok {
			if err := tx.InsertAbsence(ctx, logGUID, a); err != nil {
				return 0, 0, 0, err
			}
			created++
			continue
		}
		kept[a.StudentGUID] = struct{}{}
		if prev.TotalAbsences == a.TotalAbsences && prev.TotalPresences == a.TotalPresences {
			continue
		}
		a.GUID = prev.GUID
		if err := tx.UpdateAbsence(ctx, a); err != nil {
			return 0, 0, 0, err
		}
		updated++
	}
	var removed []uuid.UUID
	for _, a := range stored {
		if _, ok := kept[a.StudentGUID]; !ok {
			removed = append(removed, a.GUID)
		}
	}
	if err := tx.DeleteAbsences(ctx, removed); err != nil {
		return 0, 0, 0, err
	}
	return created, updated, len(removed), nil
}

// Get returns a class day with its students ordered by name.
func (s *Service) Get(ctx context.Context, guid uuid.UUID) (Log, error) {
	l, err := s.repo.Get(ctx, guid)
	if err != nil {
		return Log{}, err
	}
	if l.Absences == nil {
		l.Absences = []StudentAbsence{}
	}
	shared.SortByName(l.Absences, func(a StudentAbsence) string { return a.StudentName })
	return l, nil
}

// List pages the class days of a period discipline, newest first.
func (s *Service) List(ctx context.Context, periodGUID, disciplineGUID uuid.UUID, page, perPage int) (Page, error) {
	if err := checkScope(ctx, s.repo, periodGUID, disciplineGUID); err != nil {
		return Page{}, err
	}
	page, perPage = shared.NormalizePage(page, perPage)
	p := shared.NewPagination(page, perPage, 0)
	rows, total, err := s.repo.List(ctx, periodGUID, disciplineGUID, perPage, p.Offset())
	if err != nil {
		return Page{}, err
	}
	if rows == nil {
		rows = []Summary{}
	}
	return Page{Data: rows, Pagination: shared.NewPagination(page, perPage, total)}, nil
}

func (s *Service) record(ctx context.Context, action string, l Log, meta map[string]any) {
	if s.audit == nil {
		return
	}
	meta["discipline_guid"] = l.DisciplineGUID.String()
	meta["attendance_log_guid"] = l.GUID.String()
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "period",
		EntityID: l.PeriodGUID.String(),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
