package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// AuditPort records audit entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service enrolls students into periods and cancels those links.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewService constructs a Service. audit and logger may be nil.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, loc: time.UTC, now: time.Now}
}

// WithNow overrides the clock used for enrollment numbers.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithLocation sets the timezone the enrollment year is taken in.
func (s *Service) WithLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// EnrollStudents links every student to the period, creating a course enrollment for
// students that have none. Either all students are enrolled or none is.
func (s *Service) EnrollStudents(ctx context.Context, periodGUID uuid.UUID, studentGUIDs []uuid.UUID) ([]RosterEntry, error) {
	if err := distinct(studentGUIDs, "student"); err != nil {
		return nil, err
	}
	var created []string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.PeriodForUpdate(ctx, periodGUID)
		if err != nil {
			return err
		}
		if !p.AcceptsEnrollment() {
			return fmt.Errorf("%w: a %s period does not accept enrollments", shared.ErrInvalidData, p.Status)
		}
		if err := checkStudents(ctx, tx, studentGUIDs); err != nil {
			return err
		}
		// duplicates are reported before capacity, and only new links take a vacancy
		pending := make([]Enrollment, 0, len(studentGUIDs))
		for _, student := range studentGUIDs {
			e, err := tx.FindEnrollment(ctx, student, p.CourseGUID)
			switch {
			case errors.Is(err, shared.ErrNotFound):
				pending = append(pending, Enrollment{StudentGUID: student, CourseGUID: p.CourseGUID})
				continue
			case err != nil:
				return err
			}
			linked, err := tx.IsLinked(ctx, e.GUID, periodGUID)
			if err != nil {
				return err
			}
			if linked {
				return fmt.Errorf("%w: student %s is already enrolled in this period", shared.ErrConflict, student)
			}
			pending = append(pending, e)
		}
		if err := checkVacancies(ctx, tx, p, len(pending)); err != nil {
			return err
		}
		year := s.now().In(s.loc).Year()
		for _, e := range pending {
			if e.GUID == uuid.Nil {
				number, err := tx.NextNumber(ctx, year)
				if err != nil {
					return err
				}
				e.Number = number
				if e, err = tx.InsertEnrollment(ctx, e); err != nil {
					return err
				}
				created = append(created, e.Number)
			}
			if err := tx.Link(ctx, e.GUID, periodGUID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, "enrollment.enroll", periodGUID, map[string]any{
		"students":    len(studentGUIDs),
		"new_numbers": created,
	})
	return s.ListPeriodEnrollments(ctx, periodGUID)
}

func checkVacancies(ctx context.Context, tx TxRepository, p PeriodRef, requested int) error {
	if p.Vacancies == nil {
		return nil
	}
	enrolled, err := tx.CountLinked(ctx, p.GUID)
	if err != nil {
		return err
	}
	if left := *p.Vacancies - enrolled; requested > left {
		return fmt.Errorf("%w: %d vacancies left, %d students requested", shared.ErrInvalidData, max(left, 0), requested)
	}
	return nil
}

func checkStudents(ctx context.Context, tx TxRepository, guids []uuid.UUID) error {
	students, err := tx.Students(ctx, guids)
	if err != nil {
		return err
	}
	found := make(map[uuid.UUID]bool, len(students))
	for _, st := range students {
		found[st.GUID] = st.Status.Active()
	}
	for _, g := range guids {
		active, ok := found[g]
		if !ok {
			return fmt.Errorf("%w: student %s", shared.ErrNotFound, g)
		}
		if !active {
			return fmt.Errorf("%w: student %s is inactive", shared.ErrNotFound, g)
		}
	}
	return nil
}

// CancelEnrollment unlinks one enrollment from the period. The course enrollment is kept.
func (s *Service) CancelEnrollment(ctx context.Context, periodGUID, enrollmentGUID uuid.UUID) ([]RosterEntry, error) {
	return s.CancelEnrollments(ctx, periodGUID, []uuid.UUID{enrollmentGUID})
}

// CancelEnrollments unlinks every listed enrollment from the period, failing without changes
// when any of them is not linked to it.
func (s *Service) CancelEnrollments(ctx context.Context, periodGUID uuid.UUID, enrollmentGUIDs []uuid.UUID) ([]RosterEntry, error) {
	if err := distinct(enrollmentGUIDs, "enrollment"); err != nil {
		return nil, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.PeriodForUpdate(ctx, periodGUID)
		if err != nil {
			return err
		}
		if p.Status.Terminal() {
			return fmt.Errorf("%w: enrollments of a %s period are kept for its history", shared.ErrInvalidData, p.Status)
		}
		linked, err := tx.LinkedAmong(ctx, periodGUID, enrollmentGUIDs)
		if err != nil {
			return err
		}
		if len(linked) != len(enrollmentGUIDs) {
			known := make(map[uuid.UUID]struct{}, len(linked))
			for _, g := range linked {
				known[g] = struct{}{}
			}
			for _, g := range enrollmentGUIDs {
				if _, ok := known[g]; !ok {
					return fmt.Errorf("%w: enrollment %s in period %s", shared.ErrNotFound, g, periodGUID)
				}
			}
		}
		_, err = tx.Unlink(ctx, periodGUID, enrollmentGUIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(enrollmentGUIDs))
	for _, g := range enrollmentGUIDs {
		ids = append(ids, g.String())
	}
	s.record(ctx, "enrollment.cancel", periodGUID, map[string]any{"enrollments": ids})
	return s.ListPeriodEnrollments(ctx, periodGUID)
}

// ListPeriodEnrollments returns the period roster ordered by student name.
func (s *Service) ListPeriodEnrollments(ctx context.Context, periodGUID uuid.UUID) ([]RosterEntry, error) {
	if _, err := s.repo.Period(ctx, periodGUID); err != nil {
		return nil, err
	}
	entries, err := s.repo.Roster(ctx, periodGUID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []RosterEntry{}
	}
	shared.SortByName(entries, func(e RosterEntry) string { return e.StudentName })
	return entries, nil
}

func distinct(guids []uuid.UUID, what string) error {
	if len(guids) == 0 {
		return fmt.Errorf("%w: at least one %s is required", shared.ErrInvalidData, what)
	}
	seen := make(map[uuid.UUID]struct{}, len(guids))
	for _, g := range guids {
		if _, dup := seen[g]; dup {
			return fmt.Errorf("%w: %s %s listed twice", shared.ErrInvalidData, what, g)
		}
		seen[g] = struct{}{}
	}
	return nil
}

func (s *Service) record(ctx context.Context, action string, periodGUID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "period",
		EntityID: periodGUID.String(),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
