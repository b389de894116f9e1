package period

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-academic/internal/availability"
	"github.com/odyssey-erp/odyssey-academic/internal/schedule"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// AuditPort records audit entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates period scheduling against the availability rules.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
	loads  singleflight.Group
}

// NewService constructs a Service. audit and logger may be nil.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, loc: time.UTC, now: time.Now}
}

// WithNow overrides the clock used for date rules.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithLocation sets the timezone "today" is evaluated in.
func (s *Service) WithLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

func (s *Service) today() time.Time {
	return Day(s.now().In(s.loc))
}

// Create validates and persists a new period with its discipline schedules.
func (s *Service) Create(ctx context.Context, input CreateInput) (Details, error) {
	if input.Status == "" {
		input.Status = StatusDraft
	}
	if input.Status != StatusDraft && input.Status != StatusNotStarted {
		return Details{}, fmt.Errorf("%w: a period must be created as %s or %s", shared.ErrInvalidData, StatusDraft, StatusNotStarted)
	}
	var created Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		schedules, err := resolveSchedules(ctx, tx, input.DisciplineSchedules)
		if err != nil {
			return err
		}
		p := Period{
			Status:              input.Status,
			MatrixModuleGUID:    input.MatrixModuleGUID,
			ClassID:             input.ClassID,
			EnrollmentStartDate: dayPtr(input.EnrollmentStartDate),
			EnrollmentEndDate:   dayPtr(input.EnrollmentEndDate),
			Deadline:            dayPtr(input.Deadline),
			Vacancies:           input.Vacancies,
			ClassroomGUID:       input.ClassroomGUID,
			ShiftGUID:           input.ShiftGUID,
			DisciplineSchedules: schedules,
		}
		if err := p.Validate(); err != nil {
			return err
		}
		if err := s.checkResources(ctx, tx, p, uuid.Nil); err != nil {
			return err
		}
		inserted, err := tx.InsertPeriod(ctx, p)
		if err != nil {
			return err
		}
		inserted.DisciplineSchedules = make([]schedule.DisciplineSchedule, 0, len(p.DisciplineSchedules))
		for _, ds := range p.DisciplineSchedules {
			ds.PeriodGUID = inserted.GUID
			saved, err := tx.InsertDisciplineSchedule(ctx, ds)
			if err != nil {
				return err
			}
			inserted.DisciplineSchedules = append(inserted.DisciplineSchedules, saved)
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Details{}, err
	}
	s.record(ctx, "period.create", created.GUID, map[string]any{
		"status":             string(created.Status),
		"matrix_module_guid": created.MatrixModuleGUID.String(),
		"class_id":           created.ClassID,
	})
	return s.reload(ctx, created.GUID)
}

// Update overlays input on the stored period and re-validates the result. Moving to
// canceled only enforces the transition guard.
func (s *Service) Update(ctx context.Context, guid uuid.UUID, input UpdateInput) (Details, error) {
	var (
		updated Period
		diff    scheduleDiff
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, guid)
		if err != nil {
			return err
		}
		target := current.Status
		if input.Status != nil {
			target = *input.Status
		}
		if target == StatusCanceled {
			updated, err = cancel(ctx, tx, current)
			return err
		}
		if current.Status.Terminal() {
			return fmt.Errorf("%w: a %s period cannot be updated", shared.ErrInvalidData, current.Status)
		}
		if !target.Valid() {
			return fmt.Errorf("%w: invalid status %q", shared.ErrInvalidData, target)
		}
		if !CanTransition(current.Status, target) {
			return fmt.Errorf("%w: cannot move period from %s to %s", shared.ErrInvalidData, current.Status, target)
		}
		if err := s.checkEnrollmentWindow(current, target, input); err != nil {
			return err
		}
		next := overlay(current, target, input)
		if input.DisciplineSchedules != nil {
			proposed, err := resolveSchedules(ctx, tx, *input.DisciplineSchedules)
			if err != nil {
				return err
			}
			if err := ownedBy(current, proposed); err != nil {
				return err
			}
			next.DisciplineSchedules = proposed
		}
		for i := range next.DisciplineSchedules {
			next.DisciplineSchedules[i].PeriodGUID = guid
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if err := s.checkResources(ctx, tx, next, guid); err != nil {
			return err
		}
		saved, err := tx.UpdatePeriod(ctx, next)
		if err != nil {
			return err
		}
		diff = diffSchedules(current.DisciplineSchedules, next.DisciplineSchedules)
		if err := diff.apply(ctx, tx); err != nil {
			return err
		}
		updated = saved
		return nil
	})
	if err != nil {
		return Details{}, err
	}
	s.record(ctx, "period.update", updated.GUID, map[string]any{
		"status":            string(updated.Status),
		"schedules_created": len(diff.create),
		"schedules_updated": len(diff.update),
		"schedules_deleted": len(diff.remove),
	})
	return s.reload(ctx, guid)
}

// Cancel moves a draft or notStarted period to canceled.
func (s *Service) Cancel(ctx context.Context, guid uuid.UUID) (Details, error) {
	var (
		canceled Period
		from     Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, guid)
		if err != nil {
			return err
		}
		from = current.Status
		canceled, err = cancel(ctx, tx, current)
		return err
	})
	if err != nil {
		return Details{}, err
	}
	s.record(ctx, "period.cancel", canceled.GUID, map[string]any{"from": string(from)})
	return s.reload(ctx, guid)
}

func cancel(ctx context.Context, tx TxRepository, current Period) (Period, error) {
	if !current.Status.Cancelable() {
		return Period{}, fmt.Errorf("%w: only %s or %s periods can be canceled", shared.ErrInvalidData, StatusDraft, StatusNotStarted)
	}
	current.Status = StatusCanceled
	return tx.UpdatePeriod(ctx, current)
}

// Get returns the full projection of a period. Concurrent loads of the same period share
// one round of queries; each caller still returns as soon as its own ctx is done.
func (s *Service) Get(ctx context.Context, guid uuid.UUID) (Details, error) {
	ch := s.loads.DoChan(guid.String(), func() (any, error) {
		return s.loadDetails(context.WithoutCancel(ctx), guid)
	})
	select {
	case <-ctx.Done():
		return Details{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Details{}, res.Err
		}
		return res.Val.(Details), nil
	}
}

// reload loads the projection after a committed write. It never joins a read that may
// have started before the commit.
func (s *Service) reload(ctx context.Context, guid uuid.UUID) (Details, error) {
	s.loads.Forget(guid.String())
	return s.loadDetails(ctx, guid)
}

func (s *Service) loadDetails(ctx context.Context, guid uuid.UUID) (Details, error) {
	p, err := s.repo.Get(ctx, guid)
	if err != nil {
		return Details{}, err
	}
	disciplineGUIDs, employeeGUIDs := referencedGUIDs([]Period{p})
	var (
		d           = Details{Period: p}
		disciplines map[uuid.UUID]string
		employees   map[uuid.UUID]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		module, err := s.repo.MatrixModule(gctx, p.MatrixModuleGUID)
		if err != nil {
			return err
		}
		d.Labels = Labels{Course: module.CourseName, Matrix: module.MatrixName, Module: module.Name}
		return nil
	})
	g.Go(func() (err error) {
		disciplines, err = s.repo.Names(gctx, "disciplines", disciplineGUIDs)
		return err
	})
	g.Go(func() (err error) {
		employees, err = s.repo.Names(gctx, "employees", employeeGUIDs)
		return err
	})
	if p.ClassroomGUID != nil {
		g.Go(func() error {
			room, err := s.repo.Classroom(gctx, *p.ClassroomGUID)
			if err != nil {
				return err
			}
			d.Classroom = room.Name
			return nil
		})
	}
	if p.ShiftGUID != nil {
		g.Go(func() error {
			shift, err := s.repo.Shift(gctx, *p.ShiftGUID)
			if err != nil {
				return err
			}
			d.Shift = shift.Name
			return nil
		})
	}
	g.Go(func() (err error) {
		d.Enrolled, err = s.repo.EnrolledCount(gctx, guid)
		return err
	})
	if err := g.Wait(); err != nil {
		return Details{}, err
	}
	d.Name = DisplayName(d.Labels, p.ClassID)
	d.DisciplineSchedules = disciplineViews(p.DisciplineSchedules, disciplines, employees)
	return d, nil
}

// GetSimplified returns the compact projection of a period.
func (s *Service) GetSimplified(ctx context.Context, guid uuid.UUID) (Simplified, error) {
	p, err := s.repo.Get(ctx, guid)
	if err != nil {
		return Simplified{}, err
	}
	module, err := s.repo.MatrixModule(ctx, p.MatrixModuleGUID)
	if err != nil {
		return Simplified{}, err
	}
	labels := Labels{Course: module.CourseName, Matrix: module.MatrixName, Module: module.Name}
	return Simplified{
		GUID:                p.GUID,
		Name:                DisplayName(labels, p.ClassID),
		Status:              p.Status,
		ClassID:             p.ClassID,
		EnrollmentStartDate: p.EnrollmentStartDate,
		EnrollmentEndDate:   p.EnrollmentEndDate,
		Deadline:            p.Deadline,
		Vacancies:           p.Vacancies,
	}, nil
}

// List pages through periods matching filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) (Page, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return Page{}, fmt.Errorf("%w: invalid status %q", shared.ErrInvalidData, filter.Status)
	}
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	periods := make([]Period, 0, len(rows))
	for _, r := range rows {
		periods = append(periods, r.Period)
	}
	disciplineGUIDs, employeeGUIDs := referencedGUIDs(periods)
	var disciplines, employees map[uuid.UUID]string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		disciplines, err = s.repo.Names(gctx, "disciplines", disciplineGUIDs)
		return err
	})
	g.Go(func() (err error) {
		employees, err = s.repo.Names(gctx, "employees", employeeGUIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return Page{}, err
	}
	out := Page{Data: make([]Summary, 0, len(rows)), Pagination: shared.NewPagination(filter.Page, filter.PerPage, total)}
	for _, r := range rows {
		out.Data = append(out.Data, Summary{
			GUID:                r.GUID,
			Status:              r.Status,
			Name:                DisplayName(r.Labels, r.ClassID),
			DisciplineSchedules: disciplineViews(r.DisciplineSchedules, disciplines, employees),
		})
	}
	return out, nil
}

// checkResources runs the reference and availability checks for p. Drafts only need their
// references to exist; every other status goes through the full availability sequence.
func (s *Service) checkResources(ctx context.Context, tx TxRepository, p Period, self uuid.UUID) error {
	module, err := tx.MatrixModule(ctx, p.MatrixModuleGUID)
	if err != nil {
		return err
	}
	if p.Status == StatusDraft {
		return checkReferences(ctx, tx, p)
	}
	if p.ClassID != "" {
		exists, err := tx.OfferingExists(ctx, p.MatrixModuleGUID, p.ClassID, self)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: class %s is already offered for this module", shared.ErrConflict, p.ClassID)
		}
	}
	shiftGUID := *p.ShiftGUID
	if err := availability.ValidateDisciplinesSchedule(module.Disciplines, p.DisciplineSchedules, shiftGUID); err != nil {
		return err
	}
	if err := availability.CheckInternalOverlap(p.DisciplineSchedules); err != nil {
		return err
	}
	classroom, err := tx.Classroom(ctx, *p.ClassroomGUID)
	if err != nil {
		return err
	}
	booked, err := tx.ClassroomBookings(ctx, classroom.GUID, shiftGUID)
	if err != nil {
		return err
	}
	if err := availability.CheckClassroom(classroom, shiftGUID, *p.Vacancies, p.DisciplineSchedules, booked, self); err != nil {
		return err
	}
	shift, err := tx.Shift(ctx, shiftGUID)
	if err != nil {
		return err
	}
	if err := availability.CheckShift(shift); err != nil {
		return err
	}
	for _, educator := range availability.Educators(p.DisciplineSchedules) {
		employee, err := tx.Employee(ctx, educator)
		if err != nil {
			return err
		}
		booked, err := tx.EmployeeBookings(ctx, educator)
		if err != nil {
			return err
		}
		if err := availability.CheckEmployee(employee, availability.ForEmployee(p.DisciplineSchedules, educator), booked, self); err != nil {
			return err
		}
	}
	return nil
}

func checkReferences(ctx context.Context, tx TxRepository, p Period) error {
	if p.ClassroomGUID != nil {
		if _, err := tx.Classroom(ctx, *p.ClassroomGUID); err != nil {
			return err
		}
	}
	if p.ShiftGUID != nil {
		if _, err := tx.Shift(ctx, *p.ShiftGUID); err != nil {
			return err
		}
	}
	for _, educator := range availability.Educators(p.DisciplineSchedules) {
		if _, err := tx.Employee(ctx, educator); err != nil {
			return err
		}
	}
	return nil
}

// checkEnrollmentWindow rejects moving an enrollment date that has already been reached,
// unless the period stays a draft or is in progress.
func (s *Service) checkEnrollmentWindow(current Period, target Status, input UpdateInput) error {
	if target == StatusDraft || target == StatusInProgress {
		return nil
	}
	today := s.today()
	reached := func(stored, next *time.Time) bool {
		return stored != nil && next != nil && !SameDay(*stored, *next) && !Day(*stored).After(today)
	}
	if reached(current.EnrollmentStartDate, input.EnrollmentStartDate) {
		return fmt.Errorf("%w: enrollment has already started", shared.ErrInvalidData)
	}
	if reached(current.EnrollmentEndDate, input.EnrollmentEndDate) {
		return fmt.Errorf("%w: enrollment has already ended", shared.ErrInvalidData)
	}
	return nil
}

func overlay(current Period, target Status, input UpdateInput) Period {
	next := current
	next.Status = target
	next.DisciplineSchedules = append([]schedule.DisciplineSchedule(nil), current.DisciplineSchedules...)
	if input.MatrixModuleGUID != nil {
		next.MatrixModuleGUID = *input.MatrixModuleGUID
	}
	if input.ClassID != nil {
		next.ClassID = *input.ClassID
	}
	if input.EnrollmentStartDate != nil {
		next.EnrollmentStartDate = dayPtr(input.EnrollmentStartDate)
	}
	if input.EnrollmentEndDate != nil {
		next.EnrollmentEndDate = dayPtr(input.EnrollmentEndDate)
	}
	if input.Deadline != nil {
		next.Deadline = dayPtr(input.Deadline)
	}
	if input.Vacancies != nil {
		next.Vacancies = input.Vacancies
	}
	if input.ClassroomGUID != nil {
		next.ClassroomGUID = input.ClassroomGUID
	}
	if input.ShiftGUID != nil {
		next.ShiftGUID = input.ShiftGUID
	}
	return next
}

// resolveSchedules loads the class slots referenced by inputs. Unknown slots are NotFound.
func resolveSchedules(ctx context.Context, tx TxRepository, inputs []DisciplineScheduleInput) ([]schedule.DisciplineSchedule, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	var guids []uuid.UUID
	for _, in := range inputs {
		guids = append(guids, in.ScheduleGUIDs...)
	}
	slots, err := tx.Schedules(ctx, guids)
	if err != nil {
		return nil, err
	}
	byGUID := make(map[uuid.UUID]schedule.Schedule, len(slots))
	for _, slot := range slots {
		byGUID[slot.GUID] = slot
	}
	out := make([]schedule.DisciplineSchedule, 0, len(inputs))
	for _, in := range inputs {
		ds := schedule.DisciplineSchedule{GUID: in.GUID, EmployeeGUID: in.EmployeeGUID, DisciplineGUID: in.DisciplineGUID}
		for _, id := range in.ScheduleGUIDs {
			slot, ok := byGUID[id]
			if !ok {
				return nil, fmt.Errorf("%w: schedule %s", shared.ErrNotFound, id)
			}
			ds.Schedules = append(ds.Schedules, slot)
		}
		out = append(out, ds)
	}
	return out, nil
}

// ownedBy rejects proposed assignments that name a discipline schedule of another period.
func ownedBy(current Period, proposed []schedule.DisciplineSchedule) error {
	known := make(map[uuid.UUID]struct{}, len(current.DisciplineSchedules))
	for _, ds := range current.DisciplineSchedules {
		known[ds.GUID] = struct{}{}
	}
	seen := make(map[uuid.UUID]struct{}, len(proposed))
	for _, ds := range proposed {
		if ds.GUID == uuid.Nil {
			continue
		}
		if _, ok := known[ds.GUID]; !ok {
			return fmt.Errorf("%w: discipline schedule %s", shared.ErrNotFound, ds.GUID)
		}
		if _, dup := seen[ds.GUID]; dup {
			return fmt.Errorf("%w: discipline schedule %s listed twice", shared.ErrConflict, ds.GUID)
		}
		seen[ds.GUID] = struct{}{}
	}
	return nil
}

func (s *Service) record(ctx context.Context, action string, guid uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "period",
		EntityID: guid.String(),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := Day(*t)
	return &d
}
