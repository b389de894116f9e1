package period

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/catalog"
	"github.com/odyssey-erp/odyssey-academic/internal/schedule"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// memRepo is an in-memory Repository and TxRepository. WithTx snapshots the periods and
// restores them when fn fails.
type memRepo struct {
	periods    map[uuid.UUID]Period
	modules    map[uuid.UUID]catalog.MatrixModule
	classrooms map[uuid.UUID]catalog.Classroom
	shifts     map[uuid.UUID]catalog.Shift
	employees  map[uuid.UUID]catalog.Employee
	slots      map[uuid.UUID]schedule.Schedule
	names      map[uuid.UUID]string
	enrolled   map[uuid.UUID]int

	failScheduleInsert error
	getCalls           int
	// afterGet runs once, after the next Get has read its period.
	afterGet           func()
	created            time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		periods:    map[uuid.UUID]Period{},
		modules:    map[uuid.UUID]catalog.MatrixModule{},
		classrooms: map[uuid.UUID]catalog.Classroom{},
		shifts:     map[uuid.UUID]catalog.Shift{},
		employees:  map[uuid.UUID]catalog.Employee{},
		slots:      map[uuid.UUID]schedule.Schedule{},
		names:      map[uuid.UUID]string{},
		enrolled:   map[uuid.UUID]int{},
		created:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func clonePeriod(p Period) Period {
	out := p
	out.DisciplineSchedules = nil
	for _, ds := range p.DisciplineSchedules {
		ds.Schedules = append([]schedule.Schedule(nil), ds.Schedules...)
		out.DisciplineSchedules = append(out.DisciplineSchedules, ds)
	}
	return out
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[uuid.UUID]Period, len(m.periods))
	for k, v := range m.periods {
		snapshot[k] = clonePeriod(v)
	}
	if err := fn(ctx, m); err != nil {
		m.periods = snapshot
		return err
	}
	return nil
}

func (m *memRepo) MatrixModule(_ context.Context, guid uuid.UUID) (catalog.MatrixModule, error) {
	mod, ok := m.modules[guid]
	if !ok {
		return catalog.MatrixModule{}, fmt.Errorf("%w: matrix module %s", shared.ErrNotFound, guid)
	}
	return mod, nil
}

func (m *memRepo) Classroom(_ context.Context, guid uuid.UUID) (catalog.Classroom, error) {
	c, ok := m.classrooms[guid]
	if !ok {
		return catalog.Classroom{}, fmt.Errorf("%w: classroom %s", shared.ErrNotFound, guid)
	}
	return c, nil
}

func (m *memRepo) Shift(_ context.Context, guid uuid.UUID) (catalog.Shift, error) {
	s, ok := m.shifts[guid]
	if !ok {
		return catalog.Shift{}, fmt.Errorf("%w: shift %s", shared.ErrNotFound, guid)
	}
	return s, nil
}

func (m *memRepo) Employee(_ context.Context, guid uuid.UUID) (catalog.Employee, error) {
	e, ok := m.employees[guid]
	if !ok {
		return catalog.Employee{}, fmt.Errorf("%w: employee %s", shared.ErrNotFound, guid)
	}
	return e, nil
}

func (m *memRepo) Schedules(_ context.Context, guids []uuid.UUID) ([]schedule.Schedule, error) {
	var out []schedule.Schedule
	for _, g := range guids {
		if s, ok := m.slots[g]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRepo) Names(_ context.Context, _ string, guids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := map[uuid.UUID]string{}
	for _, g := range guids {
		if n, ok := m.names[g]; ok {
			out[g] = n
		}
	}
	return out, nil
}

func (m *memRepo) Get(_ context.Context, guid uuid.UUID) (Period, error) {
	m.getCalls++
	p, ok := m.periods[guid]
	if !ok {
		return Period{}, fmt.Errorf("%w: period %s", shared.ErrNotFound, guid)
	}
	p = clonePeriod(p)
	if hook := m.afterGet; hook != nil {
		m.afterGet = nil
		hook()
	}
	return p, nil
}

func (m *memRepo) List(_ context.Context, filter ListFilter) ([]ListRow, int, error) {
	var rows []ListRow
	for _, p := range m.periods {
		mod := m.modules[p.MatrixModuleGUID]
		labels := Labels{Course: mod.CourseName, Matrix: mod.MatrixName, Module: mod.Name}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if term := strings.ToLower(filter.SearchTerm); term != "" &&
			!strings.Contains(strings.ToLower(DisplayName(labels, p.ClassID)), term) {
			continue
		}
		rows = append(rows, ListRow{Period: clonePeriod(p), Labels: labels})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	total := len(rows)
	start := (filter.Page - 1) * filter.PerPage
	if start > total {
		start = total
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	return rows[start:end], total, nil
}

func (m *memRepo) EnrolledCount(_ context.Context, guid uuid.UUID) (int, error) {
	return m.enrolled[guid], nil
}

func (m *memRepo) GetForUpdate(ctx context.Context, guid uuid.UUID) (Period, error) {
	return m.Get(ctx, guid)
}

func (m *memRepo) OfferingExists(_ context.Context, module uuid.UUID, classID string, exclude uuid.UUID) (bool, error) {
	for _, p := range m.periods {
		if p.GUID == exclude || p.MatrixModuleGUID != module || p.ClassID != classID {
			continue
		}
		if p.Status != StatusDraft && !p.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) bookings(match func(Period, schedule.DisciplineSchedule) bool) []schedule.DisciplineSchedule {
	var out []schedule.DisciplineSchedule
	for _, p := range m.periods {
		if !p.Status.Live() {
			continue
		}
		for _, ds := range p.DisciplineSchedules {
			if match(p, ds) {
				out = append(out, ds)
			}
		}
	}
	return out
}

func (m *memRepo) ClassroomBookings(_ context.Context, classroom, _ uuid.UUID) ([]schedule.DisciplineSchedule, error) {
	return m.bookings(func(p Period, _ schedule.DisciplineSchedule) bool {
		return p.ClassroomGUID != nil && *p.ClassroomGUID == classroom
	}), nil
}

func (m *memRepo) EmployeeBookings(_ context.Context, employee uuid.UUID) ([]schedule.DisciplineSchedule, error) {
	return m.bookings(func(_ Period, ds schedule.DisciplineSchedule) bool {
		return ds.EmployeeGUID == employee
	}), nil
}

func (m *memRepo) InsertPeriod(_ context.Context, p Period) (Period, error) {
	if p.GUID == uuid.Nil {
		p.GUID = uuid.New()
	}
	m.created = m.created.Add(time.Minute)
	p.CreatedAt, p.UpdatedAt = m.created, m.created
	stored := clonePeriod(p)
	stored.DisciplineSchedules = nil
	m.periods[p.GUID] = stored
	return p, nil
}

func (m *memRepo) UpdatePeriod(_ context.Context, p Period) (Period, error) {
	current, ok := m.periods[p.GUID]
	if !ok {
		return Period{}, fmt.Errorf("%w: period %s", shared.ErrNotFound, p.GUID)
	}
	stored := clonePeriod(p)
	stored.DisciplineSchedules = current.DisciplineSchedules
	m.periods[p.GUID] = stored
	return p, nil
}

func (m *memRepo) InsertDisciplineSchedule(_ context.Context, ds schedule.DisciplineSchedule) (schedule.DisciplineSchedule, error) {
	if m.failScheduleInsert != nil {
		return schedule.DisciplineSchedule{}, m.failScheduleInsert
	}
	p, ok := m.periods[ds.PeriodGUID]
	if !ok {
		return schedule.DisciplineSchedule{}, errors.New("period missing")
	}
	if ds.GUID == uuid.Nil {
		ds.GUID = uuid.New()
	}
	p.DisciplineSchedules = append(p.DisciplineSchedules, ds)
	m.periods[ds.PeriodGUID] = p
	return ds, nil
}

func (m *memRepo) UpdateDisciplineSchedule(_ context.Context, ds schedule.DisciplineSchedule) error {
	p := m.periods[ds.PeriodGUID]
	for i := range p.DisciplineSchedules {
		if p.DisciplineSchedules[i].GUID == ds.GUID {
			p.DisciplineSchedules[i] = ds
			return nil
		}
	}
	return fmt.Errorf("%w: discipline schedule %s", shared.ErrNotFound, ds.GUID)
}

func (m *memRepo) DeleteDisciplineSchedules(_ context.Context, guids []uuid.UUID) error {
	drop := map[uuid.UUID]struct{}{}
	for _, g := range guids {
		drop[g] = struct{}{}
	}
	for id, p := range m.periods {
		kept := p.DisciplineSchedules[:0]
		for _, ds := range p.DisciplineSchedules {
			if _, ok := drop[ds.GUID]; !ok {
				kept = append(kept, ds)
			}
		}
		p.DisciplineSchedules = kept
		m.periods[id] = p
	}
	return nil
}

func (m *memRepo) DueForTransition(_ context.Context, from Status, field DateField, day time.Time) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, p := range m.periods {
		if p.Status != from {
			continue
		}
		var d *time.Time
		switch field {
		case FieldEnrollmentStart:
			d = p.EnrollmentStartDate
		case FieldEnrollmentEnd:
			d = p.EnrollmentEndDate
		case FieldDeadline:
			d = p.Deadline
		}
		if d != nil && SameDay(*d, day) {
			out = append(out, p.GUID)
		}
	}
	return out, nil
}

func (m *memRepo) UpdateStatuses(_ context.Context, guids []uuid.UUID, from, to Status) (int64, error) {
	var n int64
	for _, g := range guids {
		p, ok := m.periods[g]
		if !ok || p.Status != from {
			continue
		}
		p.Status = to
		m.periods[g] = p
		n++
	}
	return n, nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}
