package period

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-academic/internal/catalog"
	"github.com/odyssey-erp/odyssey-academic/internal/schedule"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

type fixture struct {
	repo  *memRepo
	svc   *Service
	audit *recordingAudit

	module     uuid.UUID
	room       uuid.UUID
	otherRoom  uuid.UUID
	shift      uuid.UUID
	math       uuid.UUID
	physics    uuid.UUID
	educators  [4]uuid.UUID
	secretary  uuid.UUID
	mon1, mon2 uuid.UUID
	tue1, wed1 uuid.UUID
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func intp(v int) *int { return &v }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      newMemRepo(),
		audit:     &recordingAudit{},
		module:    uuid.New(),
		room:      uuid.New(),
		otherRoom: uuid.New(),
		shift:     uuid.New(),
		math:      uuid.New(),
		physics:   uuid.New(),
		secretary: uuid.New(),
	}
	f.repo.modules[f.module] = catalog.MatrixModule{
		GUID: f.module, Name: "Módulo 1", MatrixName: "2024", CourseName: "Técnico em Enfermagem",
		Disciplines: []catalog.Discipline{
			{GUID: f.math, Name: "Matemática", WeeklyClasses: 2, Status: shared.StatusActive},
			{GUID: f.physics, Name: "Física", WeeklyClasses: 1, Status: shared.StatusActive},
		},
	}
	f.repo.names[f.math] = "Matemática"
	f.repo.names[f.physics] = "Física"
	for _, room := range []struct {
		id       uuid.UUID
		capacity int
	}{{f.room, 30}, {f.otherRoom, 40}} {
		f.repo.classrooms[room.id] = catalog.Classroom{GUID: room.id, Name: "Sala", Capacity: room.capacity, Status: shared.StatusActive}
	}
	f.repo.shifts[f.shift] = catalog.Shift{GUID: f.shift, Name: "Noite", Status: shared.StatusActive}
	for i := range f.educators {
		f.educators[i] = uuid.New()
		f.repo.employees[f.educators[i]] = catalog.Employee{
			GUID: f.educators[i], Name: "Professor", Roles: []catalog.EmployeeRole{catalog.RoleEducator}, Status: shared.StatusActive,
		}
		f.repo.names[f.educators[i]] = "Professor"
	}
	f.repo.employees[f.secretary] = catalog.Employee{
		GUID: f.secretary, Roles: []catalog.EmployeeRole{catalog.RoleSecretary}, Status: shared.StatusActive,
	}
	addSlot := func(day schedule.DayOfWeek, n, sh, sm, eh, em int) uuid.UUID {
		s := schedule.Schedule{
			GUID: uuid.New(), ShiftGUID: f.shift, DayOfWeek: day, ClassNumber: n,
			StartTime: schedule.MustClock(sh, sm), EndTime: schedule.MustClock(eh, em), Status: shared.StatusActive,
		}
		f.repo.slots[s.GUID] = s
		return s.GUID
	}
	f.mon1 = addSlot(schedule.Monday, 1, 19, 0, 19, 50)
	f.mon2 = addSlot(schedule.Monday, 2, 19, 50, 20, 40)
	f.tue1 = addSlot(schedule.Tuesday, 1, 19, 0, 19, 50)
	f.wed1 = addSlot(schedule.Wednesday, 1, 19, 0, 19, 50)

	f.svc = NewService(f.repo, f.audit, nil)
	f.svc.WithNow(func() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC) })
	return f
}

func (f *fixture) complete(classID string, room uuid.UUID, mathBy, physicsBy uuid.UUID) CreateInput {
	return CreateInput{
		Status:              StatusNotStarted,
		MatrixModuleGUID:    f.module,
		ClassID:             classID,
		EnrollmentStartDate: date(2024, 3, 1),
		EnrollmentEndDate:   date(2024, 3, 10),
		Deadline:            date(2024, 7, 1),
		Vacancies:           intp(25),
		ClassroomGUID:       &room,
		ShiftGUID:           &f.shift,
		DisciplineSchedules: []DisciplineScheduleInput{
			{EmployeeGUID: mathBy, DisciplineGUID: f.math, ScheduleGUIDs: []uuid.UUID{f.mon1, f.mon2}},
			{EmployeeGUID: physicsBy, DisciplineGUID: f.physics, ScheduleGUIDs: []uuid.UUID{f.tue1}},
		},
	}
}

func TestCreateDraftNeedsOnlyModule(t *testing.T) {
	f := newFixture(t)
	details, err := f.svc.Create(context.Background(), CreateInput{MatrixModuleGUID: f.module})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, details.Status)
	assert.Equal(t, "Técnico em Enfermagem/2024 - Módulo 1", details.Name)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, "period.create", f.audit.logs[0].Action)
}

func TestCreateRejectsUnknownModule(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateInput{MatrixModuleGUID: uuid.New()})
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, f.repo.periods)
}

func TestCreateRejectsLifecycleStatus(t *testing.T) {
	f := newFixture(t)
	in := f.complete("A", f.room, f.educators[0], f.educators[1])
	in.Status = StatusOpenForEnrollment
	_, err := f.svc.Create(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrInvalidData)
}

func TestCreateCompletePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := shared.ContextWithActor(context.Background(), "user-7")
	details, err := f.svc.Create(ctx, f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)

	assert.Equal(t, StatusNotStarted, details.Status)
	assert.Equal(t, "Técnico em Enfermagem/2024 - Módulo 1 (Turma A)", details.Name)
	assert.Equal(t, "Sala", details.Classroom)
	assert.Equal(t, "Noite", details.Shift)
	require.Len(t, details.DisciplineSchedules, 2)
	assert.Equal(t, "Matemática", details.DisciplineSchedules[0].Name)
	assert.Len(t, details.DisciplineSchedules[0].Schedules, 2)
	assert.Equal(t, "segunda-feira", details.DisciplineSchedules[0].Schedules[0].DayLabel)

	stored := f.repo.periods[details.GUID]
	require.Len(t, stored.DisciplineSchedules, 2)
	for _, ds := range stored.DisciplineSchedules {
		assert.Equal(t, details.GUID, ds.PeriodGUID)
	}
	assert.Equal(t, "user-7", f.audit.logs[0].ActorID)
}

func TestCreateRequiresFieldsOutsideDraft(t *testing.T) {
	f := newFixture(t)
	in := f.complete("A", f.room, f.educators[0], f.educators[1])
	in.Vacancies = nil
	_, err := f.svc.Create(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrInvalidData)
	assert.Contains(t, err.Error(), "vacancies")
}

func TestCreateRejectsVacanciesAboveCapacity(t *testing.T) {
	f := newFixture(t)
	in := f.complete("A", f.room, f.educators[0], f.educators[1])
	in.Vacancies = intp(35)
	_, err := f.svc.Create(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrInvalidData)
	assert.Empty(t, f.repo.periods)
}

func TestCreateRejectsWrongWeeklyClassCount(t *testing.T) {
	f := newFixture(t)
	in := f.complete("A", f.room, f.educators[0], f.educators[1])
	in.DisciplineSchedules[0].ScheduleGUIDs = []uuid.UUID{f.mon1}
	_, err := f.svc.Create(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrInvalidData)
}

func TestCreateRejectsUnknownSchedule(t *testing.T) {
	f := newFixture(t)
	in := f.complete("A", f.room, f.educators[0], f.educators[1])
	in.DisciplineSchedules[1].ScheduleGUIDs = []uuid.UUID{uuid.New()}
	_, err := f.svc.Create(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateRejectsDuplicateDiscipline(t *testing.T) {
	f := newFixture(t)
	in := CreateInput{
		MatrixModuleGUID: f.module,
		DisciplineSchedules: []DisciplineScheduleInput{
			{EmployeeGUID: f.educators[0], DisciplineGUID: f.math, ScheduleGUIDs: []uuid.UUID{f.mon1}},
			{EmployeeGUID: f.educators[1], DisciplineGUID: f.math, ScheduleGUIDs: []uuid.UUID{f.tue1}},
		},
	}
	_, err := f.svc.Create(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateRejectsDuplicateOffering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.complete("A", f.otherRoom, f.educators[2], f.educators[3]))
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateDetectsClassroomConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.complete("B", f.room, f.educators[2], f.educators[3]))
	require.ErrorIs(t, err, shared.ErrScheduleConflict)
	assert.Contains(t, err.Error(), "classroom")
	assert.Len(t, f.repo.periods, 1)
}

func TestCreateDetectsEducatorConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.complete("B", f.otherRoom, f.educators[0], f.educators[3]))
	require.ErrorIs(t, err, shared.ErrScheduleConflict)
	assert.Contains(t, err.Error(), "educator")
}

func TestDraftPeriodsDoNotBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.complete("A", f.room, f.educators[0], f.educators[1])
	draft.Status = StatusDraft
	_, err := f.svc.Create(ctx, draft)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.complete("B", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)
}

func TestCreateRejectsUnavailableEducator(t *testing.T) {
	f := newFixture(t)
	inactive := f.repo.employees[f.educators[1]]
	inactive.Status = shared.StatusInactive
	f.repo.employees[f.educators[1]] = inactive

	_, err := f.svc.Create(context.Background(), f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.ErrorIs(t, err, shared.ErrUnavailable)

	_, err = f.svc.Create(context.Background(), f.complete("A", f.room, f.educators[0], f.secretary))
	require.ErrorIs(t, err, shared.ErrInvalidData)
}

func TestCreateRejectsInactiveShift(t *testing.T) {
	f := newFixture(t)
	f.repo.shifts[f.shift] = catalog.Shift{GUID: f.shift, Status: shared.StatusInactive}
	_, err := f.svc.Create(context.Background(), f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.ErrorIs(t, err, shared.ErrUnavailable)
}

func TestCreateRollsBackOnScheduleFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.failScheduleInsert = errors.New("insert failed")
	_, err := f.svc.Create(context.Background(), f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.Error(t, err)
	assert.Empty(t, f.repo.periods)
	assert.Empty(t, f.audit.logs)
}

func TestUpdateDoesNotConflictWithItself(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, created.GUID, UpdateInput{Vacancies: intp(20)})
	require.NoError(t, err)
	assert.Equal(t, 20, *updated.Vacancies)
}

func TestUpdateDiffsDisciplineSchedules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)

	var mathGUID, physicsGUID uuid.UUID
	for _, ds := range f.repo.periods[created.GUID].DisciplineSchedules {
		if ds.DisciplineGUID == f.math {
			mathGUID = ds.GUID
		} else {
			physicsGUID = ds.GUID
		}
	}
	next := []DisciplineScheduleInput{
		{GUID: mathGUID, EmployeeGUID: f.educators[2], DisciplineGUID: f.math, ScheduleGUIDs: []uuid.UUID{f.mon1, f.mon2}},
		{EmployeeGUID: f.educators[1], DisciplineGUID: f.physics, ScheduleGUIDs: []uuid.UUID{f.wed1}},
	}
	_, err = f.svc.Update(ctx, created.GUID, UpdateInput{DisciplineSchedules: &next})
	require.NoError(t, err)

	stored := f.repo.periods[created.GUID].DisciplineSchedules
	require.Len(t, stored, 2)
	byDiscipline := map[uuid.UUID]schedule.DisciplineSchedule{}
	for _, ds := range stored {
		byDiscipline[ds.DisciplineGUID] = ds
	}
	assert.Equal(t, mathGUID, byDiscipline[f.math].GUID)
	assert.Equal(t, f.educators[2], byDiscipline[f.math].EmployeeGUID)
	assert.NotEqual(t, physicsGUID, byDiscipline[f.physics].GUID)
	assert.Equal(t, f.wed1, byDiscipline[f.physics].Schedules[0].GUID)

	last := f.audit.logs[len(f.audit.logs)-1]
	assert.Equal(t, "period.update", last.Action)
	assert.Equal(t, 1, last.Meta["schedules_created"])
	assert.Equal(t, 1, last.Meta["schedules_updated"])
	assert.Equal(t, 1, last.Meta["schedules_deleted"])
}

func TestUpdateRejectsForeignDisciplineSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, CreateInput{MatrixModuleGUID: f.module})
	require.NoError(t, err)

	next := []DisciplineScheduleInput{{GUID: uuid.New(), EmployeeGUID: f.educators[0], DisciplineGUID: f.math, ScheduleGUIDs: []uuid.UUID{f.mon1}}}
	_, err = f.svc.Update(ctx, created.GUID, UpdateInput{DisciplineSchedules: &next})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdatePromotesDraftWithFullValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, CreateInput{MatrixModuleGUID: f.module, ClassID: "A"})
	require.NoError(t, err)

	status := StatusNotStarted
	_, err = f.svc.Update(ctx, created.GUID, UpdateInput{Status: &status})
	require.ErrorIs(t, err, shared.ErrInvalidData)
	assert.Equal(t, StatusDraft, f.repo.periods[created.GUID].Status)

	full := f.complete("A", f.room, f.educators[0], f.educators[1])
	schedules := full.DisciplineSchedules
	updated, err := f.svc.Update(ctx, created.GUID, UpdateInput{
		Status:              &status,
		EnrollmentStartDate: full.EnrollmentStartDate,
		EnrollmentEndDate:   full.EnrollmentEndDate,
		Deadline:            full.Deadline,
		Vacancies:           full.Vacancies,
		ClassroomGUID:       full.ClassroomGUID,
		ShiftGUID:           full.ShiftGUID,
		DisciplineSchedules: &schedules,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusNotStarted, updated.Status)
	assert.Len(t, f.repo.periods[created.GUID].DisciplineSchedules, 2)
}

func TestUpdateGuardsTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)

	status := StatusInProgress
	_, err = f.svc.Update(ctx, created.GUID, UpdateInput{Status: &status})
	require.ErrorIs(t, err, shared.ErrInvalidData)

	back := StatusDraft
	_, err = f.svc.Update(ctx, created.GUID, UpdateInput{Status: &back})
	require.ErrorIs(t, err, shared.ErrInvalidData)
	assert.Equal(t, StatusNotStarted, f.repo.periods[created.GUID].Status)

	p := f.repo.periods[created.GUID]
	p.Status = StatusFinished
	f.repo.periods[created.GUID] = p
	_, err = f.svc.Update(ctx, created.GUID, UpdateInput{Vacancies: intp(20)})
	require.ErrorIs(t, err, shared.ErrInvalidData)
}

func TestUpdateRejectsMovingReachedEnrollmentWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)
	f.svc.WithNow(func() time.Time { return time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC) })

	_, err = f.svc.Update(ctx, created.GUID, UpdateInput{EnrollmentStartDate: date(2024, 3, 2)})
	require.ErrorIs(t, err, shared.ErrInvalidData)
	assert.Contains(t, err.Error(), "already started")

	// an unchanged date is not an edit
	_, err = f.svc.Update(ctx, created.GUID, UpdateInput{EnrollmentStartDate: date(2024, 3, 1)})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, created.GUID, UpdateInput{EnrollmentEndDate: date(2024, 3, 20)})
	require.NoError(t, err)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)

	canceled, err := f.svc.Cancel(ctx, created.GUID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, canceled.Status)

	_, err = f.svc.Cancel(ctx, created.GUID)
	require.ErrorIs(t, err, shared.ErrInvalidData)

	// a canceled period frees its slots
	_, err = f.svc.Create(ctx, f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)
}

func TestCancelThroughUpdateSkipsFieldValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)

	status := StatusCanceled
	updated, err := f.svc.Update(ctx, created.GUID, UpdateInput{Status: &status, Vacancies: intp(500)})
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, updated.Status)
	assert.Equal(t, 25, *updated.Vacancies)

	p := f.repo.periods[created.GUID]
	p.Status = StatusOpenForEnrollment
	f.repo.periods[created.GUID] = p
	_, err = f.svc.Update(ctx, created.GUID, UpdateInput{Status: &status})
	require.ErrorIs(t, err, shared.ErrInvalidData)
}

func TestGetSimplified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)

	out, err := f.svc.GetSimplified(ctx, created.GUID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, out.Name)
	assert.Equal(t, 25, *out.Vacancies)

	_, err = f.svc.GetSimplified(ctx, uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, classID := range []string{"A", "B", "C"} {
		_, err := f.svc.Create(ctx, CreateInput{MatrixModuleGUID: f.module, ClassID: classID})
		require.NoError(t, err)
	}
	_, err := f.svc.Create(ctx, f.complete("D", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)

	page, err := f.svc.List(ctx, ListFilter{Status: StatusDraft, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Contains(t, page.Data[0].Name, "(Turma C)")

	page, err = f.svc.List(ctx, ListFilter{SearchTerm: "turma d"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	require.Len(t, page.Data[0].DisciplineSchedules, 2)
	assert.Equal(t, "Professor", page.Data[0].DisciplineSchedules[0].Educator)

	_, err = f.svc.List(ctx, ListFilter{Status: "archived"})
	require.ErrorIs(t, err, shared.ErrInvalidData)
}

func TestAdvanceLifecycle(t *testing.T) {
	f := newFixture(t)
	today := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	put := func(status Status, start, end, deadline *time.Time) uuid.UUID {
		id := uuid.New()
		f.repo.periods[id] = Period{GUID: id, Status: status, MatrixModuleGUID: f.module,
			EnrollmentStartDate: start, EnrollmentEndDate: end, Deadline: deadline}
		return id
	}
	opening := put(StatusNotStarted, date(2024, 3, 10), date(2024, 3, 20), date(2024, 7, 1))
	closing := put(StatusOpenForEnrollment, date(2024, 3, 1), date(2024, 3, 10), date(2024, 7, 1))
	ending := put(StatusInProgress, date(2024, 1, 1), date(2024, 1, 10), date(2024, 3, 10))
	sameDay := put(StatusNotStarted, date(2024, 3, 10), date(2024, 3, 10), date(2024, 7, 1))
	draft := put(StatusDraft, date(2024, 3, 10), nil, nil)

	report, err := f.svc.AdvanceLifecycle(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, int64(5), report.Total())

	assert.Equal(t, StatusOpenForEnrollment, f.repo.periods[opening].Status)
	assert.Equal(t, StatusInProgress, f.repo.periods[closing].Status)
	assert.Equal(t, StatusFinished, f.repo.periods[ending].Status)
	assert.Equal(t, StatusInProgress, f.repo.periods[sameDay].Status)
	assert.Equal(t, StatusDraft, f.repo.periods[draft].Status)

	again, err := f.svc.AdvanceLifecycle(context.Background(), today)
	require.NoError(t, err)
	assert.Zero(t, again.Total())
}

func TestTodayUsesLocation(t *testing.T) {
	f := newFixture(t)
	loc := time.FixedZone("BRT", -3*60*60)
	f.svc.WithLocation(loc)
	f.svc.WithNow(func() time.Time { return time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC) })
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), f.svc.Today())
}

func TestUpdateReturnsCommittedStateDuringConcurrentRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)

	started, release := make(chan struct{}), make(chan struct{})
	f.repo.afterGet = func() {
		close(started)
		<-release
	}
	read := make(chan Details, 1)
	go func() {
		d, _ := f.svc.Get(ctx, created.GUID)
		read <- d
	}()
	<-started

	updated, err := f.svc.Update(ctx, created.GUID, UpdateInput{Vacancies: intp(10)})
	require.NoError(t, err)
	assert.Equal(t, 10, *updated.Vacancies)

	close(release)
	assert.Equal(t, 25, *(<-read).Vacancies)

	fresh, err := f.svc.Get(ctx, created.GUID)
	require.NoError(t, err)
	assert.Equal(t, 10, *fresh.Vacancies)
}

func TestGetHonoursEachCallersContext(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)

	started, release := make(chan struct{}), make(chan struct{})
	f.repo.afterGet = func() {
		close(started)
		<-release
	}
	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := f.svc.Get(ctx, created.GUID)
		first <- err
	}()
	<-started

	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	second := make(chan error, 1)
	go func() {
		_, err := f.svc.Get(context.Background(), created.GUID)
		second <- err
	}()
	close(release)
	require.NoError(t, <-second)
}

func TestEducatorSchedulesGroupsByShiftAndDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.names[f.room] = "Sala 1"
	f.repo.names[f.otherRoom] = "Sala 2"
	f.repo.names[f.shift] = "Noite"
	f.repo.employees[f.educators[0]] = catalog.Employee{
		GUID: f.educators[0], Name: "Marta", Roles: []catalog.EmployeeRole{catalog.RoleEducator}, Status: shared.StatusActive,
	}
	a, err := f.svc.Create(ctx, f.complete("A", f.room, f.educators[0], f.educators[1]))
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, f.complete("B", f.otherRoom, f.educators[2], f.educators[0]))
	require.NoError(t, err)

	got, err := f.svc.EducatorSchedules(ctx, f.educators[0])
	require.NoError(t, err)
	assert.Equal(t, "Marta", got.Educator)
	require.Len(t, got.Shifts, 1)
	assert.Equal(t, "Noite", got.Shifts[0].Shift)

	days := got.Shifts[0].Days
	require.Len(t, days, 2)
	assert.Equal(t, schedule.Monday, days[0].DayOfWeek)
	assert.Equal(t, "segunda-feira", days[0].DayLabel)
	require.Len(t, days[0].Classes, 2)
	assert.Equal(t, f.mon1, days[0].Classes[0].GUID)
	assert.Equal(t, f.mon2, days[0].Classes[1].GUID)
	assert.Equal(t, a.GUID, days[0].Classes[0].PeriodGUID)
	assert.Equal(t, "Matemática", days[0].Classes[0].Discipline)
	assert.Equal(t, "Sala 1", days[0].Classes[0].Classroom)
	assert.Equal(t, "Técnico em Enfermagem", days[0].Classes[0].Course)

	assert.Equal(t, schedule.Tuesday, days[1].DayOfWeek)
	require.Len(t, days[1].Classes, 1)
	assert.Equal(t, b.GUID, days[1].Classes[0].PeriodGUID)
	assert.Equal(t, "Física", days[1].Classes[0].Discipline)
	assert.Equal(t, "Sala 2", days[1].Classes[0].Classroom)

	_, err = f.svc.Cancel(ctx, b.GUID)
	require.NoError(t, err)
	got, err = f.svc.EducatorSchedules(ctx, f.educators[0])
	require.NoError(t, err)
	require.Len(t, got.Shifts, 1)
	require.Len(t, got.Shifts[0].Days, 1)
	assert.Equal(t, schedule.Monday, got.Shifts[0].Days[0].DayOfWeek)
}

func TestEducatorSchedulesRequiresEducator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.EducatorSchedules(ctx, f.secretary)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.svc.EducatorSchedules(ctx, uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)

	got, err := f.svc.EducatorSchedules(ctx, f.educators[3])
	require.NoError(t, err)
	assert.NotNil(t, got.Shifts)
	assert.Empty(t, got.Shifts)
}
