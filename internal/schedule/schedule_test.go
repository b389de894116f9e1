package schedule

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

func validSlot() Schedule {
	return Schedule{
		GUID:        uuid.New(),
		ShiftGUID:   uuid.New(),
		DayOfWeek:   Wednesday,
		ClassNumber: 2,
		StartTime:   MustClock(8, 50),
		EndTime:     MustClock(9, 40),
		Status:      shared.StatusActive,
	}
}

func TestScheduleValidate(t *testing.T) {
	require.NoError(t, validSlot().Validate())

	mutations := map[string]func(*Schedule){
		"missing shift":   func(s *Schedule) { s.ShiftGUID = uuid.Nil },
		"bad day":         func(s *Schedule) { s.DayOfWeek = "funday" },
		"class zero":      func(s *Schedule) { s.ClassNumber = 0 },
		"class seven":     func(s *Schedule) { s.ClassNumber = 7 },
		"end before":      func(s *Schedule) { s.EndTime = MustClock(8, 0) },
		"start equal end": func(s *Schedule) { s.EndTime = s.StartTime },
		"bad status":      func(s *Schedule) { s.Status = "archived" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			s := validSlot()
			mutate(&s)
			require.ErrorIs(t, s.Validate(), shared.ErrInvalidData)
		})
	}
}

func TestDayLabels(t *testing.T) {
	assert.Equal(t, "terça-feira", Tuesday.Label(false))
	assert.Equal(t, "sab", Saturday.Label(true))
	assert.Len(t, AllDays, 7)
	for _, d := range AllDays {
		assert.True(t, d.Valid())
	}
}

func TestDisciplineScheduleValidate(t *testing.T) {
	slot := validSlot()
	ds := DisciplineSchedule{EmployeeGUID: uuid.New(), DisciplineGUID: uuid.New(), Schedules: []Schedule{slot}}
	require.NoError(t, ds.Validate())

	noEmployee := ds
	noEmployee.EmployeeGUID = uuid.Nil
	require.ErrorIs(t, noEmployee.Validate(), shared.ErrInvalidData)

	empty := ds
	empty.Schedules = nil
	require.ErrorIs(t, empty.Validate(), shared.ErrInvalidData)

	twice := ds
	twice.Schedules = []Schedule{slot, slot}
	require.ErrorIs(t, twice.Validate(), shared.ErrInvalidData)
}

func TestSameAssignmentIgnoresSlotOrder(t *testing.T) {
	a, b := validSlot(), validSlot()
	ds := DisciplineSchedule{EmployeeGUID: uuid.New(), DisciplineGUID: uuid.New(), Schedules: []Schedule{a, b}}
	reordered := ds
	reordered.Schedules = []Schedule{b, a}
	assert.True(t, ds.SameAssignment(reordered))

	swapped := ds
	swapped.EmployeeGUID = uuid.New()
	assert.False(t, ds.SameAssignment(swapped))

	fewer := ds
	fewer.Schedules = []Schedule{a}
	assert.False(t, ds.SameAssignment(fewer))
}

func TestFindCollision(t *testing.T) {
	morning := validSlot()
	clash := morning
	clash.GUID = uuid.New()
	clash.StartTime = MustClock(9, 0)
	clash.EndTime = MustClock(10, 0)
	later := morning
	later.GUID = uuid.New()
	later.StartTime = MustClock(9, 40)
	later.EndTime = MustClock(10, 30)

	proposed := []DisciplineSchedule{{Schedules: []Schedule{morning}}}
	booked := DisciplineSchedule{PeriodGUID: uuid.New(), Schedules: []Schedule{later, clash}}

	hit, ok := FindCollision(proposed, []DisciplineSchedule{booked})
	require.True(t, ok)
	assert.Equal(t, clash.GUID, hit.Existing.GUID)
	assert.Contains(t, hit.String(), "quarta-feira")

	_, ok = FindCollision(proposed, []DisciplineSchedule{{Schedules: []Schedule{later}}})
	assert.False(t, ok)
}
