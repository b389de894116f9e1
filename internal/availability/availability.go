// Package availability decides whether classrooms, shifts and educators can take on a
// proposed set of discipline schedules. Every check is a pure function of the records it
// is handed; loading those records and sequencing the checks is the caller's job.
package availability

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/catalog"
	"github.com/odyssey-erp/odyssey-academic/internal/schedule"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// CheckClassroom verifies the classroom is active, seats the requested vacancies and has no
// booking on shiftGUID overlapping the proposal. Bookings of excludePeriod are ignored.
// existing must already be limited to periods that are not draft, finished or canceled.
func CheckClassroom(classroom catalog.Classroom, shiftGUID uuid.UUID, vacancies int, proposed, existing []schedule.DisciplineSchedule, excludePeriod uuid.UUID) error {
	if !classroom.Status.Active() {
		return fmt.Errorf("%w: classroom %s is inactive", shared.ErrUnavailable, classroom.GUID)
	}
	if classroom.Capacity < vacancies {
		return fmt.Errorf("%w: classroom capacity %d is below requested vacancies %d", shared.ErrInvalidData, classroom.Capacity, vacancies)
	}
	bookings := onShift(exclude(existing, excludePeriod), shiftGUID)
	if hit, ok := schedule.FindCollision(proposed, bookings); ok {
		return fmt.Errorf("%w: classroom %s: %s", shared.ErrScheduleConflict, classroom.GUID, hit)
	}
	return nil
}

// CheckShift verifies the shift is active.
func CheckShift(shift catalog.Shift) error {
	if !shift.Status.Active() {
		return fmt.Errorf("%w: shift %s is inactive", shared.ErrUnavailable, shift.GUID)
	}
	return nil
}

// CheckEmployee verifies the employee is an active educator whose existing bookings in
// other live periods do not overlap proposed. proposed should hold only that employee's
// discipline schedules; see ForEmployee.
func CheckEmployee(employee catalog.Employee, proposed, existing []schedule.DisciplineSchedule, excludePeriod uuid.UUID) error {
	if !employee.Status.Active() {
		return fmt.Errorf("%w: employee %s is inactive", shared.ErrUnavailable, employee.GUID)
	}
	if !employee.HasRole(catalog.RoleEducator) {
		return fmt.Errorf("%w: employee %s is not an educator", shared.ErrInvalidData, employee.GUID)
	}
	if hit, ok := schedule.FindCollision(proposed, exclude(existing, excludePeriod)); ok {
		return fmt.Errorf("%w: educator %s: %s", shared.ErrScheduleConflict, employee.GUID, hit)
	}
	return nil
}

// ValidateDisciplinesSchedule checks that every required discipline is scheduled exactly once,
// with as many slots as its weekly classes, and that every slot belongs to shiftGUID.
func ValidateDisciplinesSchedule(required []catalog.Discipline, proposed []schedule.DisciplineSchedule, shiftGUID uuid.UUID) error {
	if len(proposed) != len(required) {
		return fmt.Errorf("%w: expected %d discipline schedules, got %d", shared.ErrInvalidData, len(required), len(proposed))
	}
	weekly := make(map[uuid.UUID]int, len(required))
	for _, d := range required {
		weekly[d.GUID] = d.WeeklyClasses
	}
	seen := make(map[uuid.UUID]struct{}, len(proposed))
	for _, ds := range proposed {
		want, ok := weekly[ds.DisciplineGUID]
		if !ok {
			return fmt.Errorf("%w: discipline %s is not part of the module", shared.ErrInvalidData, ds.DisciplineGUID)
		}
		if _, dup := seen[ds.DisciplineGUID]; dup {
			return fmt.Errorf("%w: discipline %s scheduled more than once", shared.ErrInvalidData, ds.DisciplineGUID)
		}
		seen[ds.DisciplineGUID] = struct{}{}
		if len(ds.Schedules) != want {
			return fmt.Errorf("%w: discipline %s needs %d weekly classes, got %d", shared.ErrInvalidData, ds.DisciplineGUID, want, len(ds.Schedules))
		}
		for _, s := range ds.Schedules {
			if s.ShiftGUID != shiftGUID {
				return fmt.Errorf("%w: schedule %s is outside the period shift", shared.ErrInvalidData, s.GUID)
			}
		}
	}
	return nil
}

// CheckInternalOverlap rejects a proposal that books two of its own slots at the same time,
// since a period occupies a single classroom.
func CheckInternalOverlap(proposed []schedule.DisciplineSchedule) error {
	for i := range proposed {
		for j := i + 1; j < len(proposed); j++ {
			if hit, ok := schedule.FindCollision(proposed[i:i+1], proposed[j:j+1]); ok {
				return fmt.Errorf("%w: %s %s-%s is booked twice in the period", shared.ErrScheduleConflict,
					hit.Proposed.DayOfWeek.Label(false), hit.Proposed.StartTime, hit.Proposed.EndTime)
			}
		}
	}
	return nil
}

// Educators lists the distinct employees of proposed in order of first appearance.
func Educators(proposed []schedule.DisciplineSchedule) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(proposed))
	out := make([]uuid.UUID, 0, len(proposed))
	for _, ds := range proposed {
		if _, ok := seen[ds.EmployeeGUID]; ok {
			continue
		}
		seen[ds.EmployeeGUID] = struct{}{}
		out = append(out, ds.EmployeeGUID)
	}
	return out
}

// ForEmployee keeps the discipline schedules taught by employee.
func ForEmployee(proposed []schedule.DisciplineSchedule, employee uuid.UUID) []schedule.DisciplineSchedule {
	var out []schedule.DisciplineSchedule
	for _, ds := range proposed {
		if ds.EmployeeGUID == employee {
			out = append(out, ds)
		}
	}
	return out
}

func exclude(bookings []schedule.DisciplineSchedule, period uuid.UUID) []schedule.DisciplineSchedule {
	if period == uuid.Nil {
		return bookings
	}
	out := make([]schedule.DisciplineSchedule, 0, len(bookings))
	for _, b := range bookings {
		if b.PeriodGUID != period {
			out = append(out, b)
		}
	}
	return out
}

func onShift(bookings []schedule.DisciplineSchedule, shift uuid.UUID) []schedule.DisciplineSchedule {
	out := make([]schedule.DisciplineSchedule, 0, len(bookings))
	for _, b := range bookings {
		kept := b
		kept.Schedules = nil
		for _, s := range b.Schedules {
			if s.ShiftGUID == shift {
				kept.Schedules = append(kept.Schedules, s)
			}
		}
		if len(kept.Schedules) > 0 {
			out = append(out, kept)
		}
	}
	return out
}
