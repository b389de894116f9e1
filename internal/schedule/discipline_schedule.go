package schedule

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// DisciplineSchedule binds one educator teaching one discipline to weekly slots within a period.
type DisciplineSchedule struct {
	GUID           uuid.UUID  `json:"guid"`
	PeriodGUID     uuid.UUID  `json:"periodGuid"`
	EmployeeGUID   uuid.UUID  `json:"employeeGuid"`
	DisciplineGUID uuid.UUID  `json:"disciplineGuid"`
	Schedules      []Schedule `json:"schedules"`
}

// Validate checks references and every attached slot.
func (d DisciplineSchedule) Validate() error {
	if d.EmployeeGUID == uuid.Nil {
		return fmt.Errorf("%w: discipline schedule educator is required", shared.ErrInvalidData)
	}
	if d.DisciplineGUID == uuid.Nil {
		return fmt.Errorf("%w: discipline schedule discipline is required", shared.ErrInvalidData)
	}
	if len(d.Schedules) == 0 {
		return fmt.Errorf("%w: discipline schedule requires at least one schedule", shared.ErrInvalidData)
	}
	seen := make(map[uuid.UUID]struct{}, len(d.Schedules))
	for _, s := range d.Schedules {
		if err := s.Validate(); err != nil {
			return err
		}
		if s.GUID == uuid.Nil {
			continue
		}
		if _, dup := seen[s.GUID]; dup {
			return fmt.Errorf("%w: schedule %s attached twice", shared.ErrInvalidData, s.GUID)
		}
		seen[s.GUID] = struct{}{}
	}
	return nil
}

// ScheduleGUIDs returns the attached slot identifiers sorted for comparison.
func (d DisciplineSchedule) ScheduleGUIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(d.Schedules))
	for _, s := range d.Schedules {
		ids = append(ids, s.GUID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// SameAssignment reports whether d and other carry the same educator, discipline and slots.
func (d DisciplineSchedule) SameAssignment(other DisciplineSchedule) bool {
	if d.EmployeeGUID != other.EmployeeGUID || d.DisciplineGUID != other.DisciplineGUID {
		return false
	}
	a, b := d.ScheduleGUIDs(), other.ScheduleGUIDs()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Collision describes a proposed slot that overlaps an existing booking.
type Collision struct {
	Proposed Schedule
	Existing Schedule
	Booking  DisciplineSchedule
}

func (c Collision) String() string {
	return fmt.Sprintf("%s %s-%s overlaps %s-%s booked in period %s",
		c.Proposed.DayOfWeek.Label(false), c.Proposed.StartTime, c.Proposed.EndTime,
		c.Existing.StartTime, c.Existing.EndTime, c.Booking.PeriodGUID)
}

// FindCollision returns the first pair of overlapping slots between proposed and existing.
func FindCollision(proposed, existing []DisciplineSchedule) (Collision, bool) {
	for _, p := range proposed {
		for _, ps := range p.Schedules {
			for _, e := range existing {
				for _, es := range e.Schedules {
					if ps.Overlaps(es) {
						return Collision{Proposed: ps, Existing: es, Booking: e}, true
					}
				}
			}
		}
	}
	return Collision{}, false
}
