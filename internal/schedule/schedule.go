package schedule

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// DayOfWeek enumerates the weekdays a class slot may fall on.
type DayOfWeek string

const (
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
	Sunday    DayOfWeek = "sunday"
)

// AllDays lists the week starting on Monday.
var AllDays = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var dayLabels = map[DayOfWeek][2]string{
	Monday:    {"segunda-feira", "seg"},
	Tuesday:   {"terça-feira", "ter"},
	Wednesday: {"quarta-feira", "qua"},
	Thursday:  {"quinta-feira", "qui"},
	Friday:    {"sexta-feira", "sex"},
	Saturday:  {"sábado", "sab"},
	Sunday:    {"domingo", "dom"},
}

// Valid reports whether d is a known weekday.
func (d DayOfWeek) Valid() bool {
	_, ok := dayLabels[d]
	return ok
}

// Label returns the Portuguese weekday name, optionally abbreviated.
func (d DayOfWeek) Label(abbreviated bool) string {
	labels, ok := dayLabels[d]
	if !ok {
		return string(d)
	}
	if abbreviated {
		return labels[1]
	}
	return labels[0]
}

const (
	MinClassNumber = 1
	MaxClassNumber = 6
)

// Schedule is one fixed weekly class slot owned by a shift.
type Schedule struct {
	GUID        uuid.UUID            `json:"guid"`
	ShiftGUID   uuid.UUID            `json:"shiftGuid"`
	DayOfWeek   DayOfWeek            `json:"dayOfWeek"`
	ClassNumber int                  `json:"classNumber"`
	StartTime   Clock                `json:"startTime"`
	EndTime     Clock                `json:"endTime"`
	Status      shared.GenericStatus `json:"status,omitempty"`
}

// Interval returns the weekly window the slot occupies.
func (s Schedule) Interval() Interval {
	return Interval{Day: s.DayOfWeek, Start: s.StartTime, End: s.EndTime}
}

// Validate checks field bounds and that the slot starts before it ends.
func (s Schedule) Validate() error {
	if s.ShiftGUID == uuid.Nil {
		return fmt.Errorf("%w: schedule shift is required", shared.ErrInvalidData)
	}
	if !s.DayOfWeek.Valid() {
		return fmt.Errorf("%w: invalid day of week %q", shared.ErrInvalidData, s.DayOfWeek)
	}
	if s.ClassNumber < MinClassNumber || s.ClassNumber > MaxClassNumber {
		return fmt.Errorf("%w: class number must be between %d and %d", shared.ErrInvalidData, MinClassNumber, MaxClassNumber)
	}
	if !s.StartTime.Valid() || !s.EndTime.Valid() {
		return fmt.Errorf("%w: schedule time out of range", shared.ErrInvalidData)
	}
	if s.StartTime >= s.EndTime {
		return fmt.Errorf("%w: schedule start %s must be before end %s", shared.ErrInvalidData, s.StartTime, s.EndTime)
	}
	if s.Status != "" && s.Status != shared.StatusActive && s.Status != shared.StatusInactive {
		return fmt.Errorf("%w: invalid schedule status %q", shared.ErrInvalidData, s.Status)
	}
	return nil
}

// Overlaps reports whether two slots collide in the weekly timetable.
func (s Schedule) Overlaps(other Schedule) bool {
	return Overlaps(s.Interval(), other.Interval())
}
