// Package attendance records how many classes of a period discipline each enrolled
// student missed on a given day.
package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/schedule"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

const maxClassSummary = 1000

// Log is the attendance of one class day of a period discipline.
type Log struct {
	GUID           uuid.UUID        `json:"guid"`
	PeriodGUID     uuid.UUID        `json:"periodGuid"`
	DisciplineGUID uuid.UUID        `json:"disciplineGuid"`
	ClassDate      time.Time        `json:"classDate"`
	TotalClasses   int              `json:"totalClasses"`
	ClassSummary   string           `json:"classSummary"`
	Absences       []StudentAbsence `json:"studentAbsences"`
}

// StudentAbsence is one student's attendance within a Log.
type StudentAbsence struct {
	GUID           uuid.UUID `json:"guid"`
	StudentGUID    uuid.UUID `json:"studentGuid"`
	StudentName    string    `json:"studentName,omitempty"`
	TotalAbsences  int       `json:"totalAbsences"`
	TotalPresences int       `json:"totalPresences"`
}

// Summary is the listing row of a Log.
type Summary struct {
	GUID         uuid.UUID `json:"guid"`
	ClassDate    time.Time `json:"classDate"`
	ClassSummary string    `json:"classSummary"`
}

// Page is a paginated list of logs, newest class first.
type Page struct {
	Data       []Summary         `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

// Validate checks the log fields and that no student misses more classes than were given.
// A day holds at most one class per shift slot.
func (l Log) Validate() error {
	if l.ClassDate.IsZero() {
		return fmt.Errorf("%w: class date is required", shared.ErrInvalidData)
	}
	if l.TotalClasses < 1 || l.TotalClasses > schedule.MaxClassNumber {
		return fmt.Errorf("%w: total classes must be between 1 and %d", shared.ErrInvalidData, schedule.MaxClassNumber)
	}
	if len(strings.TrimSpace(l.ClassSummary)) > maxClassSummary {
		return fmt.Errorf("%w: class summary must have at most %d characters", shared.ErrInvalidData, maxClassSummary)
	}
	seen := make(map[uuid.UUID]struct{}, len(l.Absences))
	for _, a := range l.Absences {
		if _, dup := seen[a.StudentGUID]; dup {
			return fmt.Errorf("%w: student %s listed twice", shared.ErrInvalidData, a.StudentGUID)
		}
		seen[a.StudentGUID] = struct{}{}
		if a.TotalAbsences < 0 || a.TotalAbsences > l.TotalClasses {
			return fmt.Errorf("%w: absences of student %s must be between 0 and %d", shared.ErrInvalidData, a.StudentGUID, l.TotalClasses)
		}
	}
	return nil
}

// withPresences derives each student's presences from the class total.
func (l Log) withPresences() Log {
	out := l
	out.Absences = make([]StudentAbsence, len(l.Absences))
	for i, a := range l.Absences {
		a.TotalPresences = l.TotalClasses - a.TotalAbsences
		out.Absences[i] = a
	}
	return out
}

func (l Log) students() []uuid.UUID {
	out := make([]uuid.UUID, len(l.Absences))
	for i, a := range l.Absences {
		out[i] = a.StudentGUID
	}
	return out
}
