package period

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/schedule"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// ScheduleView is a weekly slot with its localized weekday.
type ScheduleView struct {
	schedule.Schedule
	DayLabel string `json:"dayLabel"`
}

// DisciplineScheduleView is an assignment with resolved names.
type DisciplineScheduleView struct {
	GUID           uuid.UUID      `json:"guid"`
	DisciplineGUID uuid.UUID      `json:"disciplineGuid"`
	Name           string         `json:"name"`
	EmployeeGUID   uuid.UUID      `json:"employeeGuid"`
	Educator       string         `json:"educator"`
	Schedules      []ScheduleView `json:"schedules"`
}

// Summary is a period row in listings.
type Summary struct {
	GUID                uuid.UUID                `json:"guid"`
	Status              Status                   `json:"status"`
	Name                string                   `json:"name"`
	DisciplineSchedules []DisciplineScheduleView `json:"disciplinesSchedule"`
}

// Page is a paginated listing.
type Page struct {
	Data       []Summary         `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

// Simplified is the compact projection used by pickers and headers.
type Simplified struct {
	GUID                uuid.UUID  `json:"guid"`
	Name                string     `json:"name"`
	Status              Status     `json:"status"`
	ClassID             string     `json:"classId,omitempty"`
	EnrollmentStartDate *time.Time `json:"enrollmentStartDate,omitempty"`
	EnrollmentEndDate   *time.Time `json:"enrollmentEndDate,omitempty"`
	Deadline            *time.Time `json:"deadline,omitempty"`
	Vacancies           *int       `json:"vacancies,omitempty"`
}

// Details is the full period projection.
type Details struct {
	Period
	Name                string                   `json:"name"`
	Labels              Labels                   `json:"labels"`
	Classroom           string                   `json:"classroom,omitempty"`
	Shift               string                   `json:"shift,omitempty"`
	DisciplineSchedules []DisciplineScheduleView `json:"disciplinesSchedule"`
	Enrolled            int                      `json:"enrolled"`
}

// ListRow is a period loaded for listing together with its curriculum labels.
type ListRow struct {
	Period
	Labels Labels
}

func scheduleViews(slots []schedule.Schedule) []ScheduleView {
	out := make([]ScheduleView, 0, len(slots))
	for _, s := range slots {
		out = append(out, ScheduleView{Schedule: s, DayLabel: s.DayOfWeek.Label(false)})
	}
	return out
}

func disciplineViews(items []schedule.DisciplineSchedule, disciplines, employees map[uuid.UUID]string) []DisciplineScheduleView {
	out := make([]DisciplineScheduleView, 0, len(items))
	for _, ds := range items {
		out = append(out, DisciplineScheduleView{
			GUID:           ds.GUID,
			DisciplineGUID: ds.DisciplineGUID,
			Name:           disciplines[ds.DisciplineGUID],
			EmployeeGUID:   ds.EmployeeGUID,
			Educator:       employees[ds.EmployeeGUID],
			Schedules:      scheduleViews(ds.Schedules),
		})
	}
	return out
}

func referencedGUIDs(periods []Period) (disciplines, employees []uuid.UUID) {
	seenD := map[uuid.UUID]struct{}{}
	seenE := map[uuid.UUID]struct{}{}
	for _, p := range periods {
		for _, ds := range p.DisciplineSchedules {
			if _, ok := seenD[ds.DisciplineGUID]; !ok {
				seenD[ds.DisciplineGUID] = struct{}{}
				disciplines = append(disciplines, ds.DisciplineGUID)
			}
			if _, ok := seenE[ds.EmployeeGUID]; !ok {
				seenE[ds.EmployeeGUID] = struct{}{}
				employees = append(employees, ds.EmployeeGUID)
			}
		}
	}
	return disciplines, employees
}
