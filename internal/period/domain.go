package period

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/schedule"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// Status enumerates the period lifecycle.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusNotStarted        Status = "notStarted"
	StatusOpenForEnrollment Status = "openForEnrollment"
	StatusInProgress        Status = "inProgress"
	StatusFinished          Status = "finished"
	StatusCanceled          Status = "canceled"
)

// LiveStatuses hold classroom and educator bookings.
var LiveStatuses = []Status{StatusNotStarted, StatusOpenForEnrollment, StatusInProgress}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusNotStarted, StatusOpenForEnrollment, StatusInProgress, StatusFinished, StatusCanceled:
		return true
	}
	return false
}

// Live reports whether a period in s occupies its classroom and educators.
func (s Status) Live() bool {
	return s == StatusNotStarted || s == StatusOpenForEnrollment || s == StatusInProgress
}

// Terminal reports whether s ends scheduling for the period.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusCanceled
}

// Cancelable reports whether a period in s may still be canceled.
func (s Status) Cancelable() bool {
	return s == StatusDraft || s == StatusNotStarted
}

// manualTransitions lists status writes accepted from requests. Date-driven moves
// (notStarted → openForEnrollment → inProgress → finished) belong to the lifecycle sweep.
// A scheduled period never returns to draft: it may already hold enrollments.
var manualTransitions = map[Status][]Status{
	StatusDraft:             {StatusDraft, StatusNotStarted, StatusCanceled},
	StatusNotStarted:        {StatusNotStarted, StatusCanceled},
	StatusOpenForEnrollment: {StatusOpenForEnrollment},
	StatusInProgress:        {StatusInProgress},
}

// CanTransition reports whether a request may move a period from one status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range manualTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Period is one offering of a matrix module for a cohort.
type Period struct {
	GUID                uuid.UUID                     `json:"guid"`
	Status              Status                        `json:"status"`
	MatrixModuleGUID    uuid.UUID                     `json:"matrixModuleGuid"`
	ClassID             string                        `json:"classId,omitempty"`
	EnrollmentStartDate *time.Time                    `json:"enrollmentStartDate,omitempty"`
	EnrollmentEndDate   *time.Time                    `json:"enrollmentEndDate,omitempty"`
	Deadline            *time.Time                    `json:"deadline,omitempty"`
	Vacancies           *int                          `json:"vacancies,omitempty"`
	ClassroomGUID       *uuid.UUID                    `json:"classroomGuid,omitempty"`
	ShiftGUID           *uuid.UUID                    `json:"shiftGuid,omitempty"`
	DisciplineSchedules []schedule.DisciplineSchedule `json:"disciplinesSchedule"`
	CreatedAt           time.Time                     `json:"createdAt"`
	UpdatedAt           time.Time                     `json:"updatedAt"`
}

const (
	MinVacancies   = 1
	MaxVacancies   = 100
	maxClassIDSize = 20
)

type profile int

const (
	// profileDraft validates only the fields that are present.
	profileDraft profile = iota
	// profileComplete requires every field.
	profileComplete
)

func profileFor(status Status) profile {
	if status == StatusDraft {
		return profileDraft
	}
	return profileComplete
}

// Validate applies the validation profile of the period's status.
func (p Period) Validate() error {
	if !p.Status.Valid() {
		return fmt.Errorf("%w: invalid status %q", shared.ErrInvalidData, p.Status)
	}
	if p.MatrixModuleGUID == uuid.Nil {
		return fmt.Errorf("%w: matrix module is required", shared.ErrInvalidData)
	}
	if profileFor(p.Status) == profileComplete {
		if err := p.requireComplete(); err != nil {
			return err
		}
	}
	return p.validatePresent()
}

func (p Period) requireComplete() error {
	var missing []string
	if strings.TrimSpace(p.ClassID) == "" {
		missing = append(missing, "classId")
	}
	if p.EnrollmentStartDate == nil {
		missing = append(missing, "enrollmentStartDate")
	}
	if p.EnrollmentEndDate == nil {
		missing = append(missing, "enrollmentEndDate")
	}
	if p.Deadline == nil {
		missing = append(missing, "deadline")
	}
	if p.Vacancies == nil {
		missing = append(missing, "vacancies")
	}
	if p.ClassroomGUID == nil || *p.ClassroomGUID == uuid.Nil {
		missing = append(missing, "classroomGuid")
	}
	if p.ShiftGUID == nil || *p.ShiftGUID == uuid.Nil {
		missing = append(missing, "shiftGuid")
	}
	if len(p.DisciplineSchedules) == 0 {
		missing = append(missing, "disciplinesSchedule")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required unless the period is a draft", shared.ErrInvalidData, strings.Join(missing, ", "))
	}
	return nil
}

func (p Period) validatePresent() error {
	if len(p.ClassID) > maxClassIDSize {
		return fmt.Errorf("%w: classId must have at most %d characters", shared.ErrInvalidData, maxClassIDSize)
	}
	if p.Vacancies != nil && (*p.Vacancies < MinVacancies || *p.Vacancies > MaxVacancies) {
		return fmt.Errorf("%w: vacancies must be between %d and %d", shared.ErrInvalidData, MinVacancies, MaxVacancies)
	}
	if p.EnrollmentStartDate != nil && p.EnrollmentEndDate != nil && Day(*p.EnrollmentStartDate).After(Day(*p.EnrollmentEndDate)) {
		return fmt.Errorf("%w: enrollment start date must not be after enrollment end date", shared.ErrInvalidData)
	}
	if p.EnrollmentEndDate != nil && p.Deadline != nil && Day(*p.EnrollmentEndDate).After(Day(*p.Deadline)) {
		return fmt.Errorf("%w: enrollment end date must not be after the deadline", shared.ErrInvalidData)
	}
	if p.EnrollmentStartDate != nil && p.Deadline != nil && Day(*p.EnrollmentStartDate).After(Day(*p.Deadline)) {
		return fmt.Errorf("%w: enrollment start date must not be after the deadline", shared.ErrInvalidData)
	}
	seen := make(map[uuid.UUID]struct{}, len(p.DisciplineSchedules))
	for _, ds := range p.DisciplineSchedules {
		if err := ds.Validate(); err != nil {
			return err
		}
		if _, dup := seen[ds.DisciplineGUID]; dup {
			return fmt.Errorf("%w: discipline %s is scheduled twice", shared.ErrConflict, ds.DisciplineGUID)
		}
		seen[ds.DisciplineGUID] = struct{}{}
	}
	return nil
}

// Day truncates t to its calendar date, keeping t's year, month and day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// Labels carries the curriculum names used to title a period.
type Labels struct {
	Course string `json:"course"`
	Matrix string `json:"matrix"`
	Module string `json:"module"`
}

// DisplayName titles a period as "{course}/{matrix} - {module} (Turma {classId})",
// dropping the class suffix when classID is empty.
func DisplayName(l Labels, classID string) string {
	name := fmt.Sprintf("%s/%s - %s", l.Course, l.Matrix, l.Module)
	if classID != "" {
		name += fmt.Sprintf(" (Turma %s)", classID)
	}
	return name
}
