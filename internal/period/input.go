package period

import (
	"time"

	"github.com/google/uuid"
)

// DisciplineScheduleInput assigns an educator and weekly slots to a discipline.
// GUID is uuid.Nil for a new assignment.
type DisciplineScheduleInput struct {
	GUID           uuid.UUID
	EmployeeGUID   uuid.UUID
	DisciplineGUID uuid.UUID
	ScheduleGUIDs  []uuid.UUID
}

// CreateInput describes a new period. Only MatrixModuleGUID is required for drafts.
type CreateInput struct {
	Status              Status
	MatrixModuleGUID    uuid.UUID
	ClassID             string
	EnrollmentStartDate *time.Time
	EnrollmentEndDate   *time.Time
	Deadline            *time.Time
	Vacancies           *int
	ClassroomGUID       *uuid.UUID
	ShiftGUID           *uuid.UUID
	DisciplineSchedules []DisciplineScheduleInput
}

// UpdateInput overlays a period. Nil fields are left untouched; a nil
// DisciplineSchedules keeps the current assignments.
type UpdateInput struct {
	Status              *Status
	MatrixModuleGUID    *uuid.UUID
	ClassID             *string
	EnrollmentStartDate *time.Time
	EnrollmentEndDate   *time.Time
	Deadline            *time.Time
	Vacancies           *int
	ClassroomGUID       *uuid.UUID
	ShiftGUID           *uuid.UUID
	DisciplineSchedules *[]DisciplineScheduleInput
}

// ListFilter narrows period listings.
type ListFilter struct {
	SearchTerm string
	Status     Status
	Page       int
	PerPage    int
}
