package period

import (
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/platform/httpx"
)

type disciplineScheduleRequest struct {
	GUID           uuid.UUID   `json:"guid"`
	EmployeeGUID   uuid.UUID   `json:"employeeGuid" validate:"required"`
	DisciplineGUID uuid.UUID   `json:"disciplineGuid" validate:"required"`
	Schedules      []uuid.UUID `json:"schedules" validate:"required,min=1,unique"`
}

type createRequest struct {
	Status              string                      `json:"status" validate:"omitempty,oneof=draft notStarted"`
	MatrixModuleGUID    uuid.UUID                   `json:"matrixModuleGuid" validate:"required"`
	ClassID             string                      `json:"classId" validate:"max=20"`
	EnrollmentStartDate *string                     `json:"enrollmentStartDate" validate:"omitempty,datetime=2006-01-02"`
	EnrollmentEndDate   *string                     `json:"enrollmentEndDate" validate:"omitempty,datetime=2006-01-02"`
	Deadline            *string                     `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
	Vacancies           *int                        `json:"vacancies" validate:"omitempty,min=1,max=100"`
	ClassroomGUID       *uuid.UUID                  `json:"classroomGuid"`
	ShiftGUID           *uuid.UUID                  `json:"shiftGuid"`
	DisciplineSchedules []disciplineScheduleRequest `json:"disciplinesSchedule" validate:"dive"`
}

type updateRequest struct {
	Status              *string                      `json:"status" validate:"omitempty,oneof=draft notStarted openForEnrollment inProgress finished canceled"`
	MatrixModuleGUID    *uuid.UUID                   `json:"matrixModuleGuid"`
	ClassID             *string                      `json:"classId" validate:"omitempty,max=20"`
	EnrollmentStartDate *string                      `json:"enrollmentStartDate" validate:"omitempty,datetime=2006-01-02"`
	EnrollmentEndDate   *string                      `json:"enrollmentEndDate" validate:"omitempty,datetime=2006-01-02"`
	Deadline            *string                      `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
	Vacancies           *int                         `json:"vacancies" validate:"omitempty,min=1,max=100"`
	ClassroomGUID       *uuid.UUID                   `json:"classroomGuid"`
	ShiftGUID           *uuid.UUID                   `json:"shiftGuid"`
	DisciplineSchedules *[]disciplineScheduleRequest `json:"disciplinesSchedule" validate:"omitempty,dive"`
}

func toScheduleInputs(items []disciplineScheduleRequest) []DisciplineScheduleInput {
	out := make([]DisciplineScheduleInput, 0, len(items))
	for _, it := range items {
		out = append(out, DisciplineScheduleInput{
			GUID:           it.GUID,
			EmployeeGUID:   it.EmployeeGUID,
			DisciplineGUID: it.DisciplineGUID,
			ScheduleGUIDs:  it.Schedules,
		})
	}
	return out
}

func (r createRequest) input() (CreateInput, error) {
	in := CreateInput{
		Status:              Status(r.Status),
		MatrixModuleGUID:    r.MatrixModuleGUID,
		ClassID:             r.ClassID,
		Vacancies:           r.Vacancies,
		ClassroomGUID:       r.ClassroomGUID,
		ShiftGUID:           r.ShiftGUID,
		DisciplineSchedules: toScheduleInputs(r.DisciplineSchedules),
	}
	var err error
	if in.EnrollmentStartDate, err = httpx.ParseDate(r.EnrollmentStartDate); err != nil {
		return CreateInput{}, err
	}
	if in.EnrollmentEndDate, err = httpx.ParseDate(r.EnrollmentEndDate); err != nil {
		return CreateInput{}, err
	}
	if in.Deadline, err = httpx.ParseDate(r.Deadline); err != nil {
		return CreateInput{}, err
	}
	return in, nil
}

func (r updateRequest) input() (UpdateInput, error) {
	in := UpdateInput{
		MatrixModuleGUID: r.MatrixModuleGUID,
		ClassID:          r.ClassID,
		Vacancies:        r.Vacancies,
		ClassroomGUID:    r.ClassroomGUID,
		ShiftGUID:        r.ShiftGUID,
	}
	if r.Status != nil {
		st := Status(*r.Status)
		in.Status = &st
	}
	if r.DisciplineSchedules != nil {
		items := toScheduleInputs(*r.DisciplineSchedules)
		in.DisciplineSchedules = &items
	}
	var err error
	if in.EnrollmentStartDate, err = httpx.ParseDate(r.EnrollmentStartDate); err != nil {
		return UpdateInput{}, err
	}
	if in.EnrollmentEndDate, err = httpx.ParseDate(r.EnrollmentEndDate); err != nil {
		return UpdateInput{}, err
	}
	if in.Deadline, err = httpx.ParseDate(r.Deadline); err != nil {
		return UpdateInput{}, err
	}
	return in, nil
}
