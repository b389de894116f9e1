package attendance

import (
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/platform/httpx"
)

type absenceRequest struct {
	StudentGUID   uuid.UUID `json:"studentGuid" validate:"required"`
	TotalAbsences *int      `json:"totalAbsences" validate:"required,gte=0"`
}

type createRequest struct {
	ClassDate       string           `json:"classDate" validate:"required,datetime=2006-01-02"`
	TotalClasses    int              `json:"totalClasses" validate:"required,min=1"`
	ClassSummary    string           `json:"classSummary" validate:"max=1000"`
	StudentAbsences []absenceRequest `json:"studentAbsences" validate:"dive"`
}

type updateRequest struct {
	ClassDate       *string           `json:"classDate" validate:"omitempty,datetime=2006-01-02"`
	TotalClasses    *int              `json:"totalClasses" validate:"omitempty,min=1"`
	ClassSummary    *string           `json:"classSummary" validate:"omitempty,max=1000"`
	StudentAbsences *[]absenceRequest `json:"studentAbsences" validate:"omitempty,dive"`
}

func toAbsenceInputs(items []absenceRequest) []AbsenceInput {
	out := make([]AbsenceInput, len(items))
	for i, it := range items {
		out[i] = AbsenceInput{StudentGUID: it.StudentGUID, TotalAbsences: *it.TotalAbsences}
	}
	return out
}

func (r createRequest) input(periodGUID, disciplineGUID uuid.UUID) (CreateInput, error) {
	day, err := httpx.ParseDate(&r.ClassDate)
	if err != nil {
		return CreateInput{}, err
	}
	return CreateInput{
		PeriodGUID:     periodGUID,
		DisciplineGUID: disciplineGUID,
		ClassDate:      *day,
		TotalClasses:   r.TotalClasses,
		ClassSummary:   r.ClassSummary,
		Absences:       toAbsenceInputs(r.StudentAbsences),
	}, nil
}

func (r updateRequest) input() (UpdateInput, error) {
	in := UpdateInput{TotalClasses: r.TotalClasses, ClassSummary: r.ClassSummary}
	var err error
	if in.ClassDate, err = httpx.ParseDate(r.ClassDate); err != nil {
		return UpdateInput{}, err
	}
	if r.StudentAbsences != nil {
		abs := toAbsenceInputs(*r.StudentAbsences)
		in.Absences = &abs
	}
	return in, nil
}
