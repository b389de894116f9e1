package grading

import "github.com/google/uuid"

type gradeItemRequest struct {
	GUID     uuid.UUID `json:"guid"`
	Name     string    `json:"name" validate:"required,max=100"`
	Type     ItemType  `json:"type" validate:"required,oneof=sum average"`
	MaxValue float64   `json:"maxValue" validate:"gt=0,lte=100"`
}

type configRequest struct {
	GUID       uuid.UUID          `json:"guid"`
	GradeItems []gradeItemRequest `json:"gradeItems" validate:"required,min=1,dive"`
}

func (r configRequest) input() ConfigInput {
	items := make([]GradeItem, len(r.GradeItems))
	for i, it := range r.GradeItems {
		items[i] = GradeItem{GUID: it.GUID, Name: it.Name, Type: it.Type, MaxValue: it.MaxValue}
	}
	return ConfigInput{Items: items}
}

type studentItemRequest struct {
	GUID          uuid.UUID `json:"guid"`
	GradeItemGUID uuid.UUID `json:"gradeItemGuid" validate:"required"`
	Value         *float64  `json:"value" validate:"required,gte=0"`
}

type studentGradeRequest struct {
	GUID        uuid.UUID            `json:"guid"`
	StudentGUID uuid.UUID            `json:"studentGuid" validate:"required"`
	GradeItems  []studentItemRequest `json:"gradeItems" validate:"required,min=1,dive"`
}

type gradesRequest struct {
	Grades []studentGradeRequest `json:"grades" validate:"required,min=1,dive"`
}

func (r gradesRequest) input() []StudentGradeInput {
	out := make([]StudentGradeInput, len(r.Grades))
	for i, g := range r.Grades {
		items := make([]StudentGradeItem, len(g.GradeItems))
		for j, it := range g.GradeItems {
			items[j] = StudentGradeItem{GUID: it.GUID, GradeItemGUID: it.GradeItemGUID, Value: *it.Value}
		}
		out[i] = StudentGradeInput{GUID: g.GUID, StudentGUID: g.StudentGUID, Items: items}
	}
	return out
}
