// Package catalog reads the reference data the scheduling core depends on: curriculum
// modules, disciplines, classrooms, shifts, educators, students and their weekly slots.
// Writes to these records belong to the surrounding CRUD services.
package catalog

import (
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// Discipline is a subject with a fixed number of weekly classes.
type Discipline struct {
	GUID          uuid.UUID            `json:"guid"`
	Name          string               `json:"name"`
	WeeklyClasses int                  `json:"weeklyClasses"`
	Status        shared.GenericStatus `json:"status"`
}

// MatrixModule is a curriculum unit listing its required disciplines.
type MatrixModule struct {
	GUID         uuid.UUID            `json:"guid"`
	Name         string               `json:"name"`
	MatrixGUID   uuid.UUID            `json:"matrixGuid"`
	MatrixName   string               `json:"matrixName"`
	MatrixStatus shared.GenericStatus `json:"matrixStatus"`
	CourseGUID   uuid.UUID            `json:"courseGuid"`
	CourseName   string               `json:"courseName"`
	Disciplines  []Discipline         `json:"disciplines"`
}

// Classroom is a physical room with a seat capacity.
type Classroom struct {
	GUID     uuid.UUID            `json:"guid"`
	Name     string               `json:"name"`
	Capacity int                  `json:"capacity"`
	Status   shared.GenericStatus `json:"status"`
}

// Shift is a named time-of-day band owning class slots.
type Shift struct {
	GUID   uuid.UUID            `json:"guid"`
	Name   string               `json:"name"`
	Status shared.GenericStatus `json:"status"`
}

// EmployeeRole is a staff function.
type EmployeeRole string

const (
	RoleAdministrator EmployeeRole = "administrator"
	RoleSecretary     EmployeeRole = "secretary"
	RoleEducator      EmployeeRole = "educator"
)

// Employee is a staff member; only educators may be scheduled.
type Employee struct {
	GUID   uuid.UUID            `json:"guid"`
	Name   string               `json:"name"`
	Roles  []EmployeeRole       `json:"roles"`
	Status shared.GenericStatus `json:"status"`
}

// HasRole reports whether the employee holds role.
func (e Employee) HasRole(role EmployeeRole) bool {
	for _, r := range e.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Student is a learner that can hold enrollments.
type Student struct {
	GUID   uuid.UUID            `json:"guid"`
	Name   string               `json:"name"`
	Email  string               `json:"email,omitempty"`
	Status shared.GenericStatus `json:"status"`
}
