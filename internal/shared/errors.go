package shared

import "errors"

var (
	// ErrNotFound indicates a referenced record is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate offering, enrollment or discipline schedule.
	ErrConflict = errors.New("duplicate data")
	// ErrInvalidData indicates a schema or business-rule violation.
	ErrInvalidData = errors.New("invalid data")
	// ErrUnavailable indicates an inactive classroom, shift or employee.
	ErrUnavailable = errors.New("resource unavailable")
	// ErrScheduleConflict indicates a weekly schedule overlap with an existing booking.
	ErrScheduleConflict = errors.New("schedule conflict")
)
