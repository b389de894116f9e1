// Package enrollment binds students to courses and links those enrollments to periods.
package enrollment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/period"
)

// Enrollment registers one student in one course. It outlives the period links that
// reference it, so the enrollment number stays stable across a student's periods.
type Enrollment struct {
	GUID        uuid.UUID `json:"guid"`
	StudentGUID uuid.UUID `json:"studentGuid"`
	CourseGUID  uuid.UUID `json:"courseGuid"`
	Number      string    `json:"enrollmentNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PeriodRef is the slice of a period the enrollment rules read.
type PeriodRef struct {
	GUID       uuid.UUID
	Status     period.Status
	CourseGUID uuid.UUID
	Vacancies  *int
}

// AcceptsEnrollment reports whether students may join the period.
func (p PeriodRef) AcceptsEnrollment() bool {
	switch p.Status {
	case period.StatusNotStarted, period.StatusOpenForEnrollment, period.StatusInProgress:
		return true
	}
	return false
}

// RosterEntry is an enrolled student of a period.
type RosterEntry struct {
	EnrollmentGUID uuid.UUID `json:"guid"`
	Number         string    `json:"enrollmentNumber"`
	StudentGUID    uuid.UUID `json:"studentGuid"`
	StudentName    string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	EnrolledAt     time.Time `json:"enrolledAt"`
}

// FormatNumber renders an enrollment number as the year followed by the yearly sequence,
// zero padded to six digits. Sequences past 999999 widen the number instead of wrapping.
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("%04d%06d", year, seq)
}
