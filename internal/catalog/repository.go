package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/odyssey-erp/odyssey-academic/internal/platform/db"
	"github.com/odyssey-erp/odyssey-academic/internal/schedule"
)

// Repository reads reference records. Bind it to a pool, or to a transaction with WithDB.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs a Repository.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

// WithDB returns a copy reading through conn, typically a pgx.Tx.
func (r *Repository) WithDB(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

// MatrixModule loads a module with its matrix, course and required disciplines.
func (r *Repository) MatrixModule(ctx context.Context, guid uuid.UUID) (MatrixModule, error) {
	var m MatrixModule
	err := r.db.QueryRow(ctx, `
SELECT mm.guid, mm.name, m.guid, m.name, m.status, c.guid, c.name
FROM matrix_modules mm
JOIN matrices m ON m.guid = mm.matrix_guid
JOIN courses c ON c.guid = m.course_guid
WHERE mm.guid = $1`, guid).Scan(&m.GUID, &m.Name, &m.MatrixGUID, &m.MatrixName, &m.MatrixStatus, &m.CourseGUID, &m.CourseName)
	if err != nil {
		return MatrixModule{}, db.Translate(err, fmt.Sprintf("matrix module %s", guid))
	}
	rows, err := r.db.Query(ctx, `
SELECT d.guid, d.name, d.weekly_classes, d.status
FROM matrix_module_disciplines mmd
JOIN disciplines d ON d.guid = mmd.discipline_guid
WHERE mmd.matrix_module_guid = $1
ORDER BY d.name`, guid)
	if err != nil {
		return MatrixModule{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var d Discipline
		if err := rows.Scan(&d.GUID, &d.Name, &d.WeeklyClasses, &d.Status); err != nil {
			return MatrixModule{}, err
		}
		m.Disciplines = append(m.Disciplines, d)
	}
	return m, rows.Err()
}

// Discipline loads a single discipline.
func (r *Repository) Discipline(ctx context.Context, guid uuid.UUID) (Discipline, error) {
	var d Discipline
	err := r.db.QueryRow(ctx, `SELECT guid, name, weekly_classes, status FROM disciplines WHERE guid = $1`, guid).
		Scan(&d.GUID, &d.Name, &d.WeeklyClasses, &d.Status)
	if err != nil {
		return Discipline{}, db.Translate(err, fmt.Sprintf("discipline %s", guid))
	}
	return d, nil
}

// Classroom loads a classroom.
func (r *Repository) Classroom(ctx context.Context, guid uuid.UUID) (Classroom, error) {
	var c Classroom
	err := r.db.QueryRow(ctx, `SELECT guid, name, capacity, status FROM classrooms WHERE guid = $1`, guid).
		Scan(&c.GUID, &c.Name, &c.Capacity, &c.Status)
	if err != nil {
		return Classroom{}, db.Translate(err, fmt.Sprintf("classroom %s", guid))
	}
	return c, nil
}

// Shift loads a shift.
func (r *Repository) Shift(ctx context.Context, guid uuid.UUID) (Shift, error) {
	var s Shift
	err := r.db.QueryRow(ctx, `SELECT guid, name, status FROM shifts WHERE guid = $1`, guid).
		Scan(&s.GUID, &s.Name, &s.Status)
	if err != nil {
		return Shift{}, db.Translate(err, fmt.Sprintf("shift %s", guid))
	}
	return s, nil
}

// Employee loads an employee with roles.
func (r *Repository) Employee(ctx context.Context, guid uuid.UUID) (Employee, error) {
	var e Employee
	var roles []string
	err := r.db.QueryRow(ctx, `SELECT guid, name, roles, status FROM employees WHERE guid = $1`, guid).
		Scan(&e.GUID, &e.Name, &roles, &e.Status)
	if err != nil {
		return Employee{}, db.Translate(err, fmt.Sprintf("employee %s", guid))
	}
	for _, role := range roles {
		e.Roles = append(e.Roles, EmployeeRole(role))
	}
	return e, nil
}

// Students loads the students among guids that exist, in no particular order.
func (r *Repository) Students(ctx context.Context, guids []uuid.UUID) ([]Student, error) {
	if len(guids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT guid, name, COALESCE(email, ''), status FROM students WHERE guid = ANY($1)`, guids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Student, error) {
		var s Student
		err := row.Scan(&s.GUID, &s.Name, &s.Email, &s.Status)
		return s, err
	})
}

// Schedules loads the class slots among guids that exist.
func (r *Repository) Schedules(ctx context.Context, guids []uuid.UUID) ([]schedule.Schedule, error) {
	if len(guids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
SELECT guid, shift_guid, day_of_week, class_number, start_time, end_time, status
FROM class_schedules WHERE guid = ANY($1)`, guids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, ScanSchedule)
}

// ScanSchedule maps a class_schedules row in canonical column order.
func ScanSchedule(row pgx.CollectableRow) (schedule.Schedule, error) {
	var (
		s          schedule.Schedule
		start, end pgtype.Time
	)
	if err := row.Scan(&s.GUID, &s.ShiftGUID, &s.DayOfWeek, &s.ClassNumber, &start, &end, &s.Status); err != nil {
		return schedule.Schedule{}, err
	}
	s.StartTime = ClockFromPG(start)
	s.EndTime = ClockFromPG(end)
	return s, nil
}

// ClockFromPG converts a Postgres time value into a schedule clock.
func ClockFromPG(t pgtype.Time) schedule.Clock {
	if !t.Valid {
		return 0
	}
	return schedule.Clock(t.Microseconds / int64(60*1_000_000))
}

// Names resolves display names for the given guids of one reference table.
func (r *Repository) Names(ctx context.Context, table string, guids []uuid.UUID) (map[uuid.UUID]string, error) {
	switch table {
	case "disciplines", "employees", "students", "classrooms", "shifts":
	default:
		return nil, fmt.Errorf("catalog: names not supported for %s", table)
	}
	out := make(map[uuid.UUID]string, len(guids))
	if len(guids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT guid, name FROM `+table+` WHERE guid = ANY($1)`, guids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   uuid.UUID
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}
