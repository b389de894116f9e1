package enrollment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-academic/internal/catalog"
	"github.com/odyssey-erp/odyssey-academic/internal/platform/db"
)

// Repository reads rosters and opens transactions for enrollment writes.
type Repository interface {
	Period(ctx context.Context, guid uuid.UUID) (PeriodRef, error)
	Roster(ctx context.Context, periodGUID uuid.UUID) ([]RosterEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	// PeriodForUpdate locks the period row. Enrollment transactions run at ReadCommitted, so
	// reads after the lock see links committed by the previous holder.
	PeriodForUpdate(ctx context.Context, guid uuid.UUID) (PeriodRef, error)
	Students(ctx context.Context, guids []uuid.UUID) ([]catalog.Student, error)
	FindEnrollment(ctx context.Context, studentGUID, courseGUID uuid.UUID) (Enrollment, error)
	NextNumber(ctx context.Context, year int) (string, error)
	InsertEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
	IsLinked(ctx context.Context, enrollmentGUID, periodGUID uuid.UUID) (bool, error)
	Link(ctx context.Context, enrollmentGUID, periodGUID uuid.UUID) error
	CountLinked(ctx context.Context, periodGUID uuid.UUID) (int, error)
	LinkedAmong(ctx context.Context, periodGUID uuid.UUID, enrollmentGUIDs []uuid.UUID) ([]uuid.UUID, error)
	Unlink(ctx context.Context, periodGUID uuid.UUID, enrollmentGUIDs []uuid.UUID) (int64, error)
}

type pool interface {
	db.DBTX
	db.TxBeginner
}

type repository struct {
	pool pool
}

// NewRepository constructs the pgx-backed Repository.
func NewRepository(p *pgxpool.Pool) Repository {
	if p == nil {
		return &repository{}
	}
	return &repository{pool: p}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("enrollment: repository not initialised")
	}
	return db.WithIsolatedTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{Repository: catalog.NewRepository(tx), db: tx})
	})
}

const periodRefQuery = `
SELECT p.guid, p.status, m.course_guid, p.vacancies
FROM periods p
JOIN matrix_modules mm ON mm.guid = p.matrix_module_guid
JOIN matrices m ON m.guid = mm.matrix_guid
WHERE p.guid = $1`

func scanPeriodRef(row pgx.Row, guid uuid.UUID) (PeriodRef, error) {
	var p PeriodRef
	if err := row.Scan(&p.GUID, &p.Status, &p.CourseGUID, &p.Vacancies); err != nil {
		return PeriodRef{}, db.Translate(err, fmt.Sprintf("period %s", guid))
	}
	return p, nil
}

func (r *repository) Period(ctx context.Context, guid uuid.UUID) (PeriodRef, error) {
	return scanPeriodRef(r.pool.QueryRow(ctx, periodRefQuery, guid), guid)
}

func (r *repository) Roster(ctx context.Context, periodGUID uuid.UUID) ([]RosterEntry, error) {
	return roster(ctx, r.pool, periodGUID)
}

func roster(ctx context.Context, conn db.DBTX, periodGUID uuid.UUID) ([]RosterEntry, error) {
	rows, err := conn.Query(ctx, `
SELECT e.guid, e.enrollment_number, s.guid, s.name, COALESCE(s.email, ''), ep.created_at
FROM enrollment_periods ep
JOIN enrollments e ON e.guid = ep.enrollment_guid
JOIN students s ON s.guid = e.student_guid
WHERE ep.period_guid = $1`, periodGUID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (RosterEntry, error) {
		var e RosterEntry
		err := row.Scan(&e.EnrollmentGUID, &e.Number, &e.StudentGUID, &e.StudentName, &e.Email, &e.EnrolledAt)
		return e, err
	})
}

type txRepository struct {
	*catalog.Repository
	db pgx.Tx
}

func (t *txRepository) PeriodForUpdate(ctx context.Context, guid uuid.UUID) (PeriodRef, error) {
	return scanPeriodRef(t.db.QueryRow(ctx, periodRefQuery+` FOR UPDATE OF p`, guid), guid)
}

func (t *txRepository) FindEnrollment(ctx context.Context, studentGUID, courseGUID uuid.UUID) (Enrollment, error) {
	var e Enrollment
	err := t.db.QueryRow(ctx, `
SELECT guid, student_guid, course_guid, enrollment_number, created_at
FROM enrollments WHERE student_guid = $1 AND course_guid = $2`, studentGUID, courseGUID).
		Scan(&e.GUID, &e.StudentGUID, &e.CourseGUID, &e.Number, &e.CreatedAt)
	if err != nil {
		return Enrollment{}, db.Translate(err, "enrollment")
	}
	return e, nil
}

func (t *txRepository) NextNumber(ctx context.Context, year int) (string, error) {
	var seq int64
	err := t.db.QueryRow(ctx, `
INSERT INTO enrollment_number_counters (year, last_value) VALUES ($1, 1)
ON CONFLICT (year) DO UPDATE SET last_value = enrollment_number_counters.last_value + 1
RETURNING last_value`, year).Scan(&seq)
	if err != nil {
		return "", err
	}
	return FormatNumber(year, seq), nil
}

func (t *txRepository) InsertEnrollment(ctx context.Context, e Enrollment) (Enrollment, error) {
	if e.GUID == uuid.Nil {
		e.GUID = uuid.New()
	}
	err := t.db.QueryRow(ctx, `
INSERT INTO enrollments (guid, student_guid, course_guid, enrollment_number)
VALUES ($1, $2, $3, $4)
RETURNING created_at`, e.GUID, e.StudentGUID, e.CourseGUID, e.Number).Scan(&e.CreatedAt)
	if err != nil {
		return Enrollment{}, db.Translate(err, "enrollment")
	}
	return e, nil
}

func (t *txRepository) IsLinked(ctx context.Context, enrollmentGUID, periodGUID uuid.UUID) (bool, error) {
	var linked bool
	err := t.db.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM enrollment_periods WHERE enrollment_guid = $1 AND period_guid = $2)`,
		enrollmentGUID, periodGUID).Scan(&linked)
	return linked, err
}

func (t *txRepository) Link(ctx context.Context, enrollmentGUID, periodGUID uuid.UUID) error {
	_, err := t.db.Exec(ctx, `
INSERT INTO enrollment_periods (enrollment_guid, period_guid) VALUES ($1, $2)`, enrollmentGUID, periodGUID)
	if err != nil {
		return db.Translate(err, "enrollment period")
	}
	return nil
}

func (t *txRepository) CountLinked(ctx context.Context, periodGUID uuid.UUID) (int, error) {
	var n int
	err := t.db.QueryRow(ctx, `SELECT COUNT(*) FROM enrollment_periods WHERE period_guid = $1`, periodGUID).Scan(&n)
	return n, err
}

func (t *txRepository) LinkedAmong(ctx context.Context, periodGUID uuid.UUID, enrollmentGUIDs []uuid.UUID) ([]uuid.UUID, error) {
	rows, err := t.db.Query(ctx, `
SELECT enrollment_guid FROM enrollment_periods
WHERE period_guid = $1 AND enrollment_guid = ANY($2)`, periodGUID, enrollmentGUIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (t *txRepository) Unlink(ctx context.Context, periodGUID uuid.UUID, enrollmentGUIDs []uuid.UUID) (int64, error) {
	tag, err := t.db.Exec(ctx, `
DELETE FROM enrollment_periods WHERE period_guid = $1 AND enrollment_guid = ANY($2)`, periodGUID, enrollmentGUIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
