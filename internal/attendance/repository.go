package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-academic/internal/period"
	"github.com/odyssey-erp/odyssey-academic/internal/platform/db"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// Reader holds the reads shared by pool and transaction access.
type Reader interface {
	PeriodStatus(ctx context.Context, periodGUID uuid.UUID) (period.Status, error)
	HasDiscipline(ctx context.Context, periodGUID, disciplineGUID uuid.UUID) (bool, error)
}

// Repository reads attendance logs and opens transactions for writes.
type Repository interface {
	Reader
	Get(ctx context.Context, guid uuid.UUID) (Log, error)
	List(ctx context.Context, periodGUID, disciplineGUID uuid.UUID, limit, offset int) ([]Summary, int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	Reader
	// Enrolled returns the subset of students linked to the period.
	Enrolled(ctx context.Context, periodGUID uuid.UUID, students []uuid.UUID) (map[uuid.UUID]struct{}, error)
	GetForUpdate(ctx context.Context, guid uuid.UUID) (Log, error)
	InsertLog(ctx context.Context, l Log) (Log, error)
	UpdateLog(ctx context.Context, l Log) error
	InsertAbsence(ctx context.Context, logGUID uuid.UUID, a StudentAbsence) error
	UpdateAbsence(ctx context.Context, a StudentAbsence) error
	DeleteAbsences(ctx context.Context, guids []uuid.UUID) error
}

type repository struct {
	queries
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{queries: queries{db: pool}, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("attendance: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &queries{db: tx})
	})
}

type queries struct {
	db db.DBTX
}

func (q queries) PeriodStatus(ctx context.Context, periodGUID uuid.UUID) (period.Status, error) {
	var st period.Status
	if err := q.db.QueryRow(ctx, `SELECT status FROM periods WHERE guid = $1`, periodGUID).Scan(&st); err != nil {
		return "", db.Translate(err, fmt.Sprintf("period %s", periodGUID))
	}
	return st, nil
}

func (q queries) HasDiscipline(ctx context.Context, periodGUID, disciplineGUID uuid.UUID) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM periods p
	JOIN matrix_module_disciplines mmd ON mmd.matrix_module_guid = p.matrix_module_guid
	WHERE p.guid = $1 AND mmd.discipline_guid = $2
)`, periodGUID, disciplineGUID).Scan(&ok)
	return ok, err
}

func (q queries) Enrolled(ctx context.Context, periodGUID uuid.UUID, students []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	rows, err := q.db.Query(ctx, `
SELECT e.student_guid
FROM enrollment_periods ep
JOIN enrollments e ON e.guid = ep.enrollment_guid
WHERE ep.period_guid = $1 AND e.student_guid = ANY($2)`, periodGUID, students)
	if err != nil {
		return nil, err
	}
	guids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]struct{}, len(guids))
	for _, g := range guids {
		out[g] = struct{}{}
	}
	return out, nil
}

func (q queries) Get(ctx context.Context, guid uuid.UUID) (Log, error) {
	return q.load(ctx, guid, false)
}

func (q queries) GetForUpdate(ctx context.Context, guid uuid.UUID) (Log, error) {
	return q.load(ctx, guid, true)
}

func (q queries) load(ctx context.Context, guid uuid.UUID, lock bool) (Log, error) {
	stmt := `
SELECT guid, period_guid, discipline_guid, class_date, total_classes, class_summary
FROM attendance_logs WHERE guid = $1`
	if lock {
		stmt += ` FOR UPDATE`
	}
	var l Log
	err := q.db.QueryRow(ctx, stmt, guid).Scan(&l.GUID, &l.PeriodGUID, &l.DisciplineGUID, &l.ClassDate, &l.TotalClasses, &l.ClassSummary)
	if err != nil {
		return Log{}, db.Translate(err, fmt.Sprintf("attendance log %s", guid))
	}
	rows, err := q.db.Query(ctx, `
SELECT sa.guid, sa.student_guid, s.name, sa.total_absences, sa.total_presences
FROM student_absences sa
JOIN students s ON s.guid = sa.student_guid
WHERE sa.attendance_log_guid = $1`, guid)
	if err != nil {
		return Log{}, err
	}
	l.Absences, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (StudentAbsence, error) {
		var a StudentAbsence
		err := row.Scan(&a.GUID, &a.StudentGUID, &a.StudentName, &a.TotalAbsences, &a.TotalPresences)
		return a, err
	})
	return l, err
}

func (q queries) List(ctx context.Context, periodGUID, disciplineGUID uuid.UUID, limit, offset int) ([]Summary, int, error) {
	var total int
	if err := q.db.QueryRow(ctx, `
SELECT COUNT(*) FROM attendance_logs WHERE period_guid = $1 AND discipline_guid = $2`,
		periodGUID, disciplineGUID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.db.Query(ctx, `
SELECT guid, class_date, class_summary FROM attendance_logs
WHERE period_guid = $1 AND discipline_guid = $2
ORDER BY class_date DESC
LIMIT $3 OFFSET $4`, periodGUID, disciplineGUID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Summary, error) {
		var s Summary
		err := row.Scan(&s.GUID, &s.ClassDate, &s.ClassSummary)
		return s, err
	})
	return out, total, err
}

func (q queries) InsertLog(ctx context.Context, l Log) (Log, error) {
	if l.GUID == uuid.Nil {
		l.GUID = uuid.New()
	}
	_, err := q.db.Exec(ctx, `
INSERT INTO attendance_logs (guid, period_guid, discipline_guid, class_date, total_classes, class_summary)
VALUES ($1, $2, $3, $4, $5, $6)`,
		l.GUID, l.PeriodGUID, l.DisciplineGUID, l.ClassDate, l.TotalClasses, l.ClassSummary)
	if err != nil {
		return Log{}, db.Translate(err, fmt.Sprintf("attendance log on %s", l.ClassDate.Format("2006-01-02")))
	}
	return l, nil
}

func (q queries) UpdateLog(ctx context.Context, l Log) error {
	tag, err := q.db.Exec(ctx, `
UPDATE attendance_logs SET class_date = $2, total_classes = $3, class_summary = $4, updated_at = NOW()
WHERE guid = $1`, l.GUID, l.ClassDate, l.TotalClasses, l.ClassSummary)
	if err != nil {
		return db.Translate(err, fmt.Sprintf("attendance log on %s", l.ClassDate.Format("2006-01-02")))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: attendance log %s", shared.ErrNotFound, l.GUID)
	}
	return nil
}

func (q queries) InsertAbsence(ctx context.Context, logGUID uuid.UUID, a StudentAbsence) error {
	if a.GUID == uuid.Nil {
		a.GUID = uuid.New()
	}
	_, err := q.db.Exec(ctx, `
INSERT INTO student_absences (guid, attendance_log_guid, student_guid, total_absences, total_presences)
VALUES ($1, $2, $3, $4, $5)`, a.GUID, logGUID, a.StudentGUID, a.TotalAbsences, a.TotalPresences)
	return db.Translate(err, fmt.Sprintf("absence of student %s", a.StudentGUID))
}

func (q queries) UpdateAbsence(ctx context.Context, a StudentAbsence) error {
	_, err := q.db.Exec(ctx, `
UPDATE student_absences SET total_absences = $2, total_presences = $3, updated_at = NOW() WHERE guid = $1`,
		a.GUID, a.TotalAbsences, a.TotalPresences)
	return err
}

func (q queries) DeleteAbsences(ctx context.Context, guids []uuid.UUID) error {
	if len(guids) == 0 {
		return nil
	}
	_, err := q.db.Exec(ctx, `DELETE FROM student_absences WHERE guid = ANY($1)`, guids)
	return err
}
