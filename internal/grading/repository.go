package grading

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
	// Config returns the stored schema, or shared.ErrNotFound when the default applies.
	Config(ctx context.Context, periodGUID, disciplineGUID uuid.UUID) (Config, error)
	// Roster lists enrolled students with their stored grade, if any.
	Roster(ctx context.Context, periodGUID, disciplineGUID uuid.UUID) ([]StudentGrade, error)
}

// Repository reads grading data and opens transactions for writes.
type Repository interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	Reader
	InsertConfig(ctx context.Context, cfg Config) (Config, error)
	DeleteConfig(ctx context.Context, configGUID uuid.UUID) error
	InsertItem(ctx context.Context, configGUID uuid.UUID, position int, item GradeItem) (GradeItem, error)
	UpdateItem(ctx context.Context, position int, item GradeItem) error
	DeleteItems(ctx context.Context, guids []uuid.UUID) error
	SaveStudentGrade(ctx context.Context, grade StudentGrade) (StudentGrade, error)
	InsertStudentItem(ctx context.Context, gradeGUID uuid.UUID, item StudentGradeItem) error
	UpdateStudentItem(ctx context.Context, item StudentGradeItem) error
	DeleteStudentItems(ctx context.Context, guids []uuid.UUID) error
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
		return errors.New("grading: repository not initialised")
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

func (q queries) Config(ctx context.Context, periodGUID, disciplineGUID uuid.UUID) (Config, error) {
	cfg := Config{PeriodGUID: periodGUID, DisciplineGUID: disciplineGUID}
	err := q.db.QueryRow(ctx, `
SELECT guid FROM discipline_grade_configs WHERE period_guid = $1 AND discipline_guid = $2`,
		periodGUID, disciplineGUID).Scan(&cfg.GUID)
	if err != nil {
		return Config{}, db.Translate(err, "grade config")
	}
	rows, err := q.db.Query(ctx, `
SELECT guid, name, type, max_value FROM grade_items WHERE config_guid = $1 ORDER BY position`, cfg.GUID)
	if err != nil {
		return Config{}, err
	}
	cfg.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (GradeItem, error) {
		var it GradeItem
		err := row.Scan(&it.GUID, &it.Name, &it.Type, &it.MaxValue)
		return it, err
	})
	return cfg, err
}

func (q queries) Roster(ctx context.Context, periodGUID, disciplineGUID uuid.UUID) ([]StudentGrade, error) {
	rows, err := q.db.Query(ctx, `
SELECT s.guid, s.name, e.enrollment_number, sg.guid, sg.final_value
FROM enrollment_periods ep
JOIN enrollments e ON e.guid = ep.enrollment_guid
JOIN students s ON s.guid = e.student_guid
LEFT JOIN student_grades sg ON sg.period_guid = ep.period_guid AND sg.discipline_guid = $2 AND sg.student_guid = s.guid
WHERE ep.period_guid = $1`, periodGUID, disciplineGUID)
	if err != nil {
		return nil, err
	}
	grades, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (StudentGrade, error) {
		g := StudentGrade{PeriodGUID: periodGUID, DisciplineGUID: disciplineGUID, Items: []StudentGradeItem{}}
		var gradeGUID *uuid.UUID
		if err := row.Scan(&g.StudentGUID, &g.StudentName, &g.EnrollmentNumber, &gradeGUID, &g.FinalValue); err != nil {
			return StudentGrade{}, err
		}
		if gradeGUID != nil {
			g.GUID = *gradeGUID
		}
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	index := make(map[uuid.UUID]int, len(grades))
	var gradeGUIDs []uuid.UUID
	for i, g := range grades {
		if g.GUID != uuid.Nil {
			index[g.GUID] = i
			gradeGUIDs = append(gradeGUIDs, g.GUID)
		}
	}
	if len(gradeGUIDs) == 0 {
		return grades, nil
	}
	itemRows, err := q.db.Query(ctx, `
SELECT student_grade_guid, guid, grade_item_guid, value
FROM student_grade_items WHERE student_grade_guid = ANY($1)
ORDER BY created_at, guid`, gradeGUIDs)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var (
			owner uuid.UUID
			it    StudentGradeItem
		)
		if err := itemRows.Scan(&owner, &it.GUID, &it.GradeItemGUID, &it.Value); err != nil {
			return nil, err
		}
		i := index[owner]
		grades[i].Items = append(grades[i].Items, it)
	}
	return grades, itemRows.Err()
}

func (q queries) InsertConfig(ctx context.Context, cfg Config) (Config, error) {
	if cfg.GUID == uuid.Nil {
		cfg.GUID = uuid.New()
	}
	_, err := q.db.Exec(ctx, `
INSERT INTO discipline_grade_configs (guid, period_guid, discipline_guid) VALUES ($1, $2, $3)`,
		cfg.GUID, cfg.PeriodGUID, cfg.DisciplineGUID)
	if err != nil {
		return Config{}, db.Translate(err, "grade config")
	}
	return cfg, nil
}

func (q queries) DeleteConfig(ctx context.Context, configGUID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM discipline_grade_configs WHERE guid = $1`, configGUID)
	return err
}

func (q queries) InsertItem(ctx context.Context, configGUID uuid.UUID, position int, item GradeItem) (GradeItem, error) {
	if item.GUID == uuid.Nil {
		item.GUID = uuid.New()
	}
	_, err := q.db.Exec(ctx, `
INSERT INTO grade_items (guid, config_guid, name, type, max_value, position) VALUES ($1, $2, $3, $4, $5, $6)`,
		item.GUID, configGUID, item.Name, item.Type, item.MaxValue, position)
	if err != nil {
		return GradeItem{}, db.Translate(err, "grade item")
	}
	return item, nil
}

func (q queries) UpdateItem(ctx context.Context, position int, item GradeItem) error {
	tag, err := q.db.Exec(ctx, `
UPDATE grade_items SET name = $2, type = $3, max_value = $4, position = $5, updated_at = NOW() WHERE guid = $1`,
		item.GUID, item.Name, item.Type, item.MaxValue, position)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: grade item %s", shared.ErrNotFound, item.GUID)
	}
	return nil
}

func (q queries) DeleteItems(ctx context.Context, guids []uuid.UUID) error {
	if len(guids) == 0 {
		return nil
	}
	_, err := q.db.Exec(ctx, `DELETE FROM grade_items WHERE guid = ANY($1)`, guids)
	return err
}

func (q queries) SaveStudentGrade(ctx context.Context, g StudentGrade) (StudentGrade, error) {
	if g.GUID == uuid.Nil {
		g.GUID = uuid.New()
	}
	err := q.db.QueryRow(ctx, `
INSERT INTO student_grades (guid, period_guid, discipline_guid, student_guid, final_value)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (period_guid, discipline_guid, student_guid)
DO UPDATE SET final_value = EXCLUDED.final_value, updated_at = NOW()
RETURNING guid`, g.GUID, g.PeriodGUID, g.DisciplineGUID, g.StudentGUID, g.FinalValue).Scan(&g.GUID)
	if err != nil {
		return StudentGrade{}, db.Translate(err, "student grade")
	}
	return g, nil
}

func (q queries) InsertStudentItem(ctx context.Context, gradeGUID uuid.UUID, item StudentGradeItem) error {
	if item.GUID == uuid.Nil {
		item.GUID = uuid.New()
	}
	_, err := q.db.Exec(ctx, `
INSERT INTO student_grade_items (guid, student_grade_guid, grade_item_guid, value) VALUES ($1, $2, $3, $4)`,
		item.GUID, gradeGUID, item.GradeItemGUID, item.Value)
	return db.Translate(err, "student grade item")
}

func (q queries) UpdateStudentItem(ctx context.Context, item StudentGradeItem) error {
	_, err := q.db.Exec(ctx, `
UPDATE student_grade_items SET grade_item_guid = $2, value = $3, updated_at = NOW() WHERE guid = $1`,
		item.GUID, item.GradeItemGUID, item.Value)
	return err
}

func (q queries) DeleteStudentItems(ctx context.Context, guids []uuid.UUID) error {
	if len(guids) == 0 {
		return nil
	}
	_, err := q.db.Exec(ctx, `DELETE FROM student_grade_items WHERE guid = ANY($1)`, guids)
	return err
}
