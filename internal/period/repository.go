package period

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-academic/internal/catalog"
	"github.com/odyssey-erp/odyssey-academic/internal/platform/db"
	"github.com/odyssey-erp/odyssey-academic/internal/schedule"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// Catalog exposes the reference reads the period rules depend on.
type Catalog interface {
	MatrixModule(ctx context.Context, guid uuid.UUID) (catalog.MatrixModule, error)
	Classroom(ctx context.Context, guid uuid.UUID) (catalog.Classroom, error)
	Shift(ctx context.Context, guid uuid.UUID) (catalog.Shift, error)
	Employee(ctx context.Context, guid uuid.UUID) (catalog.Employee, error)
	Schedules(ctx context.Context, guids []uuid.UUID) ([]schedule.Schedule, error)
	Names(ctx context.Context, table string, guids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Repository reads periods outside transactions and opens transactions for writes.
type Repository interface {
	Catalog
	Get(ctx context.Context, guid uuid.UUID) (Period, error)
	List(ctx context.Context, filter ListFilter) ([]ListRow, int, error)
	EnrolledCount(ctx context.Context, periodGUID uuid.UUID) (int, error)
	// EmployeeBookings lists the educator's assignments in live periods.
	EmployeeBookings(ctx context.Context, employee uuid.UUID) ([]schedule.DisciplineSchedule, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// DateField names the period date a lifecycle transition keys on.
type DateField string

const (
	FieldEnrollmentStart DateField = "enrollment_start_date"
	FieldEnrollmentEnd   DateField = "enrollment_end_date"
	FieldDeadline        DateField = "deadline"
)

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	Catalog
	GetForUpdate(ctx context.Context, guid uuid.UUID) (Period, error)
	OfferingExists(ctx context.Context, matrixModule uuid.UUID, classID string, exclude uuid.UUID) (bool, error)
	ClassroomBookings(ctx context.Context, classroom, shift uuid.UUID) ([]schedule.DisciplineSchedule, error)
	EmployeeBookings(ctx context.Context, employee uuid.UUID) ([]schedule.DisciplineSchedule, error)
	InsertPeriod(ctx context.Context, p Period) (Period, error)
	UpdatePeriod(ctx context.Context, p Period) (Period, error)
	InsertDisciplineSchedule(ctx context.Context, ds schedule.DisciplineSchedule) (schedule.DisciplineSchedule, error)
	UpdateDisciplineSchedule(ctx context.Context, ds schedule.DisciplineSchedule) error
	DeleteDisciplineSchedules(ctx context.Context, guids []uuid.UUID) error
	DueForTransition(ctx context.Context, from Status, field DateField, day time.Time) ([]uuid.UUID, error)
	UpdateStatuses(ctx context.Context, guids []uuid.UUID, from, to Status) (int64, error)
}

type repository struct {
	*catalog.Repository
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{Repository: catalog.NewRepository(pool), pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("period: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{Repository: r.Repository.WithDB(tx), q: queries{db: tx}})
	})
}

func (r *repository) Get(ctx context.Context, guid uuid.UUID) (Period, error) {
	return queries{db: r.pool}.loadPeriod(ctx, guid, false)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]ListRow, int, error) {
	return queries{db: r.pool}.list(ctx, filter)
}

func (r *repository) EnrolledCount(ctx context.Context, periodGUID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM enrollment_periods WHERE period_guid = $1`, periodGUID).Scan(&n)
	return n, err
}

func (r *repository) EmployeeBookings(ctx context.Context, employee uuid.UUID) ([]schedule.DisciplineSchedule, error) {
	return queries{db: r.pool}.bookings(ctx, `ds.employee_guid = $2`, employee)
}

type txRepository struct {
	*catalog.Repository
	q queries
}

func (t *txRepository) GetForUpdate(ctx context.Context, guid uuid.UUID) (Period, error) {
	return t.q.loadPeriod(ctx, guid, true)
}

func (t *txRepository) OfferingExists(ctx context.Context, matrixModule uuid.UUID, classID string, exclude uuid.UUID) (bool, error) {
	var exists bool
	err := t.q.db.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM periods
	WHERE matrix_module_guid = $1 AND class_id = $2 AND guid <> $3
	  AND status NOT IN ('draft', 'finished', 'canceled')
)`, matrixModule, classID, exclude).Scan(&exists)
	return exists, err
}

func (t *txRepository) ClassroomBookings(ctx context.Context, classroom, shift uuid.UUID) ([]schedule.DisciplineSchedule, error) {
	return t.q.bookings(ctx, `p.classroom_guid = $2 AND cs.shift_guid = $3`, classroom, shift)
}

func (t *txRepository) EmployeeBookings(ctx context.Context, employee uuid.UUID) ([]schedule.DisciplineSchedule, error) {
	return t.q.bookings(ctx, `ds.employee_guid = $2`, employee)
}

func (t *txRepository) InsertPeriod(ctx context.Context, p Period) (Period, error) {
	if p.GUID == uuid.Nil {
		p.GUID = uuid.New()
	}
	err := t.q.db.QueryRow(ctx, `
INSERT INTO periods (guid, status, matrix_module_guid, class_id, enrollment_start_date, enrollment_end_date,
	deadline, vacancies, classroom_guid, shift_guid)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10)
RETURNING created_at, updated_at`,
		p.GUID, p.Status, p.MatrixModuleGUID, p.ClassID, p.EnrollmentStartDate, p.EnrollmentEndDate,
		p.Deadline, p.Vacancies, p.ClassroomGUID, p.ShiftGUID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Period{}, db.Translate(err, "period")
	}
	return p, nil
}

func (t *txRepository) UpdatePeriod(ctx context.Context, p Period) (Period, error) {
	err := t.q.db.QueryRow(ctx, `
UPDATE periods SET status = $2, matrix_module_guid = $3, class_id = NULLIF($4, ''),
	enrollment_start_date = $5, enrollment_end_date = $6, deadline = $7, vacancies = $8,
	classroom_guid = $9, shift_guid = $10, updated_at = NOW()
WHERE guid = $1
RETURNING updated_at`,
		p.GUID, p.Status, p.MatrixModuleGUID, p.ClassID, p.EnrollmentStartDate, p.EnrollmentEndDate,
		p.Deadline, p.Vacancies, p.ClassroomGUID, p.ShiftGUID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return Period{}, db.Translate(err, fmt.Sprintf("period %s", p.GUID))
	}
	return p, nil
}

func (t *txRepository) InsertDisciplineSchedule(ctx context.Context, ds schedule.DisciplineSchedule) (schedule.DisciplineSchedule, error) {
	if ds.GUID == uuid.Nil {
		ds.GUID = uuid.New()
	}
	_, err := t.q.db.Exec(ctx, `
INSERT INTO discipline_schedules (guid, period_guid, employee_guid, discipline_guid)
VALUES ($1, $2, $3, $4)`, ds.GUID, ds.PeriodGUID, ds.EmployeeGUID, ds.DisciplineGUID)
	if err != nil {
		return schedule.DisciplineSchedule{}, db.Translate(err, "discipline schedule")
	}
	if err := t.q.attachSlots(ctx, ds); err != nil {
		return schedule.DisciplineSchedule{}, err
	}
	return ds, nil
}

func (t *txRepository) UpdateDisciplineSchedule(ctx context.Context, ds schedule.DisciplineSchedule) error {
	tag, err := t.q.db.Exec(ctx, `
UPDATE discipline_schedules SET employee_guid = $2, discipline_guid = $3, updated_at = NOW()
WHERE guid = $1`, ds.GUID, ds.EmployeeGUID, ds.DisciplineGUID)
	if err != nil {
		return db.Translate(err, "discipline schedule")
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, fmt.Sprintf("discipline schedule %s", ds.GUID))
	}
	if _, err := t.q.db.Exec(ctx, `DELETE FROM discipline_schedule_slots WHERE discipline_schedule_guid = $1`, ds.GUID); err != nil {
		return err
	}
	return t.q.attachSlots(ctx, ds)
}

func (t *txRepository) DeleteDisciplineSchedules(ctx context.Context, guids []uuid.UUID) error {
	if len(guids) == 0 {
		return nil
	}
	_, err := t.q.db.Exec(ctx, `DELETE FROM discipline_schedules WHERE guid = ANY($1)`, guids)
	return err
}

func (t *txRepository) DueForTransition(ctx context.Context, from Status, field DateField, day time.Time) ([]uuid.UUID, error) {
	switch field {
	case FieldEnrollmentStart, FieldEnrollmentEnd, FieldDeadline:
	default:
		return nil, fmt.Errorf("period: unknown date field %q", field)
	}
	rows, err := t.q.db.Query(ctx, `SELECT guid FROM periods WHERE status = $1 AND `+string(field)+` = $2::date`, from, Day(day))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (t *txRepository) UpdateStatuses(ctx context.Context, guids []uuid.UUID, from, to Status) (int64, error) {
	if len(guids) == 0 {
		return 0, nil
	}
	tag, err := t.q.db.Exec(ctx, `UPDATE periods SET status = $3, updated_at = NOW() WHERE guid = ANY($1) AND status = $2`, guids, from, to)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// queries holds the SQL shared by pool and transaction reads.
type queries struct {
	db db.DBTX
}

const periodColumns = `p.guid, p.status, p.matrix_module_guid, COALESCE(p.class_id, ''), p.enrollment_start_date,
	p.enrollment_end_date, p.deadline, p.vacancies, p.classroom_guid, p.shift_guid, p.created_at, p.updated_at`

func scanPeriod(row pgx.Row, extra ...any) (Period, error) {
	var p Period
	dest := []any{&p.GUID, &p.Status, &p.MatrixModuleGUID, &p.ClassID, &p.EnrollmentStartDate,
		&p.EnrollmentEndDate, &p.Deadline, &p.Vacancies, &p.ClassroomGUID, &p.ShiftGUID, &p.CreatedAt, &p.UpdatedAt}
	err := row.Scan(append(dest, extra...)...)
	return p, err
}

func (q queries) loadPeriod(ctx context.Context, guid uuid.UUID, lock bool) (Period, error) {
	sql := `SELECT ` + periodColumns + ` FROM periods p WHERE p.guid = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	p, err := scanPeriod(q.db.QueryRow(ctx, sql, guid))
	if err != nil {
		return Period{}, db.Translate(err, fmt.Sprintf("period %s", guid))
	}
	byPeriod, err := q.disciplineSchedules(ctx, []uuid.UUID{guid})
	if err != nil {
		return Period{}, err
	}
	p.DisciplineSchedules = byPeriod[guid]
	return p, nil
}

func (q queries) list(ctx context.Context, filter ListFilter) ([]ListRow, int, error) {
	const where = `
FROM periods p
JOIN matrix_modules mm ON mm.guid = p.matrix_module_guid
JOIN matrices m ON m.guid = mm.matrix_guid
JOIN courses c ON c.guid = m.course_guid
WHERE ($1 = '' OR c.name ILIKE '%' || $1 || '%' OR m.name ILIKE '%' || $1 || '%'
	OR mm.name ILIKE '%' || $1 || '%' OR p.class_id ILIKE '%' || $1 || '%')
  AND ($2 = '' OR p.status = $2)`
	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*)`+where, filter.SearchTerm, string(filter.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	rows, err := q.db.Query(ctx, `SELECT `+periodColumns+`, c.name, m.name, mm.name`+where+`
ORDER BY p.created_at DESC
LIMIT $3 OFFSET $4`, filter.SearchTerm, string(filter.Status), perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out  []ListRow
		keys []uuid.UUID
	)
	for rows.Next() {
		var l Labels
		p, err := scanPeriod(rows, &l.Course, &l.Matrix, &l.Module)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ListRow{Period: p, Labels: l})
		keys = append(keys, p.GUID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	byPeriod, err := q.disciplineSchedules(ctx, keys)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].DisciplineSchedules = byPeriod[out[i].GUID]
	}
	return out, total, nil
}

const bookingSelect = `
SELECT ds.guid, ds.period_guid, ds.employee_guid, ds.discipline_guid,
	cs.guid, cs.shift_guid, cs.day_of_week, cs.class_number, cs.start_time, cs.end_time, cs.status
FROM discipline_schedules ds
JOIN periods p ON p.guid = ds.period_guid
JOIN discipline_schedule_slots dss ON dss.discipline_schedule_guid = ds.guid
JOIN class_schedules cs ON cs.guid = dss.class_schedule_guid`

func (q queries) disciplineSchedules(ctx context.Context, periods []uuid.UUID) (map[uuid.UUID][]schedule.DisciplineSchedule, error) {
	out := make(map[uuid.UUID][]schedule.DisciplineSchedule, len(periods))
	if len(periods) == 0 {
		return out, nil
	}
	rows, err := q.db.Query(ctx, bookingSelect+`
WHERE ds.period_guid = ANY($1)
ORDER BY ds.created_at, ds.guid, cs.day_of_week, cs.class_number`, periods)
	if err != nil {
		return nil, err
	}
	items, err := collectBookings(rows)
	if err != nil {
		return nil, err
	}
	for _, ds := range items {
		out[ds.PeriodGUID] = append(out[ds.PeriodGUID], ds)
	}
	return out, nil
}

// bookings loads discipline schedules of live periods matching cond; $1 is reserved for the statuses.
func (q queries) bookings(ctx context.Context, cond string, args ...any) ([]schedule.DisciplineSchedule, error) {
	live := make([]string, 0, len(LiveStatuses))
	for _, s := range LiveStatuses {
		live = append(live, string(s))
	}
	rows, err := q.db.Query(ctx, bookingSelect+`
WHERE p.status = ANY($1) AND `+cond+`
ORDER BY ds.guid`, append([]any{live}, args...)...)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func collectBookings(rows pgx.Rows) ([]schedule.DisciplineSchedule, error) {
	defer rows.Close()
	var (
		out   []schedule.DisciplineSchedule
		index = map[uuid.UUID]int{}
	)
	for rows.Next() {
		var ds schedule.DisciplineSchedule
		var cols []any
		cols = append(cols, &ds.GUID, &ds.PeriodGUID, &ds.EmployeeGUID, &ds.DisciplineGUID)
		slot, err := catalog.ScanSchedule(prefixedRow{Rows: rows, prefix: cols})
		if err != nil {
			return nil, err
		}
		i, ok := index[ds.GUID]
		if !ok {
			i = len(out)
			index[ds.GUID] = i
			out = append(out, ds)
		}
		out[i].Schedules = append(out[i].Schedules, slot)
	}
	return out, rows.Err()
}

// prefixedRow lets catalog.ScanSchedule read the trailing slot columns of a wider row.
type prefixedRow struct {
	pgx.Rows
	prefix []any
}

func (r prefixedRow) Scan(dest ...any) error {
	return r.Rows.Scan(append(r.prefix, dest...)...)
}

func (q queries) attachSlots(ctx context.Context, ds schedule.DisciplineSchedule) error {
	for _, s := range ds.Schedules {
		if _, err := q.db.Exec(ctx, `
INSERT INTO discipline_schedule_slots (discipline_schedule_guid, class_schedule_guid) VALUES ($1, $2)`, ds.GUID, s.GUID); err != nil {
			return db.Translate(err, "discipline schedule slot")
		}
	}
	return nil
}
