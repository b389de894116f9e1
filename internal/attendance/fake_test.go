package attendance

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/period"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

type scopeKey struct{ period, discipline uuid.UUID }

type storedAbsence struct {
	StudentAbsence
	log uuid.UUID
}

type memRepo struct {
	statuses    map[uuid.UUID]period.Status
	disciplines map[scopeKey]bool
	students    map[uuid.UUID]map[uuid.UUID]string // period -> student -> name
	logs        map[uuid.UUID]Log
	absences    map[uuid.UUID]storedAbsence
	absenceOps  []string
}

func newMemRepo() *memRepo {
	return &memRepo{
		statuses:    map[uuid.UUID]period.Status{},
		disciplines: map[scopeKey]bool{},
		students:    map[uuid.UUID]map[uuid.UUID]string{},
		logs:        map[uuid.UUID]Log{},
		absences:    map[uuid.UUID]storedAbsence{},
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	logs := make(map[uuid.UUID]Log, len(m.logs))
	for k, v := range m.logs {
		logs[k] = v
	}
	absences := make(map[uuid.UUID]storedAbsence, len(m.absences))
	for k, v := range m.absences {
		absences[k] = v
	}
	if err := fn(ctx, m); err != nil {
		m.logs, m.absences = logs, absences
		return err
	}
	return nil
}

func (m *memRepo) PeriodStatus(_ context.Context, guid uuid.UUID) (period.Status, error) {
	st, ok := m.statuses[guid]
	if !ok {
		return "", fmt.Errorf("%w: period %s", shared.ErrNotFound, guid)
	}
	return st, nil
}

func (m *memRepo) HasDiscipline(_ context.Context, p, d uuid.UUID) (bool, error) {
	return m.disciplines[scopeKey{p, d}], nil
}

func (m *memRepo) Enrolled(_ context.Context, p uuid.UUID, students []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	out := map[uuid.UUID]struct{}{}
	for _, s := range students {
		if _, ok := m.students[p][s]; ok {
			out[s] = struct{}{}
		}
	}
	return out, nil
}

func (m *memRepo) Get(_ context.Context, guid uuid.UUID) (Log, error) {
	l, ok := m.logs[guid]
	if !ok {
		return Log{}, fmt.Errorf("%w: attendance log %s", shared.ErrNotFound, guid)
	}
	l.Absences = nil
	for _, a := range m.absences {
		if a.log == guid {
			sa := a.StudentAbsence
			sa.StudentName = m.students[l.PeriodGUID][sa.StudentGUID]
			l.Absences = append(l.Absences, sa)
		}
	}
	return l, nil
}

func (m *memRepo) GetForUpdate(ctx context.Context, guid uuid.UUID) (Log, error) {
	return m.Get(ctx, guid)
}

func (m *memRepo) List(_ context.Context, p, d uuid.UUID, limit, offset int) ([]Summary, int, error) {
	var rows []Summary
	for _, l := range m.logs {
		if l.PeriodGUID == p && l.DisciplineGUID == d {
			rows = append(rows, Summary{GUID: l.GUID, ClassDate: l.ClassDate, ClassSummary: l.ClassSummary})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ClassDate.After(rows[j].ClassDate) })
	total := len(rows)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return rows[offset:end], total, nil
}

func (m *memRepo) sameDay(l Log) bool {
	for _, other := range m.logs {
		if other.GUID != l.GUID && other.PeriodGUID == l.PeriodGUID &&
			other.DisciplineGUID == l.DisciplineGUID && other.ClassDate.Equal(l.ClassDate) {
			return true
		}
	}
	return false
}

func (m *memRepo) InsertLog(_ context.Context, l Log) (Log, error) {
	if l.GUID == uuid.Nil {
		l.GUID = uuid.New()
	}
	if m.sameDay(l) {
		return Log{}, fmt.Errorf("%w: attendance log on %s", shared.ErrConflict, l.ClassDate.Format("2006-01-02"))
	}
	l.Absences = nil
	m.logs[l.GUID] = l
	return l, nil
}

func (m *memRepo) UpdateLog(_ context.Context, l Log) error {
	if _, ok := m.logs[l.GUID]; !ok {
		return fmt.Errorf("%w: attendance log %s", shared.ErrNotFound, l.GUID)
	}
	if m.sameDay(l) {
		return fmt.Errorf("%w: attendance log on %s", shared.ErrConflict, l.ClassDate.Format("2006-01-02"))
	}
	l.Absences = nil
	m.logs[l.GUID] = l
	return nil
}

func (m *memRepo) InsertAbsence(_ context.Context, logGUID uuid.UUID, a StudentAbsence) error {
	if a.GUID == uuid.Nil {
		a.GUID = uuid.New()
	}
	m.absences[a.GUID] = storedAbsence{StudentAbsence: a, log: logGUID}
	m.absenceOps = append(m.absenceOps, "insert")
	return nil
}

func (m *memRepo) UpdateAbsence(_ context.Context, a StudentAbsence) error {
	stored, ok := m.absences[a.GUID]
	if !ok {
		return fmt.Errorf("%w: absence %s", shared.ErrNotFound, a.GUID)
	}
	stored.TotalAbsences, stored.TotalPresences = a.TotalAbsences, a.TotalPresences
	m.absences[a.GUID] = stored
	m.absenceOps = append(m.absenceOps, "update")
	return nil
}

func (m *memRepo) DeleteAbsences(_ context.Context, guids []uuid.UUID) error {
	for _, g := range guids {
		delete(m.absences, g)
		m.absenceOps = append(m.absenceOps, "delete")
	}
	return nil
}

type recordingAudit struct{ actions []string }

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}
