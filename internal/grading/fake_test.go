package grading

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/period"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

type scopeKey struct{ period, discipline uuid.UUID }

type storedItem struct {
	GradeItem
	position int
}

type storedGrade struct {
	StudentGrade
	items []StudentGradeItem
}

type memRepo struct {
	statuses    map[uuid.UUID]period.Status
	disciplines map[scopeKey]bool
	students    map[uuid.UUID]map[uuid.UUID]string // period -> student -> name
	configs     map[scopeKey]uuid.UUID
	items       map[uuid.UUID]map[uuid.UUID]storedItem // config -> item
	grades      map[uuid.UUID]*storedGrade
	writes      int
	failSave    error
}

func newMemRepo() *memRepo {
	return &memRepo{
		statuses:    map[uuid.UUID]period.Status{},
		disciplines: map[scopeKey]bool{},
		students:    map[uuid.UUID]map[uuid.UUID]string{},
		configs:     map[scopeKey]uuid.UUID{},
		items:       map[uuid.UUID]map[uuid.UUID]storedItem{},
		grades:      map[uuid.UUID]*storedGrade{},
	}
}

func (m *memRepo) snapshot() func() {
	configs := make(map[scopeKey]uuid.UUID, len(m.configs))
	for k, v := range m.configs {
		configs[k] = v
	}
	items := make(map[uuid.UUID]map[uuid.UUID]storedItem, len(m.items))
	for k, v := range m.items {
		inner := make(map[uuid.UUID]storedItem, len(v))
		for ik, iv := range v {
			inner[ik] = iv
		}
		items[k] = inner
	}
	grades := make(map[uuid.UUID]*storedGrade, len(m.grades))
	for k, v := range m.grades {
		cp := *v
		cp.items = append([]StudentGradeItem(nil), v.items...)
		grades[k] = &cp
	}
	return func() { m.configs, m.items, m.grades = configs, items, grades }
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	restore := m.snapshot()
	if err := fn(ctx, m); err != nil {
		restore()
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

func (m *memRepo) Config(_ context.Context, p, d uuid.UUID) (Config, error) {
	guid, ok := m.configs[scopeKey{p, d}]
	if !ok {
		return Config{}, shared.ErrNotFound
	}
	stored := make([]storedItem, 0, len(m.items[guid]))
	for _, it := range m.items[guid] {
		stored = append(stored, it)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].position < stored[j].position })
	cfg := Config{GUID: guid, PeriodGUID: p, DisciplineGUID: d, Items: make([]GradeItem, len(stored))}
	for i, it := range stored {
		cfg.Items[i] = it.GradeItem
	}
	return cfg, nil
}

func (m *memRepo) Roster(_ context.Context, p, d uuid.UUID) ([]StudentGrade, error) {
	var out []StudentGrade
	for student, name := range m.students[p] {
		g := StudentGrade{PeriodGUID: p, DisciplineGUID: d, StudentGUID: student, StudentName: name, Items: []StudentGradeItem{}}
		for _, sg := range m.grades {
			if sg.PeriodGUID == p && sg.DisciplineGUID == d && sg.StudentGUID == student {
				g.GUID = sg.GUID
				g.FinalValue = sg.FinalValue
				g.Items = append(g.Items, sg.items...)
			}
		}
		out = append(out, g)
	}
	return out, nil
}

func (m *memRepo) InsertConfig(_ context.Context, cfg Config) (Config, error) {
	m.writes++
	cfg.GUID = uuid.New()
	m.configs[scopeKey{cfg.PeriodGUID, cfg.DisciplineGUID}] = cfg.GUID
	m.items[cfg.GUID] = map[uuid.UUID]storedItem{}
	return cfg, nil
}

func (m *memRepo) DeleteConfig(_ context.Context, guid uuid.UUID) error {
	m.writes++
	for k, v := range m.configs {
		if v == guid {
			delete(m.configs, k)
		}
	}
	delete(m.items, guid)
	return nil
}

func (m *memRepo) InsertItem(_ context.Context, cfg uuid.UUID, pos int, item GradeItem) (GradeItem, error) {
	m.writes++
	item.GUID = uuid.New()
	m.items[cfg][item.GUID] = storedItem{GradeItem: item, position: pos}
	return item, nil
}

func (m *memRepo) UpdateItem(_ context.Context, pos int, item GradeItem) error {
	m.writes++
	for _, items := range m.items {
		if _, ok := items[item.GUID]; ok {
			items[item.GUID] = storedItem{GradeItem: item, position: pos}
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memRepo) DeleteItems(_ context.Context, guids []uuid.UUID) error {
	for _, guid := range guids {
		m.writes++
		for _, items := range m.items {
			delete(items, guid)
		}
	}
	return nil
}

func (m *memRepo) SaveStudentGrade(_ context.Context, g StudentGrade) (StudentGrade, error) {
	if m.failSave != nil {
		return StudentGrade{}, m.failSave
	}
	m.writes++
	for _, sg := range m.grades {
		if sg.PeriodGUID == g.PeriodGUID && sg.DisciplineGUID == g.DisciplineGUID && sg.StudentGUID == g.StudentGUID {
			sg.FinalValue = g.FinalValue
			return sg.StudentGrade, nil
		}
	}
	g.GUID = uuid.New()
	m.grades[g.GUID] = &storedGrade{StudentGrade: g}
	return g, nil
}

func (m *memRepo) InsertStudentItem(_ context.Context, gradeGUID uuid.UUID, item StudentGradeItem) error {
	m.writes++
	item.GUID = uuid.New()
	sg := m.grades[gradeGUID]
	sg.items = append(sg.items, item)
	return nil
}

func (m *memRepo) UpdateStudentItem(_ context.Context, item StudentGradeItem) error {
	m.writes++
	for _, sg := range m.grades {
		for i := range sg.items {
			if sg.items[i].GUID == item.GUID {
				sg.items[i] = item
				return nil
			}
		}
	}
	return shared.ErrNotFound
}

func (m *memRepo) DeleteStudentItems(_ context.Context, guids []uuid.UUID) error {
	drop := make(map[uuid.UUID]bool, len(guids))
	for _, g := range guids {
		drop[g] = true
	}
	for _, sg := range m.grades {
		kept := sg.items[:0]
		for _, it := range sg.items {
			if drop[it.GUID] {
				m.writes++
				continue
			}
			kept = append(kept, it)
		}
		sg.items = kept
	}
	return nil
}

type recordingAudit struct{ actions []string }

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}
