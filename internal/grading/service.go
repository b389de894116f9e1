package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/period"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// AuditPort records audit entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ConfigInput is a requested grade schema. Items keep their guid when they already exist.
type ConfigInput struct {
	Items []GradeItem
}

// StudentGradeInput is one student's submitted values.
type StudentGradeInput struct {
	GUID        uuid.UUID
	StudentGUID uuid.UUID
	Items       []StudentGradeItem
}

// Service manages grade schemas and student grades.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service. audit and logger may be nil.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock used for audit entries.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// checkScope verifies the period exists, is past draft and teaches the discipline.
func checkScope(ctx context.Context, r Reader, periodGUID, disciplineGUID uuid.UUID) error {
	status, err := r.PeriodStatus(ctx, periodGUID)
	if err != nil {
		return err
	}
	if status == period.StatusDraft {
		return fmt.Errorf("%w: a draft period has no grades", shared.ErrInvalidData)
	}
	ok, err := r.HasDiscipline(ctx, periodGUID, disciplineGUID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: discipline %s in period %s", shared.ErrNotFound, disciplineGUID, periodGUID)
	}
	return nil
}

func loadConfig(ctx context.Context, r Reader, periodGUID, disciplineGUID uuid.UUID) (Config, error) {
	cfg, err := r.Config(ctx, periodGUID, disciplineGUID)
	if errors.Is(err, shared.ErrNotFound) {
		return DefaultConfig(periodGUID, disciplineGUID), nil
	}
	return cfg, err
}

// GetDisciplineGradeConfig returns the stored schema or the default one.
func (s *Service) GetDisciplineGradeConfig(ctx context.Context, periodGUID, disciplineGUID uuid.UUID) (Config, error) {
	if err := checkScope(ctx, s.repo, periodGUID, disciplineGUID); err != nil {
		return Config{}, err
	}
	return loadConfig(ctx, s.repo, periodGUID, disciplineGUID)
}

// UpdateDisciplineGradeConfig replaces the schema of a discipline. A request equal to the
// default schema stores nothing and drops any stored override.
func (s *Service) UpdateDisciplineGradeConfig(ctx context.Context, periodGUID, disciplineGUID uuid.UUID, input ConfigInput) (Config, error) {
	if err := ValidateItems(input.Items); err != nil {
		return Config{}, err
	}
	var (
		out  Config
		meta = map[string]any{"discipline_guid": disciplineGUID.String()}
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := checkScope(ctx, tx, periodGUID, disciplineGUID); err != nil {
			return err
		}
		stored, err := tx.Config(ctx, periodGUID, disciplineGUID)
		found := err == nil
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if IsDefault(input.Items) {
			out = DefaultConfig(periodGUID, disciplineGUID)
			if !found {
				return nil
			}
			meta["reset"] = true
			if err := tx.DeleteConfig(ctx, stored.GUID); err != nil {
				return err
			}
			return regrade(ctx, tx, out, meta)
		}
		if !found {
			stored, err = tx.InsertConfig(ctx, Config{PeriodGUID: periodGUID, DisciplineGUID: disciplineGUID})
			if err != nil {
				return err
			}
		}
		items, d, err := applyItems(ctx, tx, stored, input.Items)
		if err != nil {
			return err
		}
		meta["created"], meta["updated"], meta["deleted"] = d.created, d.updated, d.deleted
		stored.Items = items
		stored.Default = false
		out = stored
		return regrade(ctx, tx, out, meta)
	})
	if err != nil {
		return Config{}, err
	}
	if len(meta) > 1 {
		s.record(ctx, "grading.config", periodGUID, meta)
	}
	return out, nil
}

type itemCounts struct {
	created, updated, deleted int
}

// applyItems diffs requested items against the stored ones by guid.
func applyItems(ctx context.Context, tx TxRepository, stored Config, requested []GradeItem) ([]GradeItem, itemCounts, error) {
	var counts itemCounts
	existing := make(map[uuid.UUID]GradeItem, len(stored.Items))
	for _, it := range stored.Items {
		existing[it.GUID] = it
	}
	kept := make(map[uuid.UUID]struct{}, len(requested))
	for _, it := range requested {
		if it.GUID == uuid.Nil {
			continue
		}
		if _, ok := existing[it.GUID]; !ok {
			return nil, counts, fmt.Errorf("%w: grade item %s", shared.ErrNotFound, it.GUID)
		}
		kept[it.GUID] = struct{}{}
	}
	var removed []uuid.UUID
	for _, it := range stored.Items {
		if _, ok := kept[it.GUID]; !ok {
			removed = append(removed, it.GUID)
		}
	}
	if err := tx.DeleteItems(ctx, removed); err != nil {
		return nil, counts, err
	}
	counts.deleted = len(removed)
	out := make([]GradeItem, 0, len(requested))
	for pos, it := range requested {
		if it.GUID == uuid.Nil {
			saved, err := tx.InsertItem(ctx, stored.GUID, pos, it)
			if err != nil {
				return nil, counts, err
			}
			out = append(out, saved)
			counts.created++
			continue
		}
		if prev := existing[it.GUID]; prev != it || positionOf(stored.Items, it.GUID) != pos {
			if err := tx.UpdateItem(ctx, pos, it); err != nil {
				return nil, counts, err
			}
			counts.updated++
		}
		out = append(out, it)
	}
	return out, counts, nil
}

// regrade brings stored student grades in line with cfg: values of items no longer in the
// schema are dropped and every final is recomputed. A grade the schema no longer accepts
// keeps its values without a final until it is submitted again.
func regrade(ctx context.Context, tx TxRepository, cfg Config, meta map[string]any) error {
	roster, err := tx.Roster(ctx, cfg.PeriodGUID, cfg.DisciplineGUID)
	if err != nil {
		return err
	}
	configured := make(map[uuid.UUID]struct{}, len(cfg.Items))
	for _, it := range cfg.Items {
		configured[it.GUID] = struct{}{}
	}
	regraded := 0
	for _, g := range roster {
		if g.GUID == uuid.Nil {
			continue
		}
		var (
			values   []StudentGradeItem
			orphaned []uuid.UUID
		)
		for _, it := range g.Items {
			if _, ok := configured[it.GradeItemGUID]; ok {
				values = append(values, it)
			} else {
				orphaned = append(orphaned, it.GUID)
			}
		}
		if err := tx.DeleteStudentItems(ctx, orphaned); err != nil {
			return err
		}
		var final *float64
		if v, err := FinalValue(cfg.Items, values); err == nil {
			final = &v
		}
		if len(orphaned) == 0 && sameFinal(g.FinalValue, final) {
			continue
		}
		g.FinalValue = final
		if _, err := tx.SaveStudentGrade(ctx, g); err != nil {
			return err
		}
		regraded++
	}
	if regraded > 0 {
		meta["regraded"] = regraded
	}
	return nil
}

func sameFinal(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func positionOf(items []GradeItem, guid uuid.UUID) int {
	for i, it := range items {
		if it.GUID == guid {
			return i
		}
	}
	return -1
}

// GetStudentsGrades returns every enrolled student with their grade, ordered by name.
func (s *Service) GetStudentsGrades(ctx context.Context, periodGUID, disciplineGUID uuid.UUID) ([]StudentGrade, error) {
	if err := checkScope(ctx, s.repo, periodGUID, disciplineGUID); err != nil {
		return nil, err
	}
	grades, err := s.repo.Roster(ctx, periodGUID, disciplineGUID)
	if err != nil {
		return nil, err
	}
	if grades == nil {
		grades = []StudentGrade{}
	}
	shared.SortByName(grades, func(g StudentGrade) string { return g.StudentName })
	return grades, nil
}

// UpdateStudentsGrades recomputes and stores the final value of each submitted student.
func (s *Service) UpdateStudentsGrades(ctx context.Context, periodGUID, disciplineGUID uuid.UUID, inputs []StudentGradeInput) ([]StudentGrade, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one student grade is required", shared.ErrInvalidData)
	}
	seen := make(map[uuid.UUID]struct{}, len(inputs))
	for _, in := range inputs {
		if _, dup := seen[in.StudentGUID]; dup {
			return nil, fmt.Errorf("%w: student %s graded twice", shared.ErrInvalidData, in.StudentGUID)
		}
		seen[in.StudentGUID] = struct{}{}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := checkScope(ctx, tx, periodGUID, disciplineGUID); err != nil {
			return err
		}
		cfg, err := loadConfig(ctx, tx, periodGUID, disciplineGUID)
		if err != nil {
			return err
		}
		roster, err := tx.Roster(ctx, periodGUID, disciplineGUID)
		if err != nil {
			return err
		}
		current := make(map[uuid.UUID]StudentGrade, len(roster))
		for _, g := range roster {
			current[g.StudentGUID] = g
		}
		for _, in := range inputs {
			prev, enrolled := current[in.StudentGUID]
			if !enrolled {
				return fmt.Errorf("%w: student %s is not enrolled in period %s", shared.ErrNotFound, in.StudentGUID, periodGUID)
			}
			if in.GUID != uuid.Nil && in.GUID != prev.GUID {
				return fmt.Errorf("%w: student grade %s", shared.ErrNotFound, in.GUID)
			}
			final, err := FinalValue(cfg.Items, in.Items)
			if err != nil {
				return fmt.Errorf("student %s: %w", in.StudentGUID, err)
			}
			saved, err := tx.SaveStudentGrade(ctx, StudentGrade{
				GUID:           prev.GUID,
				PeriodGUID:     periodGUID,
				DisciplineGUID: disciplineGUID,
				StudentGUID:    in.StudentGUID,
				FinalValue:     &final,
			})
			if err != nil {
				return err
			}
			if err := applyStudentItems(ctx, tx, saved.GUID, prev.Items, in.Items); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, "grading.grades", periodGUID, map[string]any{
		"discipline_guid": disciplineGUID.String(),
		"students":        len(inputs),
	})
	return s.GetStudentsGrades(ctx, periodGUID, disciplineGUID)
}

// applyStudentItems diffs submitted values against stored ones. Values submitted without a
// guid reuse the stored row of the same grade item.
func applyStudentItems(ctx context.Context, tx TxRepository, gradeGUID uuid.UUID, stored, submitted []StudentGradeItem) error {
	byGUID := make(map[uuid.UUID]StudentGradeItem, len(stored))
	byItem := make(map[uuid.UUID]uuid.UUID, len(stored))
	for _, it := range stored {
		byGUID[it.GUID] = it
		byItem[it.GradeItemGUID] = it.GUID
	}
	kept := make(map[uuid.UUID]struct{}, len(submitted))
	var create, update []StudentGradeItem
	for _, it := range submitted {
		if it.GUID == uuid.Nil {
			it.GUID = byItem[it.GradeItemGUID]
		}
		if it.GUID == uuid.Nil {
			create = append(create, it)
			continue
		}
		prev, ok := byGUID[it.GUID]
		if !ok {
			return fmt.Errorf("%w: student grade item %s", shared.ErrNotFound, it.GUID)
		}
		kept[it.GUID] = struct{}{}
		if prev != it {
			update = append(update, it)
		}
	}
	var removed []uuid.UUID
	for _, it := range stored {
		if _, ok := kept[it.GUID]; !ok {
			removed = append(removed, it.GUID)
		}
	}
	if err := tx.DeleteStudentItems(ctx, removed); err != nil {
		return err
	}
	for _, it := range update {
		if err := tx.UpdateStudentItem(ctx, it); err != nil {
			return err
		}
	}
	for _, it := range create {
		if err := tx.InsertStudentItem(ctx, gradeGUID, it); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, action string, periodGUID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "period",
		EntityID: periodGUID.String(),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
