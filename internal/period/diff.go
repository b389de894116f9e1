package period

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/schedule"
)

// scheduleDiff splits a new set of discipline schedules against the stored one.
type scheduleDiff struct {
	create []schedule.DisciplineSchedule
	update []schedule.DisciplineSchedule
	remove []uuid.UUID
}

func (d scheduleDiff) empty() bool {
	return len(d.create) == 0 && len(d.update) == 0 && len(d.remove) == 0
}

// diffSchedules matches proposed against current by guid. Proposed entries without a guid
// are created, matched entries whose assignment changed are updated and unmatched current
// entries are removed.
func diffSchedules(current, proposed []schedule.DisciplineSchedule) scheduleDiff {
	var d scheduleDiff
	stored := make(map[uuid.UUID]schedule.DisciplineSchedule, len(current))
	for _, ds := range current {
		stored[ds.GUID] = ds
	}
	kept := make(map[uuid.UUID]struct{}, len(proposed))
	for _, ds := range proposed {
		if ds.GUID == uuid.Nil {
			d.create = append(d.create, ds)
			continue
		}
		kept[ds.GUID] = struct{}{}
		if prev, ok := stored[ds.GUID]; ok && !prev.SameAssignment(ds) {
			d.update = append(d.update, ds)
		}
	}
	for _, ds := range current {
		if _, ok := kept[ds.GUID]; !ok {
			d.remove = append(d.remove, ds.GUID)
		}
	}
	return d
}

// apply writes the diff, deletions first so a discipline can move to a new assignment.
func (d scheduleDiff) apply(ctx context.Context, tx TxRepository) error {
	if d.empty() {
		return nil
	}
	if err := tx.DeleteDisciplineSchedules(ctx, d.remove); err != nil {
		return err
	}
	for _, ds := range d.update {
		if err := tx.UpdateDisciplineSchedule(ctx, ds); err != nil {
			return err
		}
	}
	for _, ds := range d.create {
		if _, err := tx.InsertDisciplineSchedule(ctx, ds); err != nil {
			return err
		}
	}
	return nil
}
