package period

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-academic/internal/catalog"
	"github.com/odyssey-erp/odyssey-academic/internal/schedule"
	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// EducatorClass is one weekly class an educator teaches.
type EducatorClass struct {
	GUID        uuid.UUID      `json:"guid"`
	PeriodGUID  uuid.UUID      `json:"periodGuid"`
	Course      string         `json:"course"`
	Classroom   string         `json:"classroom"`
	Discipline  string         `json:"discipline"`
	ClassNumber int            `json:"classNumber"`
	StartTime   schedule.Clock `json:"startTime"`
	EndTime     schedule.Clock `json:"endTime"`
}

// EducatorDay groups the classes of one weekday.
type EducatorDay struct {
	DayOfWeek schedule.DayOfWeek `json:"dayOfWeek"`
	DayLabel  string             `json:"dayLabel"`
	Classes   []EducatorClass    `json:"schedules"`
}

// EducatorShift groups the days an educator teaches in one shift.
type EducatorShift struct {
	ShiftGUID uuid.UUID     `json:"shiftGuid"`
	Shift     string        `json:"shift"`
	Days      []EducatorDay `json:"days"`
}

// EducatorSchedule is the weekly timetable of an educator across live periods.
type EducatorSchedule struct {
	EmployeeGUID uuid.UUID       `json:"employeeGuid"`
	Educator     string          `json:"educator"`
	Shifts       []EducatorShift `json:"shifts"`
}

type periodLabels struct {
	module    uuid.UUID
	course    string
	classroom *uuid.UUID
}

// EducatorSchedules returns the classes an educator holds in scheduled or running periods,
// grouped by shift then weekday, earliest class first.
func (s *Service) EducatorSchedules(ctx context.Context, employeeGUID uuid.UUID) (EducatorSchedule, error) {
	employee, err := s.repo.Employee(ctx, employeeGUID)
	if err != nil {
		return EducatorSchedule{}, err
	}
	if !employee.HasRole(catalog.RoleEducator) {
		return EducatorSchedule{}, fmt.Errorf("%w: educator %s", shared.ErrNotFound, employeeGUID)
	}
	bookings, err := s.repo.EmployeeBookings(ctx, employeeGUID)
	if err != nil {
		return EducatorSchedule{}, err
	}

	periods := map[uuid.UUID]periodLabels{}
	var disciplineGUIDs, shiftGUIDs, roomGUIDs []uuid.UUID
	for _, ds := range bookings {
		disciplineGUIDs = append(disciplineGUIDs, ds.DisciplineGUID)
		for _, slot := range ds.Schedules {
			shiftGUIDs = append(shiftGUIDs, slot.ShiftGUID)
		}
		if _, ok := periods[ds.PeriodGUID]; ok {
			continue
		}
		p, err := s.repo.Get(ctx, ds.PeriodGUID)
		if err != nil {
			return EducatorSchedule{}, err
		}
		periods[ds.PeriodGUID] = periodLabels{module: p.MatrixModuleGUID, classroom: p.ClassroomGUID}
		if p.ClassroomGUID != nil {
			roomGUIDs = append(roomGUIDs, *p.ClassroomGUID)
		}
	}

	var (
		mu                         sync.Mutex
		disciplines, shifts, rooms map[uuid.UUID]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		disciplines, err = s.repo.Names(gctx, "disciplines", disciplineGUIDs)
		return err
	})
	g.Go(func() (err error) {
		shifts, err = s.repo.Names(gctx, "shifts", shiftGUIDs)
		return err
	})
	g.Go(func() (err error) {
		rooms, err = s.repo.Names(gctx, "classrooms", roomGUIDs)
		return err
	})
	modules := map[uuid.UUID]struct{}{}
	for _, labels := range periods {
		modules[labels.module] = struct{}{}
	}
	courses := make(map[uuid.UUID]string, len(modules))
	for guid := range modules {
		guid := guid
		g.Go(func() error {
			module, err := s.repo.MatrixModule(gctx, guid)
			if err != nil {
				return err
			}
			mu.Lock()
			courses[guid] = module.CourseName
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return EducatorSchedule{}, err
	}
	for guid, labels := range periods {
		labels.course = courses[labels.module]
		periods[guid] = labels
	}

	return EducatorSchedule{
		EmployeeGUID: employee.GUID,
		Educator:     employee.Name,
		Shifts:       groupEducatorClasses(bookings, periods, disciplines, shifts, rooms),
	}, nil
}

func groupEducatorClasses(bookings []schedule.DisciplineSchedule, periods map[uuid.UUID]periodLabels,
	disciplines, shifts, rooms map[uuid.UUID]string) []EducatorShift {
	byShift := map[uuid.UUID]map[schedule.DayOfWeek][]EducatorClass{}
	earliest := map[uuid.UUID]schedule.Clock{}
	for _, ds := range bookings {
		labels := periods[ds.PeriodGUID]
		var room string
		if labels.classroom != nil {
			room = rooms[*labels.classroom]
		}
		for _, slot := range ds.Schedules {
			days, ok := byShift[slot.ShiftGUID]
			if !ok {
				days = map[schedule.DayOfWeek][]EducatorClass{}
				byShift[slot.ShiftGUID] = days
				earliest[slot.ShiftGUID] = slot.StartTime
			}
			if slot.StartTime < earliest[slot.ShiftGUID] {
				earliest[slot.ShiftGUID] = slot.StartTime
			}
			days[slot.DayOfWeek] = append(days[slot.DayOfWeek], EducatorClass{
				GUID:        slot.GUID,
				PeriodGUID:  ds.PeriodGUID,
				Course:      labels.course,
				Classroom:   room,
				Discipline:  disciplines[ds.DisciplineGUID],
				ClassNumber: slot.ClassNumber,
				StartTime:   slot.StartTime,
				EndTime:     slot.EndTime,
			})
		}
	}

	out := make([]EducatorShift, 0, len(byShift))
	for shiftGUID, days := range byShift {
		es := EducatorShift{ShiftGUID: shiftGUID, Shift: shifts[shiftGUID], Days: []EducatorDay{}}
		for _, day := range schedule.AllDays {
			classes := days[day]
			if len(classes) == 0 {
				continue
			}
			sort.Slice(classes, func(i, j int) bool {
				if classes[i].StartTime != classes[j].StartTime {
					return classes[i].StartTime < classes[j].StartTime
				}
				return classes[i].Course < classes[j].Course
			})
			es.Days = append(es.Days, EducatorDay{DayOfWeek: day, DayLabel: day.Label(false), Classes: classes})
		}
		out = append(out, es)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := earliest[out[i].ShiftGUID], earliest[out[j].ShiftGUID]
		if a != b {
			return a < b
		}
		return out[i].Shift < out[j].Shift
	})
	return out
}
