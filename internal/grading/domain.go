// Package grading holds the per-discipline grade schema of a period and computes final grades.
package grading

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// ItemType selects how a grade item contributes to the final value.
type ItemType string

const (
	ItemSum     ItemType = "sum"
	ItemAverage ItemType = "average"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	return t == ItemSum || t == ItemAverage
}

const (
	// MaxFinalValue caps computed final grades.
	MaxFinalValue = 10.0
	maxItemValue  = 100.0
	maxItemName   = 100
)

// DefaultItemGUID identifies the built-in item of the default configuration.
var DefaultItemGUID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("grade-item:default"))

// GradeItem is one graded component of a discipline.
type GradeItem struct {
	GUID     uuid.UUID `json:"guid"`
	Name     string    `json:"name"`
	Type     ItemType  `json:"type"`
	MaxValue float64   `json:"maxValue"`
}

// Config is the ordered grade schema of a discipline within a period.
type Config struct {
	GUID           uuid.UUID   `json:"guid"`
	PeriodGUID     uuid.UUID   `json:"periodGuid"`
	DisciplineGUID uuid.UUID   `json:"disciplineGuid"`
	Items          []GradeItem `json:"gradeItems"`
	Default        bool        `json:"default"`
}

// DefaultConfig is used until a discipline's schema is overridden: a single average item worth 10.
func DefaultConfig(periodGUID, disciplineGUID uuid.UUID) Config {
	return Config{
		PeriodGUID:     periodGUID,
		DisciplineGUID: disciplineGUID,
		Items:          []GradeItem{{GUID: DefaultItemGUID, Name: "Média", Type: ItemAverage, MaxValue: MaxFinalValue}},
		Default:        true,
	}
}

// IsDefault reports whether items describe the default schema, ignoring identifiers.
func IsDefault(items []GradeItem) bool {
	if len(items) != 1 {
		return false
	}
	def := DefaultConfig(uuid.Nil, uuid.Nil).Items[0]
	it := items[0]
	return it.Type == def.Type && it.MaxValue == def.MaxValue &&
		strings.EqualFold(strings.TrimSpace(it.Name), def.Name)
}

// ValidateItems checks a requested schema.
func ValidateItems(items []GradeItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one grade item is required", shared.ErrInvalidData)
	}
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" || len(name) > maxItemName {
			return fmt.Errorf("%w: grade item name must have between 1 and %d characters", shared.ErrInvalidData, maxItemName)
		}
		if !it.Type.Valid() {
			return fmt.Errorf("%w: grade item type must be %s or %s", shared.ErrInvalidData, ItemSum, ItemAverage)
		}
		if it.MaxValue <= 0 || it.MaxValue > maxItemValue {
			return fmt.Errorf("%w: grade item max value must be in (0, %g]", shared.ErrInvalidData, maxItemValue)
		}
		if it.GUID == uuid.Nil {
			continue
		}
		if _, dup := seen[it.GUID]; dup {
			return fmt.Errorf("%w: grade item %s listed twice", shared.ErrConflict, it.GUID)
		}
		seen[it.GUID] = struct{}{}
	}
	return nil
}

// StudentGradeItem is the value a student scored on one grade item.
type StudentGradeItem struct {
	GUID          uuid.UUID `json:"guid"`
	GradeItemGUID uuid.UUID `json:"gradeItemGuid"`
	Value         float64   `json:"value"`
}

// StudentGrade is a student's result in one discipline of a period.
type StudentGrade struct {
	GUID             uuid.UUID          `json:"guid"`
	PeriodGUID       uuid.UUID          `json:"periodGuid"`
	DisciplineGUID   uuid.UUID          `json:"disciplineGuid"`
	StudentGUID      uuid.UUID          `json:"studentGuid"`
	StudentName      string             `json:"name"`
	EnrollmentNumber string             `json:"enrollmentNumber,omitempty"`
	Items            []StudentGradeItem `json:"gradeItems"`
	FinalValue       *float64           `json:"finalValue"`
}

// FinalValue combines item values against the schema: the mean of average items plus the
// total of sum items, rounded to one decimal and capped at MaxFinalValue. Every schema item
// must be graded exactly once and within its bounds.
func FinalValue(schema []GradeItem, values []StudentGradeItem) (float64, error) {
	byGUID := make(map[uuid.UUID]GradeItem, len(schema))
	for _, it := range schema {
		byGUID[it.GUID] = it
	}
	graded := make(map[uuid.UUID]struct{}, len(values))
	var (
		avgTotal float64
		avgCount int
		sum      float64
	)
	for _, v := range values {
		item, ok := byGUID[v.GradeItemGUID]
		if !ok {
			return 0, fmt.Errorf("%w: grade item %s is not configured", shared.ErrInvalidData, v.GradeItemGUID)
		}
		if _, dup := graded[v.GradeItemGUID]; dup {
			return 0, fmt.Errorf("%w: grade item %s graded twice", shared.ErrInvalidData, v.GradeItemGUID)
		}
		graded[v.GradeItemGUID] = struct{}{}
		if math.IsNaN(v.Value) || v.Value < 0 || v.Value > item.MaxValue {
			return 0, fmt.Errorf("%w: %s must be between 0 and %g", shared.ErrInvalidData, item.Name, item.MaxValue)
		}
		switch item.Type {
		case ItemAverage:
			avgTotal += v.Value
			avgCount++
		case ItemSum:
			sum += v.Value
		}
	}
	for _, it := range schema {
		if _, ok := graded[it.GUID]; !ok {
			return 0, fmt.Errorf("%w: grade item %s is missing", shared.ErrInvalidData, it.Name)
		}
	}
	var average float64
	if avgCount > 0 {
		average = avgTotal / float64(avgCount)
	}
	return math.Min(MaxFinalValue, round1(average+sum)), nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
