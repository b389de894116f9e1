package attendance

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

func TestLogValidate(t *testing.T) {
	student := uuid.New()
	valid := Log{ClassDate: day(4), TotalClasses: 2, Absences: []StudentAbsence{{StudentGUID: student, TotalAbsences: 2}}}
	require.NoError(t, valid.Validate())

	cases := map[string]func(l *Log){
		"no date":       func(l *Log) { l.ClassDate = time.Time{} },
		"no classes":    func(l *Log) { l.TotalClasses = 0 },
		"too many":      func(l *Log) { l.TotalClasses = 7 },
		"long summary":  func(l *Log) { l.ClassSummary = strings.Repeat("a", maxClassSummary+1) },
		"negative":      func(l *Log) { l.Absences[0].TotalAbsences = -1 },
		"over total":    func(l *Log) { l.Absences[0].TotalAbsences = 3 },
		"student twice": func(l *Log) { l.Absences = append(l.Absences, StudentAbsence{StudentGUID: student}) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			l := valid
			l.Absences = append([]StudentAbsence(nil), valid.Absences...)
			mutate(&l)
			assert.ErrorIs(t, l.Validate(), shared.ErrInvalidData)
		})
	}
}

func TestWithPresencesLeavesSourceUntouched(t *testing.T) {
	l := Log{TotalClasses: 3, Absences: []StudentAbsence{{TotalAbsences: 1}}}
	out := l.withPresences()
	assert.Equal(t, 2, out.Absences[0].TotalPresences)
	assert.Zero(t, l.Absences[0].TotalPresences)
}
