package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

func validStructure() Structure {
	return Structure{
		SemesterCount:       2,
		SectionsPerSemester: []int{1, 2},
		DayCount:            2,
		PeriodCount:         3,
		BreaksPerSemester:   [][]int{{1}, {}},
	}
}

func TestStructureValidate(t *testing.T) {
	require.NoError(t, validStructure().Validate())

	cases := map[string]func(s *Structure){
		"zero semesters":      func(s *Structure) { s.SemesterCount = 0 },
		"sections mismatch":   func(s *Structure) { s.SectionsPerSemester = []int{1} },
		"breaks mismatch":     func(s *Structure) { s.BreaksPerSemester = [][]int{{1}} },
		"break out of range":  func(s *Structure) { s.BreaksPerSemester[1] = []int{3} },
		"negative break":      func(s *Structure) { s.BreaksPerSemester[0] = []int{-1} },
		"empty semester":      func(s *Structure) { s.SectionsPerSemester[0] = 0 },
		"zero periods":        func(s *Structure) { s.PeriodCount = 0 },
		"zero days":           func(s *Structure) { s.DayCount = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := validStructure()
			mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrConfig)
		})
	}
}

func TestStructureCheckRef(t *testing.T) {
	s := validStructure()
	assert.NoError(t, s.CheckRef(CellRef{Semester: 1, Section: 1, Day: 1, Period: 2}))

	for _, ref := range []CellRef{
		{Semester: 2},
		{Semester: 0, Section: 1},
		{Day: 2},
		{Period: 3},
		{Period: -1},
	} {
		err := s.CheckRef(ref)
		require.Error(t, err, ref.String())
		assert.ErrorIs(t, err, appErrors.ErrValidation)
	}
}

func TestStructureEqual(t *testing.T) {
	a, b := validStructure(), validStructure()
	assert.True(t, a.Equal(b))
	b.BreaksPerSemester[1] = []int{0}
	assert.False(t, a.Equal(b))
}
