package models

import (
	"fmt"

	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// Structure describes the timetable shape of one institution.
type Structure struct {
	SemesterCount       int     `json:"semesterCount"`
	SectionsPerSemester []int   `json:"sectionsPerSemester"`
	DayCount            int     `json:"dayCount"`
	PeriodCount         int     `json:"periodCount"`
	BreaksPerSemester   [][]int `json:"breaksPerSemester"`
}

// Validate reports a CONFIG_ERROR when the structure is malformed.
func (s Structure) Validate() error {
	switch {
	case s.SemesterCount < 1:
		return configError("semesterCount must be at least 1")
	case s.DayCount < 1:
		return configError("dayCount must be at least 1")
	case s.PeriodCount < 1:
		return configError("periodCount must be at least 1")
	case len(s.SectionsPerSemester) != s.SemesterCount:
		return configError(fmt.Sprintf("sectionsPerSemester has %d entries, expected %d", len(s.SectionsPerSemester), s.SemesterCount))
	case len(s.BreaksPerSemester) != s.SemesterCount:
		return configError(fmt.Sprintf("breaksPerSemester has %d entries, expected %d", len(s.BreaksPerSemester), s.SemesterCount))
	}
	for sem, sections := range s.SectionsPerSemester {
		if sections < 1 {
			return configError(fmt.Sprintf("semester %d must have at least one section", sem))
		}
	}
	for sem, breaks := range s.BreaksPerSemester {
		for _, period := range breaks {
			if period < 0 || period >= s.PeriodCount {
				return configError(fmt.Sprintf("break period %d of semester %d outside [0, %d)", period, sem, s.PeriodCount))
			}
		}
	}
	return nil
}

func configError(message string) error {
	return appErrors.Clone(appErrors.ErrConfig, message)
}

// SectionCount returns the number of sections in semester, or 0 when out of range.
func (s Structure) SectionCount(semester int) int {
	if semester < 0 || semester >= len(s.SectionsPerSemester) {
		return 0
	}
	return s.SectionsPerSemester[semester]
}

// IsBreak reports whether period is a break for semester.
func (s Structure) IsBreak(semester, period int) bool {
	if semester < 0 || semester >= len(s.BreaksPerSemester) {
		return false
	}
	for _, p := range s.BreaksPerSemester[semester] {
		if p == period {
			return true
		}
	}
	return false
}

// CheckRef returns a VALIDATION_ERROR when ref lies outside the structure.
func (s Structure) CheckRef(ref CellRef) error {
	if err := s.CheckGrid(ref.Semester, ref.Section); err != nil {
		return err
	}
	if ref.Day < 0 || ref.Day >= s.DayCount {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("day %d out of range [0, %d)", ref.Day, s.DayCount))
	}
	if ref.Period < 0 || ref.Period >= s.PeriodCount {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("period %d out of range [0, %d)", ref.Period, s.PeriodCount))
	}
	return nil
}

// CheckGrid returns a VALIDATION_ERROR when (semester, section) lies outside the structure.
func (s Structure) CheckGrid(semester, section int) error {
	if semester < 0 || semester >= s.SemesterCount {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("semester %d out of range [0, %d)", semester, s.SemesterCount))
	}
	if section < 0 || section >= s.SectionCount(semester) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("section %d out of range [0, %d)", section, s.SectionCount(semester)))
	}
	return nil
}

// Equal reports whether both structures describe the same shape.
func (s Structure) Equal(other Structure) bool {
	if s.SemesterCount != other.SemesterCount || s.DayCount != other.DayCount || s.PeriodCount != other.PeriodCount {
		return false
	}
	if len(s.SectionsPerSemester) != len(other.SectionsPerSemester) || len(s.BreaksPerSemester) != len(other.BreaksPerSemester) {
		return false
	}
	for i := range s.SectionsPerSemester {
		if s.SectionsPerSemester[i] != other.SectionsPerSemester[i] {
			return false
		}
	}
	for i := range s.BreaksPerSemester {
		if len(s.BreaksPerSemester[i]) != len(other.BreaksPerSemester[i]) {
			return false
		}
		for j := range s.BreaksPerSemester[i] {
			if s.BreaksPerSemester[i][j] != other.BreaksPerSemester[i][j] {
				return false
			}
		}
	}
	return true
}
