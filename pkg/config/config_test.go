package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBreaksSharedAcrossSemesters(t *testing.T) {
	breaks, err := parseBreaks("2,5", 3)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{2, 5}, {2, 5}, {2, 5}}, breaks)
}

func TestParseBreaksPerSemester(t *testing.T) {
	breaks, err := parseBreaks("2,5;1;", 3)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{2, 5}, {1}, {}}, breaks)
}

func TestParseBreaksInvalid(t *testing.T) {
	_, err := parseBreaks("2,x", 2)
	assert.Error(t, err)
}

func TestExpandSections(t *testing.T) {
	assert.Equal(t, []int{2, 2, 2}, expandSections([]int{2}, 3))
	assert.Equal(t, []int{1, 3}, expandSections([]int{1, 3}, 2))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "development")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "default", cfg.Timetable.DefaultInstitutionID)
	assert.Equal(t, 8, cfg.Timetable.SemesterCount)
	assert.Len(t, cfg.Timetable.SectionsPerSemester, 8)
	assert.Len(t, cfg.Timetable.BreaksPerSemester, 8)
	assert.Equal(t, []int{2, 5}, cfg.Timetable.BreaksPerSemester[0])
	assert.Equal(t, 5, cfg.Timetable.DayCount)
	assert.Equal(t, 8, cfg.Timetable.PeriodCount)
	assert.Equal(t, time.Hour, cfg.Database.ConnLifetime)
	assert.Equal(t, 3*time.Second, cfg.Redis.DialTimeout)
}
