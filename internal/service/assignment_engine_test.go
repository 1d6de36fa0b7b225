package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

func quota(v int) *int { return &v }

func mustCatalog(t *testing.T, teachers []models.Teacher, subjects []models.Subject, rooms []models.Room) *models.Catalog {
	t.Helper()
	catalog, err := models.NewCatalog(teachers, subjects, rooms)
	require.NoError(t, err)
	return catalog
}

func schoolStructure() models.Structure {
	return models.Structure{
		SemesterCount:       2,
		SectionsPerSemester: []int{2, 2},
		DayCount:            3,
		PeriodCount:         4,
		BreaksPerSemester:   [][]int{{2}, {1}},
	}
}

func schoolCatalog(t *testing.T) *models.Catalog {
	return mustCatalog(t,
		[]models.Teacher{{ID: "T1", Name: "Ada"}, {ID: "T2", Name: "Grace"}, {ID: "T3", Name: "Alan"}, {ID: "T4", Name: "Edsger"}},
		[]models.Subject{
			{ID: "S1", Name: "Math", WeeklyQuota: quota(3), TeacherID: "T1"},
			{ID: "S2", Name: "Physics", WeeklyQuota: quota(2)},
			{ID: "S3", Name: "History", RoomIDs: []string{"R1"}},
			{ID: "S4", Name: "Art", WeeklyQuota: quota(1), Semesters: []int{1}},
		},
		[]models.Room{{ID: "R1", Name: "Hall"}, {ID: "R2", Name: "Lab"}},
	)
}

func TestGenerateScenarioA(t *testing.T) {
	structure := models.Structure{
		SemesterCount:       1,
		SectionsPerSemester: []int{1},
		DayCount:            1,
		PeriodCount:         3,
		BreaksPerSemester:   [][]int{{1}},
	}
	catalog := mustCatalog(t,
		[]models.Teacher{{ID: "T1", Name: "Teacher One"}},
		[]models.Subject{{ID: "S1", Name: "Subject One", WeeklyQuota: quota(2)}},
		nil,
	)

	result, err := Generate(structure, catalog, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Unresolved)
	assert.Equal(t, 2, result.Placed)

	grid, ok := result.Set.Grid(0, 0)
	require.True(t, ok)
	for _, period := range []int{0, 2} {
		a, assigned := grid.Cell(0, period).Assigned()
		require.True(t, assigned)
		assert.Equal(t, "T1", a.TeacherID)
		assert.Equal(t, "S1", a.SubjectID)
	}
	assert.Equal(t, models.CellBreak, grid.Cell(0, 1).State)
}

func TestGenerateRejectsInvalidStructure(t *testing.T) {
	structure := schoolStructure()
	structure.BreaksPerSemester = [][]int{{2}}
	_, err := Generate(structure, schoolCatalog(t), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConfig)
}

func TestGenerateIsDeterministic(t *testing.T) {
	catalog := schoolCatalog(t)
	first, err := Generate(schoolStructure(), catalog, nil)
	require.NoError(t, err)
	second, err := Generate(schoolStructure(), catalog, nil)
	require.NoError(t, err)

	assert.Equal(t, collectCells(first.Set), collectCells(second.Set))
	assert.Equal(t, first.Unresolved, second.Unresolved)
}

func TestGenerateHonoursInvariants(t *testing.T) {
	structure := schoolStructure()
	catalog := schoolCatalog(t)
	result, err := Generate(structure, catalog, nil)
	require.NoError(t, err)
	assertInvariants(t, structure, catalog, result.Set)

	// every non-break cell is either assigned or reported
	empty := 0
	for _, grid := range result.Set.Grids() {
		for day := 0; day < grid.Days(); day++ {
			for period := 0; period < grid.Periods(); period++ {
				if grid.Cell(day, period).State == models.CellEmpty {
					empty++
				}
			}
		}
	}
	assert.Equal(t, empty, len(result.Unresolved))
}

func TestGenerateKeepsPartialCells(t *testing.T) {
	structure := schoolStructure()
	catalog := schoolCatalog(t)
	partial := models.NewTimetableSet(structure)
	manual := models.CellRef{Semester: 1, Section: 1, Day: 2, Period: 3}
	require.NoError(t, partial.Place(manual, models.Assignment{TeacherID: "T4", SubjectID: "S2", RoomID: "R2"}))

	result, err := Generate(structure, catalog, partial)
	require.NoError(t, err)

	a, ok := result.Set.Cell(manual).Assigned()
	require.True(t, ok)
	assert.Equal(t, models.Assignment{TeacherID: "T4", SubjectID: "S2", RoomID: "R2"}, a)
	assertInvariants(t, structure, catalog, result.Set)

	// input set untouched
	assert.Len(t, collectCells(partial), 1)
}

func TestGenerateRejectsConflictingPartial(t *testing.T) {
	structure := schoolStructure()
	catalog := schoolCatalog(t)
	partial := models.NewTimetableSet(structure)
	require.NoError(t, partial.Place(models.CellRef{Semester: 0, Section: 0, Day: 0, Period: 0}, models.Assignment{TeacherID: "T1", SubjectID: "S1"}))
	require.NoError(t, partial.Place(models.CellRef{Semester: 1, Section: 0, Day: 0, Period: 0}, models.Assignment{TeacherID: "T1", SubjectID: "S2"}))

	_, err := Generate(structure, catalog, partial)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, ReasonTeacherBooked, appErrors.Reason(err))
}

func TestGenerateRejectsUnknownPartialReference(t *testing.T) {
	structure := schoolStructure()
	partial := models.NewTimetableSet(structure)
	require.NoError(t, partial.Place(models.CellRef{}, models.Assignment{TeacherID: "T9", SubjectID: "S1"}))

	_, err := Generate(structure, schoolCatalog(t), partial)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestGenerateReportsUnresolvedCells(t *testing.T) {
	structure := models.Structure{
		SemesterCount:       1,
		SectionsPerSemester: []int{2},
		DayCount:            1,
		PeriodCount:         2,
		BreaksPerSemester:   [][]int{{}},
	}
	catalog := mustCatalog(t,
		[]models.Teacher{{ID: "T1", Name: "Solo"}},
		[]models.Subject{{ID: "S1", Name: "Only"}},
		nil,
	)

	result, err := Generate(structure, catalog, nil)
	require.NoError(t, err)
	assert.Equal(t, []models.CellRef{
		{Semester: 0, Section: 1, Day: 0, Period: 0},
		{Semester: 0, Section: 1, Day: 0, Period: 1},
	}, result.Unresolved)
}

func TestGenerateRespectsTeacherLimits(t *testing.T) {
	structure := models.Structure{
		SemesterCount:       1,
		SectionsPerSemester: []int{1},
		DayCount:            2,
		PeriodCount:         3,
		BreaksPerSemester:   [][]int{{}},
	}
	catalog := mustCatalog(t,
		[]models.Teacher{{ID: "T1", Name: "Part-time", MaxLoadPerDay: 2, MaxLoadPerWeek: 3, Unavailable: []models.Slot{{Day: 0, Period: 0}}}},
		[]models.Subject{{ID: "S1", Name: "Math"}},
		nil,
	)

	result, err := Generate(structure, catalog, nil)
	require.NoError(t, err)
	cells := collectCells(result.Set)
	assert.Len(t, cells, 3)
	_, blocked := result.Set.Cell(models.CellRef{Day: 0, Period: 0}).Assigned()
	assert.False(t, blocked)
	assert.Len(t, result.Unresolved, 3)
}

func TestGenerateBalancesSubjects(t *testing.T) {
	structure := models.Structure{
		SemesterCount:       1,
		SectionsPerSemester: []int{1},
		DayCount:            1,
		PeriodCount:         4,
		BreaksPerSemester:   [][]int{{}},
	}
	catalog := mustCatalog(t,
		[]models.Teacher{{ID: "T1", Name: "Ada"}},
		[]models.Subject{{ID: "S1", Name: "Math"}, {ID: "S2", Name: "Art"}},
		nil,
	)

	result, err := Generate(structure, catalog, nil)
	require.NoError(t, err)
	grid, _ := result.Set.Grid(0, 0)
	var order []string
	grid.Each(func(day, period int, a models.Assignment) { order = append(order, a.SubjectID) })
	assert.Equal(t, []string{"S1", "S2", "S1", "S2"}, order)
}

func TestIndexAndScanAgree(t *testing.T) {
	structure := schoolStructure()
	catalog := schoolCatalog(t)
	checker := NewConflictChecker(catalog)
	rng := rand.New(rand.NewSource(7))

	result, err := Generate(structure, catalog, nil)
	require.NoError(t, err)
	set := result.Set
	idx := BuildOccupancyIndex(set)

	teachers := catalog.Teachers()
	subjects := catalog.Subjects()
	rooms := append([]models.Room{{ID: ""}}, catalog.Rooms()...)
	for i := 0; i < 500; i++ {
		ref := models.CellRef{
			Semester: rng.Intn(2),
			Section:  rng.Intn(2),
			Day:      rng.Intn(structure.DayCount),
			Period:   rng.Intn(structure.PeriodCount),
		}
		a := models.Assignment{
			TeacherID: teachers[rng.Intn(len(teachers))].ID,
			SubjectID: subjects[rng.Intn(len(subjects))].ID,
			RoomID:    rooms[rng.Intn(len(rooms))].ID,
		}
		okIdx, reasonIdx := checker.CanPlace(set, idx, ref, a)
		okScan, reasonScan := checker.CanPlace(set, nil, ref, a)
		require.Equal(t, okScan, okIdx, "%s %+v", ref, a)
		require.Equal(t, reasonScan, reasonIdx, "%s %+v", ref, a)

		if okIdx && rng.Intn(2) == 0 {
			if current, occupied := set.Cell(ref).Assigned(); occupied {
				idx.release(ref, current)
			}
			require.NoError(t, set.Place(ref, a))
			idx.reserve(ref, a)
		}
	}
	assertInvariants(t, structure, catalog, set)
}

func collectCells(set *models.TimetableSet) map[models.CellRef]models.Assignment {
	cells := make(map[models.CellRef]models.Assignment)
	set.Each(func(ref models.CellRef, a models.Assignment) { cells[ref] = a })
	return cells
}

func assertInvariants(t *testing.T, structure models.Structure, catalog *models.Catalog, set *models.TimetableSet) {
	t.Helper()
	type slot struct{ day, period int }
	teachersAt := make(map[slot]map[string]models.CellRef)
	roomsAt := make(map[slot]map[string]models.CellRef)
	quotaUse := make(map[models.GridKey]map[string]int)

	set.Each(func(ref models.CellRef, a models.Assignment) {
		require.False(t, structure.IsBreak(ref.Semester, ref.Period), "assignment on break %s", ref)
		s := slot{ref.Day, ref.Period}
		if teachersAt[s] == nil {
			teachersAt[s] = map[string]models.CellRef{}
			roomsAt[s] = map[string]models.CellRef{}
		}
		if other, dup := teachersAt[s][a.TeacherID]; dup {
			t.Fatalf("teacher %s double-booked at %s and %s", a.TeacherID, other, ref)
		}
		teachersAt[s][a.TeacherID] = ref
		if a.RoomID != "" {
			if other, dup := roomsAt[s][a.RoomID]; dup {
				t.Fatalf("room %s double-booked at %s and %s", a.RoomID, other, ref)
			}
			roomsAt[s][a.RoomID] = ref
		}
		if quotaUse[ref.Grid()] == nil {
			quotaUse[ref.Grid()] = map[string]int{}
		}
		quotaUse[ref.Grid()][a.SubjectID]++
		subject, _ := catalog.Subject(a.SubjectID)
		require.True(t, subject.OfferedIn(ref.Semester))
	})
	for grid, counts := range quotaUse {
		for subjectID, count := range counts {
			subject, _ := catalog.Subject(subjectID)
			if subject.WeeklyQuota != nil {
				assert.LessOrEqual(t, count, *subject.WeeklyQuota, "grid %+v subject %s", grid, subjectID)
			}
		}
	}
}
