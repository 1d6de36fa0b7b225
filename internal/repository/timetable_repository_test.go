package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func newTimetableRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func TestStructureRepositoryGet(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewStructureRepository(db)

	rows := sqlmock.NewRows([]string{"semester_count", "sections_per_semester", "day_count", "period_count", "breaks_per_semester"}).
		AddRow(2, "{1,2}", 5, 6, types.JSONText(`[[2],[2,4]]`))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT semester_count, sections_per_semester, day_count, period_count, breaks_per_semester FROM timetable_structures WHERE institution_id = $1")).
		WithArgs("inst-1").
		WillReturnRows(rows)

	structure, err := repo.Get(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, models.Structure{
		SemesterCount:       2,
		SectionsPerSemester: []int{1, 2},
		DayCount:            5,
		PeriodCount:         6,
		BreaksPerSemester:   [][]int{{2}, {2, 4}},
	}, *structure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStructureRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewStructureRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_structures")).
		WithArgs("inst-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "inst-1")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestCatalogRepositoryListTeachers(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "department", "max_load_per_day", "max_load_per_week", "unavailable"}).
		AddRow("T1", "Ada", "CS", 4, 20, types.JSONText(`[{"day":0,"period":1}]`)).
		AddRow("T2", "Grace", nil, 0, 0, types.JSONText(`[]`))
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_teachers WHERE institution_id = $1 ORDER BY sort_order ASC, id ASC")).
		WithArgs("inst-1").
		WillReturnRows(rows)

	teachers, err := repo.ListTeachers(context.Background(), "inst-1")
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, "CS", teachers[0].Department)
	assert.Equal(t, []models.Slot{{Day: 0, Period: 1}}, teachers[0].Unavailable)
	assert.Equal(t, "", teachers[1].Department)
	assert.Empty(t, teachers[1].Unavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryListSubjects(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	rows := sqlmock.NewRows([]string{"id", "code", "name", "weekly_quota", "teacher_id", "semesters", "room_ids"}).
		AddRow("S1", "CS101", "Programming", 3, "T1", "{0,1}", "{R1}").
		AddRow("S2", nil, "Lab", nil, nil, "{}", "{}")
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_subjects WHERE institution_id = $1 ORDER BY sort_order ASC, id ASC")).
		WithArgs("inst-1").
		WillReturnRows(rows)

	subjects, err := repo.ListSubjects(context.Background(), "inst-1")
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	require.NotNil(t, subjects[0].WeeklyQuota)
	assert.Equal(t, 3, *subjects[0].WeeklyQuota)
	assert.Equal(t, []int{0, 1}, subjects[0].Semesters)
	assert.Equal(t, []string{"R1"}, subjects[0].RoomIDs)
	assert.Nil(t, subjects[1].WeeklyQuota)
	assert.Nil(t, subjects[1].Semesters)
	assert.Equal(t, "", subjects[1].TeacherID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryListRooms(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name"}).AddRow("R1", "Lab 1").AddRow("R2", "Hall")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM timetable_rooms")).
		WithArgs("inst-1").
		WillReturnRows(rows)

	rooms, err := repo.ListRooms(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, []models.Room{{ID: "R1", Name: "Lab 1"}, {ID: "R2", Name: "Hall"}}, rooms)
}

func TestTimetableRepositoryListCells(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	rows := sqlmock.NewRows([]string{"institution_id", "semester", "section", "day", "period", "teacher_id", "subject_id", "room_id"}).
		AddRow("inst-1", 0, 0, 1, 3, "T1", "S1", "R1").
		AddRow("inst-1", 0, 1, 0, 0, "T2", "S2", nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_cells WHERE institution_id = $1 ORDER BY semester ASC, section ASC, day ASC, period ASC")).
		WithArgs("inst-1").
		WillReturnRows(rows)

	cells, err := repo.ListCells(context.Background(), "inst-1")
	require.NoError(t, err)
	require.Len(t, cells, 2)
	require.NotNil(t, cells[0].RoomID)
	assert.Equal(t, "R1", *cells[0].RoomID)
	assert.Nil(t, cells[1].RoomID)
}

func TestTimetableRepositoryMaxRevision(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(revision), 0) FROM timetable_grids")).
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(7))

	revision, err := repo.MaxRevision(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), revision)
}

func TestTimetableRepositorySaveGrids(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	room := "R1"
	grids := []models.GridSnapshot{
		{Semester: 0, Section: 0, Revision: 4, Cells: []models.StoredCell{
			{Semester: 0, Section: 0, Day: 1, Period: 2, TeacherID: "T1", SubjectID: "S1", RoomID: &room},
		}},
		{Semester: 0, Section: 1, Revision: 4},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO timetable_grids")).
		WithArgs("inst-1", 0, 0, int64(4), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"revision"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_cells WHERE institution_id = $1 AND semester = $2 AND section = $3")).
		WithArgs("inst-1", 0, 0).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_cells")).
		WithArgs("inst-1", 0, 0, 1, 2, "T1", "S1", &room).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO timetable_grids")).
		WithArgs("inst-1", 0, 1, int64(4), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"revision"}))
	mock.ExpectCommit()

	applied, err := repo.SaveGrids(context.Background(), "inst-1", grids)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositorySaveGridsRollsBack(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO timetable_grids")).
		WillReturnRows(sqlmock.NewRows([]string{"revision"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_cells")).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err := repo.SaveGrids(context.Background(), "inst-1", []models.GridSnapshot{{Semester: 1, Section: 0, Revision: 2}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
