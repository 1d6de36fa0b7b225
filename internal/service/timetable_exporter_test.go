package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/storage"
)

func seededFixture(t *testing.T, structure models.Structure) serviceFixture {
	t.Helper()
	f := newServiceFixture(t, &structure, serviceCatalog())
	table := make(dto.TimeTable, structure.DayCount)
	for day := range table {
		table[day] = make(dto.DaySchedule, structure.PeriodCount)
	}
	table[0][0] = details("Ada", "Programming", "")
	_, err := f.svc.SaveGrid(context.Background(), testInstitution, dto.SaveTimetableRequest{
		Semester:  intPtr(0),
		Section:   intPtr(0),
		Timetable: table,
	})
	require.NoError(t, err)
	return f
}

func newExporterForTest(t *testing.T, snapshots timetableSnapshotter) (*TimetableExporter, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	exporter := NewTimetableExporter(snapshots, store, signer, ExporterConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop())
	return exporter, store
}

func TestBuildDocumentOneSheetPerGrid(t *testing.T) {
	f := seededFixture(t, twoSectionStructure())
	view, err := f.svc.Snapshot(context.Background(), testInstitution)
	require.NoError(t, err)

	doc, err := BuildDocument(view, models.ExportJobParams{Format: models.ExportFormatCSV})
	require.NoError(t, err)
	require.Len(t, doc.Sheets, 2)

	assert.Equal(t, "Semester 1 Section A", doc.Sheets[0].Name)
	assert.Equal(t, "Semester 1 Section B", doc.Sheets[1].Name)
	assert.Equal(t, []string{"Day", "Period 1", "Period 2"}, doc.Sheets[0].Headers)
	assert.Equal(t, [][]string{{"Day 1", "Programming / Ada / TBA", ""}}, doc.Sheets[0].Rows)
	assert.Equal(t, [][]string{{"Day 1", "", ""}}, doc.Sheets[1].Rows)
}

func TestBuildDocumentMarksBreaks(t *testing.T) {
	structure := models.Structure{
		SemesterCount:       1,
		SectionsPerSemester: []int{1},
		DayCount:            1,
		PeriodCount:         3,
		BreaksPerSemester:   [][]int{{1}},
	}
	f := seededFixture(t, structure)
	view, err := f.svc.Snapshot(context.Background(), testInstitution)
	require.NoError(t, err)

	doc, err := BuildDocument(view, models.ExportJobParams{Format: models.ExportFormatCSV})
	require.NoError(t, err)
	require.Len(t, doc.Sheets, 1)
	assert.Equal(t, []string{"Day 1", "Programming / Ada / TBA", BreakLabel, ""}, doc.Sheets[0].Rows[0])
}

func TestBuildDocumentTeacherScope(t *testing.T) {
	f := seededFixture(t, twoSectionStructure())
	view, err := f.svc.Snapshot(context.Background(), testInstitution)
	require.NoError(t, err)

	doc, err := BuildDocument(view, models.ExportJobParams{Format: models.ExportFormatPDF, TeacherID: "Ada"})
	require.NoError(t, err)
	require.Len(t, doc.Sheets, 1)
	assert.Equal(t, "Ada", doc.Sheets[0].Name)
	assert.Equal(t, "Programming / TBA (semester 1, section A)", doc.Sheets[0].Rows[0][1])

	_, err = BuildDocument(view, models.ExportJobParams{Format: models.ExportFormatPDF, TeacherID: "nobody"})
	assert.Error(t, err)
}

func TestBuildDocumentSemesterOutOfRange(t *testing.T) {
	f := seededFixture(t, twoSectionStructure())
	view, err := f.svc.Snapshot(context.Background(), testInstitution)
	require.NoError(t, err)

	_, err = BuildDocument(view, models.ExportJobParams{Format: models.ExportFormatCSV, Semester: intPtr(3)})
	assert.Error(t, err)
}

func TestExporterGenerateCSV(t *testing.T) {
	f := seededFixture(t, twoSectionStructure())
	exporter, store := newExporterForTest(t, f.svc)

	result, err := exporter.Generate(context.Background(), &models.ExportJob{
		ID:            "job-1",
		InstitutionID: testInstitution,
		Params:        models.ExportJobParams{Format: models.ExportFormatCSV},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/schedules/exports/download?token="))
	assert.Equal(t, result.Token, extractToken(result.URL))
	assert.True(t, strings.HasSuffix(result.RelativePath, ".csv"))

	file, err := store.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Programming / Ada / TBA")
	assert.Equal(t, "text/csv", exporter.ContentType(models.ExportFormatCSV))
}

func TestExporterGenerateXLSXAndPDF(t *testing.T) {
	f := seededFixture(t, twoSectionStructure())
	exporter, _ := newExporterForTest(t, f.svc)

	for _, format := range []models.ExportFormat{models.ExportFormatXLSX, models.ExportFormatPDF} {
		result, err := exporter.Generate(context.Background(), &models.ExportJob{
			ID:            "job-" + string(format),
			InstitutionID: testInstitution,
			Params:        models.ExportJobParams{Format: format},
		})
		require.NoError(t, err, format)
		assert.True(t, strings.HasSuffix(result.RelativePath, "."+string(format)))
	}
}

type failingSnapshotter struct{}

func (failingSnapshotter) Snapshot(context.Context, string) (*TimetableView, error) {
	return nil, errors.New("database unavailable")
}

func TestExporterGeneratePropagatesSnapshotError(t *testing.T) {
	exporter, _ := newExporterForTest(t, failingSnapshotter{})
	_, err := exporter.Generate(context.Background(), &models.ExportJob{
		ID:     "job-1",
		Params: models.ExportJobParams{Format: models.ExportFormatCSV},
	})
	assert.EqualError(t, err, "database unavailable")

	_, err = exporter.Generate(context.Background(), &models.ExportJob{
		ID:     "job-2",
		Params: models.ExportJobParams{Format: "docx"},
	})
	assert.Error(t, err)
}
