package service

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/export"
	"github.com/noah-isme/timetable-api/pkg/storage"
)

// BreakLabel marks break cells in rendered exports.
const BreakLabel = "BREAK"

type timetableSnapshotter interface {
	Snapshot(ctx context.Context, institutionID string) (*TimetableView, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExporterConfig tunes export behaviour.
type ExporterConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// TimetableExporter renders timetable snapshots and persists the files behind signed links.
type TimetableExporter struct {
	timetables timetableSnapshotter
	storage    fileStorage
	renderers  map[models.ExportFormat]export.Renderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExporterConfig
}

// NewTimetableExporter constructs the exporter. Without renderers the CSV, PDF and XLSX defaults are used.
func NewTimetableExporter(timetables timetableSnapshotter, store fileStorage, signer *storage.SignedURLSigner, cfg ExporterConfig, logger *zap.Logger, renderers ...export.Renderer) *TimetableExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if len(renderers) == 0 {
		renderers = []export.Renderer{export.NewCSVExporter(), export.NewPDFExporter(), export.NewXLSXExporter()}
	}
	byFormat := make(map[models.ExportFormat]export.Renderer, len(renderers))
	for _, r := range renderers {
		byFormat[models.ExportFormat(r.Extension())] = r
	}
	return &TimetableExporter{
		timetables: timetables,
		storage:    store,
		renderers:  byFormat,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Supports reports whether a renderer is registered for format.
func (e *TimetableExporter) Supports(format models.ExportFormat) bool {
	_, ok := e.renderers[format]
	return ok
}

// Generate renders the job's timetable scope and stores the file.
func (e *TimetableExporter) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, ok := e.renderers[job.Params.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	view, err := e.timetables.Snapshot(ctx, job.InstitutionID)
	if err != nil {
		return nil, err
	}
	doc, err := BuildDocument(view, job.Params)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(doc)
	if err != nil {
		return nil, err
	}

	relPath, err := e.storage.Save(e.buildFilename(job, renderer.Extension()), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := e.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("timetable export rendered",
		zap.String("job_id", job.ID),
		zap.String("format", string(job.Params.Format)),
		zap.Int("sheets", len(doc.Sheets)),
		zap.Int64("revision", view.Revision),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          e.downloadURL(token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (e *TimetableExporter) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return e.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (e *TimetableExporter) Open(relPath string) (*os.File, error) {
	return e.storage.Open(relPath)
}

// Delete removes a stored export file.
func (e *TimetableExporter) Delete(relPath string) error {
	return e.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (e *TimetableExporter) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = e.cfg.ResultTTL
	}
	return e.storage.CleanupOlderThan(ttl)
}

// ContentType returns the MIME type for format.
func (e *TimetableExporter) ContentType(format models.ExportFormat) string {
	if r, ok := e.renderers[format]; ok {
		return r.ContentType()
	}
	return "application/octet-stream"
}

func (e *TimetableExporter) downloadURL(token string) string {
	prefix := strings.TrimRight(e.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/schedules/exports/download?token=%s", prefix, url.QueryEscape(token))
}

func (e *TimetableExporter) buildFilename(job *models.ExportJob, ext string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "all"
	if job.Params.TeacherID != "" {
		scope = "teacher_" + sanitizeFilename(job.Params.TeacherID)
	} else if job.Params.Semester != nil {
		scope = fmt.Sprintf("semester_%d", *job.Params.Semester+1)
	}
	return fmt.Sprintf("%s/timetable_%s_%s.%s", sanitizeFilename(job.InstitutionID), scope, timestamp, ext)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// BuildDocument lays the snapshot out as one sheet per grid, or a single sheet for a teacher scope.
// Days are rows and periods are columns; assigned cells read "subject / teacher / room".
func BuildDocument(view *TimetableView, params models.ExportJobParams) (export.Document, error) {
	structure := view.Structure
	if params.Semester != nil && (*params.Semester < 0 || *params.Semester >= structure.SemesterCount) {
		return export.Document{}, fmt.Errorf("semester %d out of range", *params.Semester)
	}
	inScope := func(semester int) bool {
		return params.Semester == nil || *params.Semester == semester
	}
	codec := cellCodec{catalog: view.Catalog}

	if params.TeacherID != "" {
		teacher, ok := view.Catalog.FindTeacher(params.TeacherID)
		if !ok {
			return export.Document{}, fmt.Errorf("teacher %q not found", params.TeacherID)
		}
		rows := emptyRows(structure.DayCount, structure.PeriodCount)
		view.Set.Each(func(ref models.CellRef, a models.Assignment) {
			if a.TeacherID != teacher.ID || !inScope(ref.Semester) {
				return
			}
			rows[ref.Day][ref.Period+1] = fmt.Sprintf("%s (semester %d, section %s)",
				formatCell(codec.encode(a), false), ref.Semester+1, sectionLabel(ref.Section))
		})
		return export.Document{
			Title:  "Timetable - " + teacher.Name,
			Sheets: []export.Sheet{{Name: teacher.Name, Headers: periodHeaders(structure.PeriodCount), Rows: rows}},
		}, nil
	}

	doc := export.Document{Title: "Timetable"}
	for _, grid := range view.Set.Grids() {
		if !inScope(grid.Key.Semester) {
			continue
		}
		rows := emptyRows(grid.Days(), grid.Periods())
		for day := 0; day < grid.Days(); day++ {
			for period := 0; period < grid.Periods(); period++ {
				cell := grid.Cell(day, period)
				switch cell.State {
				case models.CellBreak:
					rows[day][period+1] = BreakLabel
				case models.CellAssigned:
					rows[day][period+1] = formatCell(codec.encode(cell.Assignment), true)
				}
			}
		}
		doc.Sheets = append(doc.Sheets, export.Sheet{
			Name:    fmt.Sprintf("Semester %d Section %s", grid.Key.Semester+1, sectionLabel(grid.Key.Section)),
			Headers: periodHeaders(grid.Periods()),
			Rows:    rows,
		})
	}
	return doc, nil
}

func periodHeaders(periods int) []string {
	headers := make([]string, 0, periods+1)
	headers = append(headers, "Day")
	for p := 1; p <= periods; p++ {
		headers = append(headers, fmt.Sprintf("Period %d", p))
	}
	return headers
}

func emptyRows(days, periods int) [][]string {
	rows := make([][]string, days)
	for day := range rows {
		rows[day] = make([]string, periods+1)
		rows[day][0] = fmt.Sprintf("Day %d", day+1)
	}
	return rows
}

func formatCell(details *dto.PeriodDetails, withTeacher bool) string {
	if withTeacher {
		return fmt.Sprintf("%s / %s / %s", details[1], details[0], details[2])
	}
	return fmt.Sprintf("%s / %s", details[1], details[2])
}

// sectionLabel renders 0, 1, 2 as A, B, C.
func sectionLabel(section int) string {
	if section >= 0 && section < 26 {
		return string(rune('A' + section))
	}
	return fmt.Sprintf("%d", section+1)
}
