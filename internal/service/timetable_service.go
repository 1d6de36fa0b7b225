package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type structureReader interface {
	Get(ctx context.Context, institutionID string) (*models.Structure, error)
}

type catalogReader interface {
	ListTeachers(ctx context.Context, institutionID string) ([]models.Teacher, error)
	ListSubjects(ctx context.Context, institutionID string) ([]models.Subject, error)
	ListRooms(ctx context.Context, institutionID string) ([]models.Room, error)
}

type timetableStore interface {
	ListCells(ctx context.Context, institutionID string) ([]models.StoredCell, error)
	MaxRevision(ctx context.Context, institutionID string) (int64, error)
	SaveGrids(ctx context.Context, institutionID string, grids []models.GridSnapshot) (int, error)
}

const (
	opSaveGrid = "save_grid"
	opEditCell = "edit_cell"
	opGenerate = "generate"
)

// TimetableServiceConfig holds the fallback structure for institutions without a stored one.
type TimetableServiceConfig struct {
	DefaultStructure models.Structure
}

// TimetableService coordinates per-institution workspaces: reads, manual edits, whole-grid saves
// and generation runs, with persistence and cache invalidation after each commit.
type TimetableService struct {
	structures structureReader
	catalogs   catalogReader
	store      timetableStore
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        TimetableServiceConfig

	mu         sync.Mutex
	workspaces map[string]*workspace
}

// workspace is the in-memory timetable of one institution, valid for the structure and catalog it
// was loaded with.
type workspace struct {
	mu         sync.RWMutex
	structure  models.Structure
	catalogKey string
	loadID     string
	set        *models.TimetableSet
	index      *OccupancyIndex
	revision   int64
}

func (w *workspace) matches(structure models.Structure, catalog *models.Catalog) bool {
	return w.structure.Equal(structure) && w.catalogKey == catalog.Fingerprint()
}

// version names the workspace content for cache keys. Callers hold the lock.
func (w *workspace) version() string {
	return fmt.Sprintf("%s:%d", w.loadID, w.revision)
}

// commit runs fn under the write lock. On success the revision is bumped and the grids named by
// fn are captured for persistence.
func (w *workspace) commit(fn func() ([]models.GridKey, error)) ([]models.GridSnapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	keys, err := fn()
	if err != nil {
		return nil, err
	}
	w.revision++
	snapshots := make([]models.GridSnapshot, 0, len(keys))
	for _, key := range keys {
		grid, _ := w.set.Grid(key.Semester, key.Section)
		snapshots = append(snapshots, grid.Snapshot(w.revision))
	}
	return snapshots, nil
}

func (w *workspace) read(fn func(set *models.TimetableSet)) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn(w.set)
}

// TimetableView is a point-in-time copy of an institution's timetable.
type TimetableView struct {
	Structure models.Structure
	Catalog   *models.Catalog
	Set       *models.TimetableSet
	Revision  int64
}

// NewTimetableService constructs the service.
func NewTimetableService(structures structureReader, catalogs catalogReader, store timetableStore, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg TimetableServiceConfig) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TimetableService{
		structures: structures,
		catalogs:   catalogs,
		store:      store,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		workspaces: make(map[string]*workspace),
	}
}

// GetStructure returns the timetable shape of an institution.
func (s *TimetableService) GetStructure(ctx context.Context, institutionID string) (*models.Structure, error) {
	structure, err := s.loadStructure(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	return &structure, nil
}

// ListTeachers returns the validated teacher catalog.
func (s *TimetableService) ListTeachers(ctx context.Context, institutionID string) ([]models.Teacher, error) {
	catalog, err := s.loadCatalog(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	return catalog.Teachers(), nil
}

// ListSubjects returns the validated subject catalog.
func (s *TimetableService) ListSubjects(ctx context.Context, institutionID string) ([]models.Subject, error) {
	catalog, err := s.loadCatalog(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	return catalog.Subjects(), nil
}

// ListRooms returns the validated room catalog.
func (s *TimetableService) ListRooms(ctx context.Context, institutionID string) ([]models.Room, error) {
	catalog, err := s.loadCatalog(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	return catalog.Rooms(), nil
}

// SubjectDetails returns the course legend keyed by code, or id when a course has no code.
func (s *TimetableService) SubjectDetails(ctx context.Context, institutionID string) (dto.SubjectDetails, error) {
	return cached(ctx, s.cache, institutionCacheKey(institutionID, "subject-details"), func() (dto.SubjectDetails, error) {
		catalog, err := s.loadCatalog(ctx, institutionID)
		if err != nil {
			return nil, err
		}
		details := make(dto.SubjectDetails, len(catalog.Subjects()))
		for _, subject := range catalog.Subjects() {
			key := subject.Code
			if key == "" {
				key = subject.ID
			}
			detail := dto.SubjectDetail{SubjectName: subject.Name, RoomCodes: []string{NoRoom}}
			if teacher, ok := catalog.Teacher(subject.TeacherID); ok {
				detail.TeacherName = teacher.Name
			}
			if len(subject.RoomIDs) > 0 {
				detail.RoomCodes = make([]string, 0, len(subject.RoomIDs))
				for _, roomID := range subject.RoomIDs {
					room, _ := catalog.Room(roomID)
					detail.RoomCodes = append(detail.RoomCodes, room.Name)
				}
			}
			details[key] = detail
		}
		return details, nil
	})
}

// GetSchedule returns every grid of the institution in wire form. Cached payloads are keyed by the
// workspace version they were encoded from, so a payload built before a commit is never served after it.
func (s *TimetableService) GetSchedule(ctx context.Context, institutionID string) (dto.FullTimeTable, error) {
	_, catalog, ws, err := s.open(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	ws.mu.RLock()
	current := ws.version()
	ws.mu.RUnlock()

	var full dto.FullTimeTable
	if hit, _ := s.cache.Get(ctx, scheduleCacheKey(institutionID, current), &full); hit {
		return full, nil
	}
	var encoded string
	ws.read(func(set *models.TimetableSet) {
		full = cellCodec{catalog: catalog}.encodeSet(set)
		encoded = ws.version()
	})
	_ = s.cache.Set(ctx, scheduleCacheKey(institutionID, encoded), full, 0)
	return full, nil
}

// TeacherTimetable returns the [day][period] view of one teacher across every grid.
func (s *TimetableService) TeacherTimetable(ctx context.Context, institutionID, teacherRef string) (dto.TimeTable, error) {
	_, catalog, ws, err := s.open(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	teacher, ok := catalog.FindTeacher(teacherRef)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("teacher %q not found", teacherRef))
	}
	var table dto.TimeTable
	ws.read(func(set *models.TimetableSet) {
		table = cellCodec{catalog: catalog}.teacherView(set, teacher.ID)
	})
	return table, nil
}

// Snapshot copies the current timetable for background consumers such as exports.
func (s *TimetableService) Snapshot(ctx context.Context, institutionID string) (*TimetableView, error) {
	structure, catalog, ws, err := s.open(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	view := &TimetableView{Structure: structure, Catalog: catalog}
	ws.mu.RLock()
	view.Set = ws.set.Clone()
	view.Revision = ws.revision
	ws.mu.RUnlock()
	return view, nil
}

// SaveGrid replaces the content of one (semester, section) grid. Every cell is checked against the
// other grids; on the first violation nothing is changed.
func (s *TimetableService) SaveGrid(ctx context.Context, institutionID string, req dto.SaveTimetableRequest) (*dto.SaveTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	structure, catalog, ws, err := s.open(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	key := models.GridKey{Semester: *req.Semester, Section: *req.Section}
	if err := structure.CheckGrid(key.Semester, key.Section); err != nil {
		return nil, err
	}
	codec := cellCodec{catalog: catalog}
	placements, err := codec.decodeGrid(structure, key, req.Timetable)
	if err != nil {
		return nil, err
	}
	if err := checkDeadline(ctx); err != nil {
		return nil, err
	}

	checker := NewConflictChecker(catalog)
	var saved dto.TimeTable
	snapshots, err := ws.commit(func() ([]models.GridKey, error) {
		next := ws.set.Clone()
		for day := 0; day < structure.DayCount; day++ {
			for period := 0; period < structure.PeriodCount; period++ {
				_ = next.Clear(models.CellRef{Semester: key.Semester, Section: key.Section, Day: day, Period: period})
			}
		}
		idx := BuildOccupancyIndex(next)
		for _, p := range placements {
			if ok, reason := checker.CanPlace(next, idx, p.ref, p.a); !ok {
				return nil, appErrors.WithDetail(appErrors.Conflict(reason), "cell", p.ref)
			}
			if err := next.Place(p.ref, p.a); err != nil {
				return nil, err
			}
			idx.reserve(p.ref, p.a)
		}
		ws.set, ws.index = next, idx
		grid, _ := next.Grid(key.Semester, key.Section)
		saved = codec.encodeGrid(grid)
		return []models.GridKey{key}, nil
	})
	if err != nil {
		s.recordConflict(opSaveGrid, err)
		return nil, err
	}
	if err := s.persist(ctx, institutionID, ws, opSaveGrid, snapshots); err != nil {
		return nil, err
	}
	return &dto.SaveTimetableResponse{Semester: key.Semester, Section: key.Section, Timetable: saved}, nil
}

// EditCell places, replaces or clears a single cell.
func (s *TimetableService) EditCell(ctx context.Context, institutionID string, req dto.EditCellRequest) (*dto.EditCellResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cell payload")
	}
	structure, catalog, ws, err := s.open(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	ref := req.Ref()
	if err := structure.CheckRef(ref); err != nil {
		return nil, err
	}
	codec := cellCodec{catalog: catalog}
	var next models.Assignment
	if !req.Clear {
		if next, err = codec.resolve(req.TeacherID, req.SubjectID, req.RoomID); err != nil {
			return nil, appErrors.WithDetail(appErrors.FromError(err), "cell", ref)
		}
	}
	if err := checkDeadline(ctx); err != nil {
		return nil, err
	}

	checker := NewConflictChecker(catalog)
	resp := &dto.EditCellResponse{Cell: ref}
	snapshots, err := ws.commit(func() ([]models.GridKey, error) {
		if structure.IsBreak(ref.Semester, ref.Period) {
			return nil, appErrors.WithDetail(appErrors.Conflict(ReasonBreakPeriod), "cell", ref)
		}
		previous, occupied := ws.set.Cell(ref).Assigned()
		if req.Clear {
			if err := ws.set.Clear(ref); err != nil {
				return nil, err
			}
			if occupied {
				ws.index.release(ref, previous)
			}
			return []models.GridKey{ref.Grid()}, nil
		}
		if ok, reason := checker.CanPlace(ws.set, ws.index, ref, next); !ok {
			return nil, appErrors.WithDetail(appErrors.Conflict(reason), "cell", ref)
		}
		if err := ws.set.Place(ref, next); err != nil {
			return nil, err
		}
		if occupied {
			ws.index.release(ref, previous)
		}
		ws.index.reserve(ref, next)
		resp.Data = codec.encode(next)
		return []models.GridKey{ref.Grid()}, nil
	})
	if err != nil {
		s.recordConflict(opEditCell, err)
		return nil, err
	}
	if err := s.persist(ctx, institutionID, ws, opEditCell, snapshots); err != nil {
		return nil, err
	}
	return resp, nil
}

// Generate fills every empty cell around the current timetable, or around an empty one when
// req.Reset is set. Cells with no legal assignment are reported, not failed.
func (s *TimetableService) Generate(ctx context.Context, institutionID string, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	structure, catalog, ws, err := s.open(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	engine, err := NewAssignmentEngine(structure, catalog)
	if err != nil {
		return nil, err
	}
	if err := checkDeadline(ctx); err != nil {
		return nil, err
	}

	codec := cellCodec{catalog: catalog}
	resp := &dto.GenerateTimetableResponse{}
	var elapsed time.Duration
	snapshots, err := ws.commit(func() ([]models.GridKey, error) {
		start := time.Now()
		partial := ws.set
		if req.Reset {
			partial = nil
		}
		result, err := engine.Generate(partial)
		if err != nil {
			return nil, err
		}
		elapsed = time.Since(start)
		ws.set, ws.index = result.Set, result.index

		resp.Timetable = codec.encodeSet(result.Set)
		resp.Unresolved = result.Unresolved
		resp.Placed = result.Placed

		keys := make([]models.GridKey, 0, len(result.Set.Grids()))
		for _, grid := range result.Set.Grids() {
			keys = append(keys, grid.Key)
		}
		return keys, nil
	})
	if err != nil {
		s.recordConflict(opGenerate, err)
		return nil, err
	}
	s.metrics.ObserveGeneration(elapsed, len(resp.Unresolved))
	s.logger.Info("timetable generated",
		zap.String("institution_id", institutionID),
		zap.Bool("reset", req.Reset),
		zap.Int("placed", resp.Placed),
		zap.Int("unresolved", len(resp.Unresolved)),
		zap.Duration("elapsed", elapsed),
	)
	if err := s.persist(ctx, institutionID, ws, opGenerate, snapshots); err != nil {
		return nil, err
	}
	return resp, nil
}

// open loads the structure and catalog, then the workspace matching that structure.
func (s *TimetableService) open(ctx context.Context, institutionID string) (models.Structure, *models.Catalog, *workspace, error) {
	structure, err := s.loadStructure(ctx, institutionID)
	if err != nil {
		return models.Structure{}, nil, nil, err
	}
	catalog, err := s.loadCatalog(ctx, institutionID)
	if err != nil {
		return models.Structure{}, nil, nil, err
	}
	ws, err := s.workspace(ctx, institutionID, structure, catalog)
	if err != nil {
		return models.Structure{}, nil, nil, err
	}
	return structure, catalog, ws, nil
}

func (s *TimetableService) loadStructure(ctx context.Context, institutionID string) (models.Structure, error) {
	stored, err := s.structures.Get(ctx, institutionID)
	var structure models.Structure
	switch {
	case errors.Is(err, sql.ErrNoRows):
		structure = s.cfg.DefaultStructure
	case err != nil:
		return models.Structure{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable structure")
	default:
		structure = *stored
	}
	if err := structure.Validate(); err != nil {
		return models.Structure{}, err
	}
	return structure, nil
}

func (s *TimetableService) loadCatalog(ctx context.Context, institutionID string) (*models.Catalog, error) {
	teachers, err := s.catalogs.ListTeachers(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	subjects, err := s.catalogs.ListSubjects(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	rooms, err := s.catalogs.ListRooms(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	return models.NewCatalog(teachers, subjects, rooms)
}

// workspace returns the registered workspace for the institution, loading it from storage when
// none exists or when the structure or catalog changed since it was loaded.
func (s *TimetableService) workspace(ctx context.Context, institutionID string, structure models.Structure, catalog *models.Catalog) (*workspace, error) {
	s.mu.Lock()
	stale, ok := s.workspaces[institutionID]
	s.mu.Unlock()
	if ok && stale.matches(structure, catalog) {
		return stale, nil
	}
	if ok {
		s.logger.Info("timetable workspace outdated, reloading",
			zap.String("institution_id", institutionID),
			zap.Bool("structure_changed", !stale.structure.Equal(structure)),
		)
	}

	loaded, err := s.loadWorkspace(ctx, institutionID, structure, catalog)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.workspaces[institutionID]; ok && current != stale && current.matches(structure, catalog) {
		return current, nil
	}
	s.workspaces[institutionID] = loaded
	return loaded, nil
}

func (s *TimetableService) loadWorkspace(ctx context.Context, institutionID string, structure models.Structure, catalog *models.Catalog) (*workspace, error) {
	cells, err := s.store.ListCells(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	revision, err := s.store.MaxRevision(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable revision")
	}

	set := models.NewTimetableSet(structure)
	idx := newOccupancyIndex()
	checker := NewConflictChecker(catalog)
	skipped := 0
	for _, cell := range cells {
		ref, a := cell.Ref(), cell.Assignment()
		reason := ""
		if err := structure.CheckRef(ref); err != nil {
			reason = "outside structure"
		} else if !roomKnown(catalog, a.RoomID) {
			reason = "unknown room"
		} else if ok, why := checker.CanPlace(set, idx, ref, a); !ok {
			reason = why
		}
		if reason != "" {
			skipped++
			s.logger.Warn("skipping stored cell",
				zap.String("institution_id", institutionID),
				zap.String("cell", ref.String()),
				zap.String("reason", reason),
			)
			continue
		}
		if err := set.Place(ref, a); err != nil {
			return nil, err
		}
		idx.reserve(ref, a)
	}
	s.logger.Debug("timetable workspace loaded",
		zap.String("institution_id", institutionID),
		zap.Int("cells", len(cells)-skipped),
		zap.Int("skipped", skipped),
		zap.Int64("revision", revision),
	)
	return &workspace{
		structure:  structure,
		catalogKey: catalog.Fingerprint(),
		loadID:     uuid.NewString(),
		set:        set,
		index:      idx,
		revision:   revision,
	}, nil
}

// roomKnown reports whether roomID may be used with catalog. An empty room, or a catalog without
// rooms, accepts any value.
func roomKnown(catalog *models.Catalog, roomID string) bool {
	if roomID == "" || len(catalog.Rooms()) == 0 {
		return true
	}
	_, ok := catalog.Room(roomID)
	return ok
}

// persist writes committed grids and drops cached payloads. A failed write evicts the workspace so
// the next request reloads what storage actually holds.
func (s *TimetableService) persist(ctx context.Context, institutionID string, ws *workspace, operation string, snapshots []models.GridSnapshot) error {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	applied, err := s.store.SaveGrids(ctx, institutionID, snapshots)
	s.metrics.ObserveDBQuery("timetable_save_grids", time.Since(start))
	if err != nil {
		s.evict(institutionID, ws)
		s.logger.Error("timetable persistence failed",
			zap.String("institution_id", institutionID),
			zap.String("operation", operation),
			zap.Error(err),
		)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save timetable")
	}
	_ = s.cache.InvalidateInstitution(ctx, institutionID)
	s.metrics.RecordCommit(operation)

	var revision int64
	if len(snapshots) > 0 {
		revision = snapshots[0].Revision
	}
	s.logger.Info("timetable committed",
		zap.String("institution_id", institutionID),
		zap.String("operation", operation),
		zap.Int64("revision", revision),
		zap.Int("grids", len(snapshots)),
		zap.Int("applied", applied),
	)
	return nil
}

func (s *TimetableService) evict(institutionID string, ws *workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workspaces[institutionID] == ws {
		delete(s.workspaces, institutionID)
	}
}

func (s *TimetableService) recordConflict(operation string, err error) {
	if reason := appErrors.Reason(err); reason != "" {
		s.metrics.RecordConflict(operation, reason)
	}
}

func checkDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, appErrors.ErrTimeout.Message)
	}
	return nil
}
