package service

import (
	"fmt"
	"sort"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// GenerateResult is the outcome of one engine run.
type GenerateResult struct {
	Set        *models.TimetableSet
	Unresolved []models.CellRef
	Placed     int

	index *OccupancyIndex
}

// AssignmentEngine fills empty cells deterministically around a partial set.
type AssignmentEngine struct {
	structure models.Structure
	catalog   *models.Catalog
	checker   *ConflictChecker
}

// NewAssignmentEngine validates the structure and binds the engine to a catalog.
func NewAssignmentEngine(structure models.Structure, catalog *models.Catalog) (*AssignmentEngine, error) {
	if err := structure.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "catalog is required")
	}
	return &AssignmentEngine{structure: structure, catalog: catalog, checker: NewConflictChecker(catalog)}, nil
}

// Generate runs the engine. See AssignmentEngine.Generate.
func Generate(structure models.Structure, catalog *models.Catalog, partial *models.TimetableSet) (*GenerateResult, error) {
	engine, err := NewAssignmentEngine(structure, catalog)
	if err != nil {
		return nil, err
	}
	return engine.Generate(partial)
}

// Generate seeds the assigned cells of partial, then fills every remaining empty cell with the first
// legal (teacher, subject, room) combination. Cells with no legal combination are reported as unresolved.
// partial may be nil; it is never modified.
func (e *AssignmentEngine) Generate(partial *models.TimetableSet) (*GenerateResult, error) {
	set, idx, err := e.seed(partial)
	if err != nil {
		return nil, err
	}

	result := &GenerateResult{Set: set, Unresolved: make([]models.CellRef, 0), index: idx}
	for _, grid := range set.Grids() {
		for day := 0; day < grid.Days(); day++ {
			for period := 0; period < grid.Periods(); period++ {
				if grid.Cell(day, period).State != models.CellEmpty {
					continue
				}
				ref := models.CellRef{Semester: grid.Key.Semester, Section: grid.Key.Section, Day: day, Period: period}
				a, ok := e.pick(set, idx, ref)
				if !ok {
					result.Unresolved = append(result.Unresolved, ref)
					continue
				}
				if err := set.Place(ref, a); err != nil {
					return nil, err
				}
				idx.reserve(ref, a)
				result.Placed++
			}
		}
	}
	return result, nil
}

// seed copies partial into a fresh set, validating each cell through the checker.
func (e *AssignmentEngine) seed(partial *models.TimetableSet) (*models.TimetableSet, *OccupancyIndex, error) {
	set := models.NewTimetableSet(e.structure)
	idx := newOccupancyIndex()
	if partial == nil {
		return set, idx, nil
	}
	if !partial.Structure().Equal(e.structure) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "partial timetable does not match the structure")
	}

	var seedErr error
	partial.Each(func(ref models.CellRef, a models.Assignment) {
		if seedErr != nil {
			return
		}
		if err := e.checkReferences(a); err != nil {
			seedErr = appErrors.WithDetail(appErrors.FromError(err), "cell", ref)
			return
		}
		if ok, reason := e.checker.CanPlace(set, idx, ref, a); !ok {
			seedErr = appErrors.WithDetail(appErrors.Conflict(reason), "cell", ref)
			return
		}
		if err := set.Place(ref, a); err != nil {
			seedErr = err
			return
		}
		idx.reserve(ref, a)
	})
	if seedErr != nil {
		return nil, nil, seedErr
	}
	return set, idx, nil
}

func (e *AssignmentEngine) checkReferences(a models.Assignment) error {
	if _, ok := e.catalog.Teacher(a.TeacherID); !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("teacher %s not found", a.TeacherID))
	}
	if _, ok := e.catalog.Subject(a.SubjectID); !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s not found", a.SubjectID))
	}
	if a.RoomID != "" && len(e.catalog.Rooms()) > 0 {
		if _, ok := e.catalog.Room(a.RoomID); !ok {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("room %s not found", a.RoomID))
		}
	}
	return nil
}

// pick returns the first legal assignment for ref.
func (e *AssignmentEngine) pick(set *models.TimetableSet, idx *OccupancyIndex, ref models.CellRef) (models.Assignment, bool) {
	for _, subject := range e.subjectOrder(idx, ref.Grid()) {
		if !subject.OfferedIn(ref.Semester) || subject.QuotaMet(idx.subjectCount(ref.Grid(), subject.ID)) {
			continue
		}
		for _, teacherID := range e.teacherCandidates(subject) {
			for _, roomID := range e.roomCandidates(subject) {
				a := models.Assignment{TeacherID: teacherID, SubjectID: subject.ID, RoomID: roomID}
				if ok, _ := e.checker.CanPlace(set, idx, ref, a); ok {
					return a, true
				}
			}
		}
	}
	return models.Assignment{}, false
}

// subjectOrder is catalog order, stably re-ordered by fewest placements so far in the grid.
func (e *AssignmentEngine) subjectOrder(idx *OccupancyIndex, grid models.GridKey) []models.Subject {
	subjects := append([]models.Subject(nil), e.catalog.Subjects()...)
	sort.SliceStable(subjects, func(i, j int) bool {
		return idx.subjectCount(grid, subjects[i].ID) < idx.subjectCount(grid, subjects[j].ID)
	})
	return subjects
}

func (e *AssignmentEngine) teacherCandidates(subject models.Subject) []string {
	if subject.TeacherID != "" {
		return []string{subject.TeacherID}
	}
	teachers := e.catalog.Teachers()
	ids := make([]string, len(teachers))
	for i, t := range teachers {
		ids[i] = t.ID
	}
	return ids
}

func (e *AssignmentEngine) roomCandidates(subject models.Subject) []string {
	if len(subject.RoomIDs) > 0 {
		return subject.RoomIDs
	}
	rooms := e.catalog.Rooms()
	if len(rooms) == 0 {
		return []string{""}
	}
	ids := make([]string, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}
	return ids
}
