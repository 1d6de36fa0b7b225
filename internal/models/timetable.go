package models

import (
	"fmt"
	"time"

	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// Assignment is the content of an assigned cell. RoomID may be empty.
type Assignment struct {
	TeacherID string `json:"teacherId"`
	SubjectID string `json:"subjectId"`
	RoomID    string `json:"roomId,omitempty"`
}

// CellState distinguishes empty, break and assigned cells.
type CellState uint8

const (
	CellEmpty CellState = iota
	CellBreak
	CellAssigned
)

func (s CellState) String() string {
	switch s {
	case CellBreak:
		return "BREAK"
	case CellAssigned:
		return "ASSIGNED"
	default:
		return "EMPTY"
	}
}

// Cell holds exactly one of Empty, Break or an Assignment.
type Cell struct {
	State      CellState
	Assignment Assignment
}

// Assigned returns the cell's assignment when it holds one.
func (c Cell) Assigned() (Assignment, bool) {
	return c.Assignment, c.State == CellAssigned
}

// CellRef addresses a single cell.
type CellRef struct {
	Semester int `json:"semester"`
	Section  int `json:"section"`
	Day      int `json:"day"`
	Period   int `json:"period"`
}

func (r CellRef) String() string {
	return fmt.Sprintf("semester %d section %d day %d period %d", r.Semester, r.Section, r.Day, r.Period)
}

// Grid returns the key of the grid containing the cell.
func (r CellRef) Grid() GridKey {
	return GridKey{Semester: r.Semester, Section: r.Section}
}

// GridKey identifies a (semester, section) grid.
type GridKey struct {
	Semester int
	Section  int
}

// Grid is the dense [day][period] table of one (semester, section).
type Grid struct {
	Key   GridKey
	cells [][]Cell
}

func newGrid(structure Structure, key GridKey) *Grid {
	cells := make([][]Cell, structure.DayCount)
	for day := range cells {
		cells[day] = make([]Cell, structure.PeriodCount)
		for period := range cells[day] {
			if structure.IsBreak(key.Semester, period) {
				cells[day][period].State = CellBreak
			}
		}
	}
	return &Grid{Key: key, cells: cells}
}

// Cell returns the cell at (day, period).
func (g *Grid) Cell(day, period int) Cell {
	return g.cells[day][period]
}

// Days returns the number of days in the grid.
func (g *Grid) Days() int { return len(g.cells) }

// Periods returns the number of periods per day.
func (g *Grid) Periods() int {
	if len(g.cells) == 0 {
		return 0
	}
	return len(g.cells[0])
}

func (g *Grid) place(day, period int, a Assignment) error {
	if g.cells[day][period].State == CellBreak {
		return appErrors.Conflict("break period")
	}
	g.cells[day][period] = Cell{State: CellAssigned, Assignment: a}
	return nil
}

func (g *Grid) clear(day, period int) {
	if g.cells[day][period].State == CellAssigned {
		g.cells[day][period] = Cell{}
	}
}

func (g *Grid) clone() *Grid {
	cells := make([][]Cell, len(g.cells))
	for day := range g.cells {
		cells[day] = append([]Cell(nil), g.cells[day]...)
	}
	return &Grid{Key: g.Key, cells: cells}
}

// TimetableSet holds every grid implied by a Structure, ordered by semester then section.
type TimetableSet struct {
	structure Structure
	grids     []*Grid
	index     map[GridKey]int
}

// NewTimetableSet builds an empty set whose break cells are fixed by structure.
// The structure must already be valid.
func NewTimetableSet(structure Structure) *TimetableSet {
	set := &TimetableSet{structure: structure, index: make(map[GridKey]int)}
	for sem := 0; sem < structure.SemesterCount; sem++ {
		for sec := 0; sec < structure.SectionCount(sem); sec++ {
			key := GridKey{Semester: sem, Section: sec}
			set.index[key] = len(set.grids)
			set.grids = append(set.grids, newGrid(structure, key))
		}
	}
	return set
}

// Structure returns the shape of the set.
func (s *TimetableSet) Structure() Structure { return s.structure }

// Grids returns grids in ascending (semester, section) order.
func (s *TimetableSet) Grids() []*Grid { return s.grids }

// Grid returns the grid for (semester, section).
func (s *TimetableSet) Grid(semester, section int) (*Grid, bool) {
	i, ok := s.index[GridKey{Semester: semester, Section: section}]
	if !ok {
		return nil, false
	}
	return s.grids[i], true
}

// Cell returns the cell at ref. ref must be in range.
func (s *TimetableSet) Cell(ref CellRef) Cell {
	grid, _ := s.Grid(ref.Semester, ref.Section)
	return grid.Cell(ref.Day, ref.Period)
}

// Place writes a into the cell at ref, rejecting break cells.
// Legality against other cells is the caller's responsibility.
func (s *TimetableSet) Place(ref CellRef, a Assignment) error {
	if err := s.structure.CheckRef(ref); err != nil {
		return err
	}
	grid, _ := s.Grid(ref.Semester, ref.Section)
	return grid.place(ref.Day, ref.Period, a)
}

// Clear empties the cell at ref. Break cells are left untouched.
func (s *TimetableSet) Clear(ref CellRef) error {
	if err := s.structure.CheckRef(ref); err != nil {
		return err
	}
	grid, _ := s.Grid(ref.Semester, ref.Section)
	grid.clear(ref.Day, ref.Period)
	return nil
}

// ReplaceGrid swaps the grid at (semester, section) with a copy of src.
func (s *TimetableSet) ReplaceGrid(src *Grid) {
	if i, ok := s.index[src.Key]; ok {
		s.grids[i] = src.clone()
	}
}

// Clone returns a deep copy.
func (s *TimetableSet) Clone() *TimetableSet {
	out := &TimetableSet{structure: s.structure, grids: make([]*Grid, len(s.grids)), index: s.index}
	for i, g := range s.grids {
		out.grids[i] = g.clone()
	}
	return out
}

// Each visits every assigned cell in (semester, section, day, period) order.
func (s *TimetableSet) Each(fn func(ref CellRef, a Assignment)) {
	for _, g := range s.grids {
		g.Each(func(day, period int, a Assignment) {
			fn(CellRef{Semester: g.Key.Semester, Section: g.Key.Section, Day: day, Period: period}, a)
		})
	}
}

// Each visits every assigned cell of the grid in row-major order.
func (g *Grid) Each(fn func(day, period int, a Assignment)) {
	for day := range g.cells {
		for period, cell := range g.cells[day] {
			if a, ok := cell.Assigned(); ok {
				fn(day, period, a)
			}
		}
	}
}

// StoredCell is one persisted assigned cell.
type StoredCell struct {
	InstitutionID string  `db:"institution_id"`
	Semester      int     `db:"semester"`
	Section       int     `db:"section"`
	Day           int     `db:"day"`
	Period        int     `db:"period"`
	TeacherID     string  `db:"teacher_id"`
	SubjectID     string  `db:"subject_id"`
	RoomID        *string `db:"room_id"`
}

// GridRevision is the persisted revision marker of one grid.
type GridRevision struct {
	InstitutionID string    `db:"institution_id"`
	Semester      int       `db:"semester"`
	Section       int       `db:"section"`
	Revision      int64     `db:"revision"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// GridSnapshot is the content of one grid captured at a workspace revision.
type GridSnapshot struct {
	Semester int
	Section  int
	Revision int64
	Cells    []StoredCell
}

// Snapshot captures the assigned cells of the grid at revision.
func (g *Grid) Snapshot(revision int64) GridSnapshot {
	snap := GridSnapshot{Semester: g.Key.Semester, Section: g.Key.Section, Revision: revision, Cells: make([]StoredCell, 0)}
	g.Each(func(day, period int, a Assignment) {
		cell := StoredCell{
			Semester:  g.Key.Semester,
			Section:   g.Key.Section,
			Day:       day,
			Period:    period,
			TeacherID: a.TeacherID,
			SubjectID: a.SubjectID,
		}
		if a.RoomID != "" {
			room := a.RoomID
			cell.RoomID = &room
		}
		snap.Cells = append(snap.Cells, cell)
	})
	return snap
}

// Assignment converts the stored row back into an assignment.
func (c StoredCell) Assignment() Assignment {
	a := Assignment{TeacherID: c.TeacherID, SubjectID: c.SubjectID}
	if c.RoomID != nil {
		a.RoomID = *c.RoomID
	}
	return a
}

// Ref returns the address of the stored cell.
func (c StoredCell) Ref() CellRef {
	return CellRef{Semester: c.Semester, Section: c.Section, Day: c.Day, Period: c.Period}
}
