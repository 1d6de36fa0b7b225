package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// NoRoom is the wire value of an assignment without a room.
const NoRoom = "TBA"

// cellCodec converts between catalog ids and the [teacher, subject, room] wire cells.
type cellCodec struct {
	catalog *models.Catalog
}

func (c cellCodec) encode(a models.Assignment) *dto.PeriodDetails {
	details := dto.PeriodDetails{a.TeacherID, a.SubjectID, NoRoom}
	if teacher, ok := c.catalog.Teacher(a.TeacherID); ok {
		details[0] = teacher.Name
	}
	if subject, ok := c.catalog.Subject(a.SubjectID); ok {
		details[1] = subject.Name
	}
	if a.RoomID != "" {
		details[2] = a.RoomID
		if room, ok := c.catalog.Room(a.RoomID); ok {
			details[2] = room.Name
		}
	}
	return &details
}

func (c cellCodec) encodeGrid(grid *models.Grid) dto.TimeTable {
	table := make(dto.TimeTable, grid.Days())
	for day := range table {
		table[day] = make(dto.DaySchedule, grid.Periods())
		for period := range table[day] {
			if a, ok := grid.Cell(day, period).Assigned(); ok {
				table[day][period] = c.encode(a)
			}
		}
	}
	return table
}

func (c cellCodec) encodeSet(set *models.TimetableSet) dto.FullTimeTable {
	structure := set.Structure()
	full := make(dto.FullTimeTable, structure.SemesterCount)
	for sem := range full {
		full[sem] = make([]dto.TimeTable, structure.SectionCount(sem))
		for sec := range full[sem] {
			grid, _ := set.Grid(sem, sec)
			full[sem][sec] = c.encodeGrid(grid)
		}
	}
	return full
}

// teacherView lays out every cell taught by teacherID as a single [day][period] table.
func (c cellCodec) teacherView(set *models.TimetableSet, teacherID string) dto.TimeTable {
	structure := set.Structure()
	table := make(dto.TimeTable, structure.DayCount)
	for day := range table {
		table[day] = make(dto.DaySchedule, structure.PeriodCount)
	}
	set.Each(func(ref models.CellRef, a models.Assignment) {
		if a.TeacherID == teacherID {
			table[ref.Day][ref.Period] = c.encode(a)
		}
	})
	return table
}

// placement is a resolved, not yet validated, cell write.
type placement struct {
	ref models.CellRef
	a   models.Assignment
}

// decodeGrid resolves a wire grid. Empty and null cells are omitted.
func (c cellCodec) decodeGrid(structure models.Structure, key models.GridKey, table dto.TimeTable) ([]placement, error) {
	if len(table) != structure.DayCount {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("timetable must have %d days", structure.DayCount))
	}
	placements := make([]placement, 0, structure.DayCount*structure.PeriodCount)
	for day, periods := range table {
		if len(periods) != structure.PeriodCount {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("day %d must have %d periods", day, structure.PeriodCount))
		}
		for period, details := range periods {
			if details == nil || isBlank(*details) {
				continue
			}
			ref := models.CellRef{Semester: key.Semester, Section: key.Section, Day: day, Period: period}
			a, err := c.resolve(details[0], details[1], details[2])
			if err != nil {
				return nil, appErrors.WithDetail(appErrors.FromError(err), "cell", ref)
			}
			placements = append(placements, placement{ref: ref, a: a})
		}
	}
	return placements, nil
}

// resolve maps teacher, subject and room references (id, code or name) onto catalog ids.
func (c cellCodec) resolve(teacherRef, subjectRef, roomRef string) (models.Assignment, error) {
	subjectRef = strings.TrimSpace(subjectRef)
	if subjectRef == "" {
		return models.Assignment{}, appErrors.Clone(appErrors.ErrValidation, "subject is required")
	}
	subject, ok := c.catalog.FindSubject(subjectRef)
	if !ok {
		return models.Assignment{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %q not found", subjectRef))
	}
	a := models.Assignment{SubjectID: subject.ID}

	teacherRef = strings.TrimSpace(strings.SplitN(teacherRef, "+", 2)[0])
	if isPlaceholder(teacherRef, "Unknown") {
		if subject.TeacherID == "" {
			return models.Assignment{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %q has no assigned teacher", subjectRef))
		}
		a.TeacherID = subject.TeacherID
	} else {
		teacher, ok := c.catalog.FindTeacher(teacherRef)
		if !ok {
			return models.Assignment{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("teacher %q not found", teacherRef))
		}
		a.TeacherID = teacher.ID
	}

	roomRef = strings.TrimSpace(roomRef)
	switch {
	case isPlaceholder(roomRef):
	case len(c.catalog.Rooms()) == 0:
		a.RoomID = roomRef
	default:
		room, ok := c.catalog.FindRoom(roomRef)
		if !ok {
			return models.Assignment{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("room %q not found", roomRef))
		}
		a.RoomID = room.ID
	}
	return a, nil
}

// isPlaceholder matches the empty string, "TBA" and any extra marker, case-insensitively.
func isPlaceholder(value string, extra ...string) bool {
	if value == "" || strings.EqualFold(value, NoRoom) {
		return true
	}
	for _, marker := range extra {
		if strings.EqualFold(value, marker) {
			return true
		}
	}
	return false
}

func isBlank(details dto.PeriodDetails) bool {
	for _, v := range details {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
