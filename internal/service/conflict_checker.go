package service

import "github.com/noah-isme/timetable-api/internal/models"

// Conflict reasons reported by the checker.
const (
	ReasonBreakPeriod        = "break period"
	ReasonNotOffered         = "subject not offered in semester"
	ReasonTeacherBooked      = "teacher double-booked"
	ReasonRoomBooked         = "room double-booked"
	ReasonTeacherUnavailable = "teacher unavailable"
	ReasonTeacherDailyLoad   = "teacher daily load exceeded"
	ReasonTeacherWeeklyLoad  = "teacher weekly load exceeded"
	ReasonQuotaReached       = "weekly quota reached"
	ReasonUnknownTeacher     = "unknown teacher"
	ReasonUnknownSubject     = "unknown subject"
)

// ConflictChecker decides whether an assignment may be placed in a cell.
// Manual edits, grid saves, partial seeding and generation all go through CanPlace.
type ConflictChecker struct {
	catalog *models.Catalog
}

// NewConflictChecker binds the checker to a catalog.
func NewConflictChecker(catalog *models.Catalog) *ConflictChecker {
	return &ConflictChecker{catalog: catalog}
}

// CanPlace reports whether a may occupy ref in set, and the first violated constraint otherwise.
// ref must lie inside the set's structure. The cell's current occupant never counts against itself.
// A nil idx makes the checker scan every grid instead.
func (c *ConflictChecker) CanPlace(set *models.TimetableSet, idx *OccupancyIndex, ref models.CellRef, a models.Assignment) (bool, string) {
	structure := set.Structure()
	if structure.IsBreak(ref.Semester, ref.Period) {
		return false, ReasonBreakPeriod
	}
	subject, ok := c.catalog.Subject(a.SubjectID)
	if !ok {
		return false, ReasonUnknownSubject
	}
	teacher, ok := c.catalog.Teacher(a.TeacherID)
	if !ok {
		return false, ReasonUnknownTeacher
	}
	if !subject.OfferedIn(ref.Semester) {
		return false, ReasonNotOffered
	}

	current, occupied := set.Cell(ref).Assigned()
	var usage slotUsage
	if idx != nil {
		usage = indexUsage(idx, ref, a)
	} else {
		usage = scanUsage(set, ref, a)
	}
	// the occupant being replaced frees its own load and quota share
	if occupied {
		if current.TeacherID == a.TeacherID {
			usage.teacherDay--
			usage.teacherWeek--
		}
		if current.SubjectID == a.SubjectID {
			usage.subjectCount--
		}
	}

	if usage.teacherBooked {
		return false, ReasonTeacherBooked
	}
	if usage.roomBooked {
		return false, ReasonRoomBooked
	}
	for _, slot := range teacher.Unavailable {
		if slot.Day == ref.Day && slot.Period == ref.Period {
			return false, ReasonTeacherUnavailable
		}
	}
	if teacher.MaxLoadPerDay > 0 && usage.teacherDay >= teacher.MaxLoadPerDay {
		return false, ReasonTeacherDailyLoad
	}
	if teacher.MaxLoadPerWeek > 0 && usage.teacherWeek >= teacher.MaxLoadPerWeek {
		return false, ReasonTeacherWeeklyLoad
	}
	if subject.QuotaMet(usage.subjectCount) {
		return false, ReasonQuotaReached
	}
	return true, ""
}

// slotUsage is what the rest of the set already holds that is relevant to one placement.
type slotUsage struct {
	teacherBooked bool
	roomBooked    bool
	teacherDay    int
	teacherWeek   int
	subjectCount  int
}

func indexUsage(idx *OccupancyIndex, ref models.CellRef, a models.Assignment) slotUsage {
	var usage slotUsage
	if owner, ok := idx.teacherOwner(ref.Day, ref.Period, a.TeacherID); ok && owner != ref {
		usage.teacherBooked = true
	}
	if a.RoomID != "" {
		if owner, ok := idx.roomOwner(ref.Day, ref.Period, a.RoomID); ok && owner != ref {
			usage.roomBooked = true
		}
	}
	usage.teacherDay = idx.teacherDayLoad(a.TeacherID, ref.Day)
	usage.teacherWeek = idx.teacherWeekLoad(a.TeacherID)
	usage.subjectCount = idx.subjectCount(ref.Grid(), a.SubjectID)
	return usage
}

func scanUsage(set *models.TimetableSet, ref models.CellRef, a models.Assignment) slotUsage {
	var usage slotUsage
	set.Each(func(other models.CellRef, held models.Assignment) {
		if held.TeacherID == a.TeacherID {
			usage.teacherWeek++
			if other.Day == ref.Day {
				usage.teacherDay++
			}
		}
		if other.Grid() == ref.Grid() && held.SubjectID == a.SubjectID {
			usage.subjectCount++
		}
		if other.Day != ref.Day || other.Period != ref.Period || other == ref {
			return
		}
		if held.TeacherID == a.TeacherID {
			usage.teacherBooked = true
		}
		if a.RoomID != "" && held.RoomID == a.RoomID {
			usage.roomBooked = true
		}
	})
	return usage
}
