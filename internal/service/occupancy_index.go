package service

import "github.com/noah-isme/timetable-api/internal/models"

// slotKey addresses a wall-clock (day, period) slot shared by every grid.
type slotKey struct {
	Day    int
	Period int
}

// teacherLoad tracks how many cells a teacher holds per day and per week.
type teacherLoad struct {
	perDay map[int]int
	weekly int
}

func (t *teacherLoad) reserve(day int) {
	t.perDay[day]++
	t.weekly++
}

func (t *teacherLoad) release(day int) {
	if t.perDay[day] > 0 {
		t.perDay[day]--
	}
	if t.weekly > 0 {
		t.weekly--
	}
}

// OccupancyIndex maps each slot to the cells owning a teacher or room there, and tracks
// per-grid subject counts and per-teacher loads. It is updated only after a placement is committed.
type OccupancyIndex struct {
	teachers map[slotKey]map[string]models.CellRef
	rooms    map[slotKey]map[string]models.CellRef
	subjects map[models.GridKey]map[string]int
	loads    map[string]*teacherLoad
}

func newOccupancyIndex() *OccupancyIndex {
	return &OccupancyIndex{
		teachers: make(map[slotKey]map[string]models.CellRef),
		rooms:    make(map[slotKey]map[string]models.CellRef),
		subjects: make(map[models.GridKey]map[string]int),
		loads:    make(map[string]*teacherLoad),
	}
}

// BuildOccupancyIndex indexes every assigned cell of set.
func BuildOccupancyIndex(set *models.TimetableSet) *OccupancyIndex {
	idx := newOccupancyIndex()
	set.Each(idx.reserve)
	return idx
}

func (o *OccupancyIndex) reserve(ref models.CellRef, a models.Assignment) {
	slot := slotKey{Day: ref.Day, Period: ref.Period}
	if o.teachers[slot] == nil {
		o.teachers[slot] = make(map[string]models.CellRef)
	}
	o.teachers[slot][a.TeacherID] = ref
	if a.RoomID != "" {
		if o.rooms[slot] == nil {
			o.rooms[slot] = make(map[string]models.CellRef)
		}
		o.rooms[slot][a.RoomID] = ref
	}
	grid := ref.Grid()
	if o.subjects[grid] == nil {
		o.subjects[grid] = make(map[string]int)
	}
	o.subjects[grid][a.SubjectID]++
	o.load(a.TeacherID).reserve(ref.Day)
}

func (o *OccupancyIndex) release(ref models.CellRef, a models.Assignment) {
	slot := slotKey{Day: ref.Day, Period: ref.Period}
	if owner, ok := o.teachers[slot][a.TeacherID]; ok && owner == ref {
		delete(o.teachers[slot], a.TeacherID)
	}
	if a.RoomID != "" {
		if owner, ok := o.rooms[slot][a.RoomID]; ok && owner == ref {
			delete(o.rooms[slot], a.RoomID)
		}
	}
	if counts := o.subjects[ref.Grid()]; counts[a.SubjectID] > 0 {
		counts[a.SubjectID]--
	}
	o.load(a.TeacherID).release(ref.Day)
}

func (o *OccupancyIndex) load(teacherID string) *teacherLoad {
	l := o.loads[teacherID]
	if l == nil {
		l = &teacherLoad{perDay: make(map[int]int)}
		o.loads[teacherID] = l
	}
	return l
}

func (o *OccupancyIndex) teacherOwner(day, period int, teacherID string) (models.CellRef, bool) {
	ref, ok := o.teachers[slotKey{Day: day, Period: period}][teacherID]
	return ref, ok
}

func (o *OccupancyIndex) roomOwner(day, period int, roomID string) (models.CellRef, bool) {
	ref, ok := o.rooms[slotKey{Day: day, Period: period}][roomID]
	return ref, ok
}

func (o *OccupancyIndex) subjectCount(grid models.GridKey, subjectID string) int {
	return o.subjects[grid][subjectID]
}

func (o *OccupancyIndex) teacherDayLoad(teacherID string, day int) int {
	if l := o.loads[teacherID]; l != nil {
		return l.perDay[day]
	}
	return 0
}

func (o *OccupancyIndex) teacherWeekLoad(teacherID string) int {
	if l := o.loads[teacherID]; l != nil {
		return l.weekly
	}
	return 0
}
