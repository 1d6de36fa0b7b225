package dto

import "github.com/noah-isme/timetable-api/internal/models"

// PeriodDetails is one assigned cell on the wire: [teacherName, subjectName, roomName].
type PeriodDetails [3]string

// DaySchedule lists one day's periods; nil entries are empty or break cells.
type DaySchedule []*PeriodDetails

// TimeTable is one grid: [day][period].
type TimeTable []DaySchedule

// FullTimeTable is every grid: [semester][section][day][period].
type FullTimeTable [][]TimeTable

// SaveTimetableRequest replaces the content of one (semester, section) grid.
type SaveTimetableRequest struct {
	Semester  *int      `json:"semester" validate:"required,min=0"`
	Section   *int      `json:"section" validate:"required,min=0"`
	Timetable TimeTable `json:"timetable" validate:"required"`
}

// SaveTimetableResponse echoes the committed grid.
type SaveTimetableResponse struct {
	Semester  int       `json:"semester"`
	Section   int       `json:"section"`
	Timetable TimeTable `json:"timetable"`
}

// EditCellRequest places, replaces or clears a single cell.
// TeacherID, SubjectID and RoomID accept an id, code or display name.
type EditCellRequest struct {
	Semester  *int   `json:"semester" validate:"required,min=0"`
	Section   *int   `json:"section" validate:"required,min=0"`
	Day       *int   `json:"day" validate:"required,min=0"`
	Period    *int   `json:"period" validate:"required,min=0"`
	TeacherID string `json:"teacherId" validate:"max=128"`
	SubjectID string `json:"subjectId" validate:"required_without=Clear,max=128"`
	RoomID    string `json:"roomId" validate:"max=128"`
	Clear     bool   `json:"clear"`
}

// Ref converts the request coordinates into a cell reference. Call after validation.
func (r EditCellRequest) Ref() models.CellRef {
	return models.CellRef{Semester: *r.Semester, Section: *r.Section, Day: *r.Day, Period: *r.Period}
}

// EditCellResponse returns the committed cell.
type EditCellResponse struct {
	Cell models.CellRef `json:"cell"`
	Data *PeriodDetails `json:"data"`
}

// GenerateTimetableRequest runs auto-fill. Reset discards every existing assignment first.
type GenerateTimetableRequest struct {
	Reset bool `json:"reset"`
}

// GenerateTimetableResponse returns the filled timetable and the cells left empty.
type GenerateTimetableResponse struct {
	Timetable  FullTimeTable    `json:"timetable"`
	Unresolved []models.CellRef `json:"unresolved"`
	Placed     int              `json:"placed"`
}

// SubjectDetail is the legend entry of one course.
type SubjectDetail struct {
	SubjectName string   `json:"subjectName"`
	TeacherName string   `json:"teacherName"`
	RoomCodes   []string `json:"roomCodes"`
}

// SubjectDetails is keyed by course code, or id when the course has no code.
type SubjectDetails map[string]SubjectDetail
