package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// Slot addresses a (day, period) pair shared by every grid.
type Slot struct {
	Day    int `json:"day"`
	Period int `json:"period"`
}

// Teacher is a catalog teacher with optional load limits.
type Teacher struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Department     string `json:"department,omitempty"`
	MaxLoadPerDay  int    `json:"maxLoadPerDay,omitempty"`
	MaxLoadPerWeek int    `json:"maxLoadPerWeek,omitempty"`
	Unavailable    []Slot `json:"unavailable,omitempty"`
}

// Subject is a catalog course. WeeklyQuota nil means unlimited.
type Subject struct {
	ID          string   `json:"id"`
	Code        string   `json:"code,omitempty"`
	Name        string   `json:"name"`
	WeeklyQuota *int     `json:"weeklyQuota,omitempty"`
	TeacherID   string   `json:"teacherId,omitempty"`
	Semesters   []int    `json:"semesters,omitempty"`
	RoomIDs     []string `json:"roomIds,omitempty"`
}

// OfferedIn reports whether the subject may be placed in semester.
func (s Subject) OfferedIn(semester int) bool {
	if len(s.Semesters) == 0 {
		return true
	}
	for _, sem := range s.Semesters {
		if sem == semester {
			return true
		}
	}
	return false
}

// QuotaMet reports whether count placements already satisfy the quota.
func (s Subject) QuotaMet(count int) bool {
	return s.WeeklyQuota != nil && count >= *s.WeeklyQuota
}

// Room is a catalog room.
type Room struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Catalog is the validated, read-only set of teachers, subjects and rooms.
// Listing order is the order supplied to NewCatalog.
type Catalog struct {
	teachers []Teacher
	subjects []Subject
	rooms    []Room

	teacherIdx map[string]int
	subjectIdx map[string]int
	roomIdx    map[string]int

	fingerprint string
}

// NewCatalog validates ids and cross references.
func NewCatalog(teachers []Teacher, subjects []Subject, rooms []Room) (*Catalog, error) {
	c := &Catalog{
		teachers:   teachers,
		subjects:   subjects,
		rooms:      rooms,
		teacherIdx: make(map[string]int, len(teachers)),
		subjectIdx: make(map[string]int, len(subjects)),
		roomIdx:    make(map[string]int, len(rooms)),
	}
	for i, t := range teachers {
		if err := addID(c.teacherIdx, "teacher", t.ID, i); err != nil {
			return nil, err
		}
		if t.MaxLoadPerDay < 0 || t.MaxLoadPerWeek < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher %s has a negative load limit", t.ID))
		}
	}
	for i, r := range rooms {
		if err := addID(c.roomIdx, "room", r.ID, i); err != nil {
			return nil, err
		}
	}
	for i, s := range subjects {
		if err := addID(c.subjectIdx, "subject", s.ID, i); err != nil {
			return nil, err
		}
		if s.WeeklyQuota != nil && *s.WeeklyQuota < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %s has a negative weekly quota", s.ID))
		}
		if s.TeacherID != "" {
			if _, ok := c.teacherIdx[s.TeacherID]; !ok {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s references unknown teacher %s", s.ID, s.TeacherID))
			}
		}
		for _, roomID := range s.RoomIDs {
			if _, ok := c.roomIdx[roomID]; !ok {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s references unknown room %s", s.ID, roomID))
			}
		}
	}
	raw, err := json.Marshal(struct {
		Teachers []Teacher `json:"t"`
		Subjects []Subject `json:"s"`
		Rooms    []Room    `json:"r"`
	}{teachers, subjects, rooms})
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	c.fingerprint = hex.EncodeToString(sum[:])
	return c, nil
}

// Fingerprint identifies the catalog content. Two catalogs with the same entries in the same order
// share a fingerprint.
func (c *Catalog) Fingerprint() string { return c.fingerprint }

func addID(index map[string]int, kind, id string, pos int) error {
	if strings.TrimSpace(id) == "" {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s at position %d has an empty id", kind, pos))
	}
	if _, dup := index[id]; dup {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate %s id %s", kind, id))
	}
	index[id] = pos
	return nil
}

// Teachers returns teachers in catalog order.
func (c *Catalog) Teachers() []Teacher { return c.teachers }

// Subjects returns subjects in catalog order.
func (c *Catalog) Subjects() []Subject { return c.subjects }

// Rooms returns rooms in catalog order.
func (c *Catalog) Rooms() []Room { return c.rooms }

// Teacher looks up a teacher by id.
func (c *Catalog) Teacher(id string) (Teacher, bool) {
	i, ok := c.teacherIdx[id]
	if !ok {
		return Teacher{}, false
	}
	return c.teachers[i], true
}

// Subject looks up a subject by id.
func (c *Catalog) Subject(id string) (Subject, bool) {
	i, ok := c.subjectIdx[id]
	if !ok {
		return Subject{}, false
	}
	return c.subjects[i], true
}

// Room looks up a room by id.
func (c *Catalog) Room(id string) (Room, bool) {
	i, ok := c.roomIdx[id]
	if !ok {
		return Room{}, false
	}
	return c.rooms[i], true
}

// FindTeacher resolves ref by id, then by case-insensitive name.
func (c *Catalog) FindTeacher(ref string) (Teacher, bool) {
	if t, ok := c.Teacher(ref); ok {
		return t, true
	}
	for _, t := range c.teachers {
		if strings.EqualFold(t.Name, ref) {
			return t, true
		}
	}
	return Teacher{}, false
}

// FindSubject resolves ref by id, then code, then case-insensitive name.
func (c *Catalog) FindSubject(ref string) (Subject, bool) {
	if s, ok := c.Subject(ref); ok {
		return s, true
	}
	for _, s := range c.subjects {
		if s.Code != "" && strings.EqualFold(s.Code, ref) {
			return s, true
		}
	}
	for _, s := range c.subjects {
		if strings.EqualFold(s.Name, ref) {
			return s, true
		}
	}
	return Subject{}, false
}

// FindRoom resolves ref by id, then case-insensitive name.
func (c *Catalog) FindRoom(ref string) (Room, bool) {
	if r, ok := c.Room(ref); ok {
		return r, true
	}
	for _, r := range c.rooms {
		if strings.EqualFold(r.Name, ref) {
			return r, true
		}
	}
	return Room{}, false
}
