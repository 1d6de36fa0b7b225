package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

func intPtr(v int) *int { return &v }

func TestNewCatalogValidatesReferences(t *testing.T) {
	teachers := []Teacher{{ID: "T1", Name: "Ada"}}
	rooms := []Room{{ID: "R1", Name: "Lab"}}

	_, err := NewCatalog(teachers, []Subject{{ID: "S1", Name: "Math", TeacherID: "T9"}}, rooms)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = NewCatalog(teachers, []Subject{{ID: "S1", Name: "Math", RoomIDs: []string{"R9"}}}, rooms)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = NewCatalog(append(teachers, Teacher{ID: "T1"}), nil, rooms)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = NewCatalog(teachers, nil, []Room{{ID: " "}})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = NewCatalog(teachers, []Subject{{ID: "S1", WeeklyQuota: intPtr(-1)}}, rooms)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCatalogLookups(t *testing.T) {
	catalog, err := NewCatalog(
		[]Teacher{{ID: "T1", Name: "Ada Lovelace"}},
		[]Subject{{ID: "S1", Code: "CS101", Name: "Programming", TeacherID: "T1"}},
		[]Room{{ID: "R1", Name: "Lab 1"}},
	)
	require.NoError(t, err)

	teacher, ok := catalog.FindTeacher("ada lovelace")
	require.True(t, ok)
	assert.Equal(t, "T1", teacher.ID)

	subject, ok := catalog.FindSubject("cs101")
	require.True(t, ok)
	assert.Equal(t, "S1", subject.ID)
	subject, ok = catalog.FindSubject("Programming")
	require.True(t, ok)
	assert.Equal(t, "S1", subject.ID)

	room, ok := catalog.FindRoom("Lab 1")
	require.True(t, ok)
	assert.Equal(t, "R1", room.ID)

	_, ok = catalog.FindSubject("Biology")
	assert.False(t, ok)
}

func TestSubjectHelpers(t *testing.T) {
	s := Subject{ID: "S1", WeeklyQuota: intPtr(2), Semesters: []int{0, 2}}
	assert.True(t, s.OfferedIn(2))
	assert.False(t, s.OfferedIn(1))
	assert.False(t, s.QuotaMet(1))
	assert.True(t, s.QuotaMet(2))
	assert.False(t, Subject{}.QuotaMet(100))
}

func TestCatalogFingerprint(t *testing.T) {
	teachers := []Teacher{{ID: "T1", Name: "Ada"}}
	subjects := []Subject{{ID: "S1", Name: "Math"}}

	a, err := NewCatalog(teachers, subjects, nil)
	require.NoError(t, err)
	b, err := NewCatalog(teachers, []Subject{{ID: "S1", Name: "Math"}}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, a.Fingerprint())
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	quota, err := NewCatalog(teachers, []Subject{{ID: "S1", Name: "Math", WeeklyQuota: intPtr(1)}}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), quota.Fingerprint())
}
