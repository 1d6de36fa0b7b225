package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/timetable-api/internal/models"
)

// CatalogRepository reads teachers, subjects and rooms of an institution in display order.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

type teacherRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Department     sql.NullString `db:"department"`
	MaxLoadPerDay  int            `db:"max_load_per_day"`
	MaxLoadPerWeek int            `db:"max_load_per_week"`
	Unavailable    types.JSONText `db:"unavailable"`
}

type subjectRow struct {
	ID          string         `db:"id"`
	Code        sql.NullString `db:"code"`
	Name        string         `db:"name"`
	WeeklyQuota sql.NullInt64  `db:"weekly_quota"`
	TeacherID   sql.NullString `db:"teacher_id"`
	Semesters   pq.Int64Array  `db:"semesters"`
	RoomIDs     pq.StringArray `db:"room_ids"`
}

// ListTeachers returns teachers ordered by sort_order, then id.
func (r *CatalogRepository) ListTeachers(ctx context.Context, institutionID string) ([]models.Teacher, error) {
	const query = `SELECT id, name, department, max_load_per_day, max_load_per_week, unavailable
FROM timetable_teachers WHERE institution_id = $1 ORDER BY sort_order ASC, id ASC`
	var rows []teacherRow
	if err := r.db.SelectContext(ctx, &rows, query, institutionID); err != nil {
		return nil, fmt.Errorf("list timetable teachers: %w", err)
	}

	teachers := make([]models.Teacher, 0, len(rows))
	for _, row := range rows {
		teacher := models.Teacher{
			ID:             row.ID,
			Name:           row.Name,
			Department:     row.Department.String,
			MaxLoadPerDay:  row.MaxLoadPerDay,
			MaxLoadPerWeek: row.MaxLoadPerWeek,
		}
		if len(row.Unavailable) > 0 {
			if err := json.Unmarshal(row.Unavailable, &teacher.Unavailable); err != nil {
				return nil, fmt.Errorf("decode unavailable slots of teacher %s: %w", row.ID, err)
			}
		}
		teachers = append(teachers, teacher)
	}
	return teachers, nil
}

// ListSubjects returns subjects ordered by sort_order, then id.
func (r *CatalogRepository) ListSubjects(ctx context.Context, institutionID string) ([]models.Subject, error) {
	const query = `SELECT id, code, name, weekly_quota, teacher_id, semesters, room_ids
FROM timetable_subjects WHERE institution_id = $1 ORDER BY sort_order ASC, id ASC`
	var rows []subjectRow
	if err := r.db.SelectContext(ctx, &rows, query, institutionID); err != nil {
		return nil, fmt.Errorf("list timetable subjects: %w", err)
	}

	subjects := make([]models.Subject, 0, len(rows))
	for _, row := range rows {
		subject := models.Subject{
			ID:        row.ID,
			Code:      row.Code.String,
			Name:      row.Name,
			TeacherID: row.TeacherID.String,
		}
		if row.WeeklyQuota.Valid {
			quota := int(row.WeeklyQuota.Int64)
			subject.WeeklyQuota = &quota
		}
		if len(row.Semesters) > 0 {
			subject.Semesters = toInts(row.Semesters)
		}
		if len(row.RoomIDs) > 0 {
			subject.RoomIDs = []string(row.RoomIDs)
		}
		subjects = append(subjects, subject)
	}
	return subjects, nil
}

// ListRooms returns rooms ordered by sort_order, then id.
func (r *CatalogRepository) ListRooms(ctx context.Context, institutionID string) ([]models.Room, error) {
	const query = `SELECT id, name FROM timetable_rooms WHERE institution_id = $1 ORDER BY sort_order ASC, id ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, institutionID); err != nil {
		return nil, fmt.Errorf("list timetable rooms: %w", err)
	}
	return rooms, nil
}
