package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/timetable-api/internal/models"
)

// StructureRepository reads per-institution timetable shapes.
type StructureRepository struct {
	db *sqlx.DB
}

// NewStructureRepository constructs the repository.
func NewStructureRepository(db *sqlx.DB) *StructureRepository {
	return &StructureRepository{db: db}
}

type structureRow struct {
	SemesterCount       int            `db:"semester_count"`
	SectionsPerSemester pq.Int64Array  `db:"sections_per_semester"`
	DayCount            int            `db:"day_count"`
	PeriodCount         int            `db:"period_count"`
	Breaks              types.JSONText `db:"breaks_per_semester"`
}

// Get returns the stored structure of an institution. The error wraps sql.ErrNoRows when none is stored.
func (r *StructureRepository) Get(ctx context.Context, institutionID string) (*models.Structure, error) {
	const query = `SELECT semester_count, sections_per_semester, day_count, period_count, breaks_per_semester
FROM timetable_structures WHERE institution_id = $1`
	var row structureRow
	if err := r.db.GetContext(ctx, &row, query, institutionID); err != nil {
		return nil, fmt.Errorf("get timetable structure: %w", err)
	}

	structure := &models.Structure{
		SemesterCount:       row.SemesterCount,
		SectionsPerSemester: toInts(row.SectionsPerSemester),
		DayCount:            row.DayCount,
		PeriodCount:         row.PeriodCount,
	}
	if len(row.Breaks) > 0 {
		if err := json.Unmarshal(row.Breaks, &structure.BreaksPerSemester); err != nil {
			return nil, fmt.Errorf("decode breaks_per_semester: %w", err)
		}
	}
	return structure, nil
}

func toInts(values pq.Int64Array) []int {
	result := make([]int, len(values))
	for i, v := range values {
		result[i] = int(v)
	}
	return result
}
