package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

// TimetableRepository persists grid contents and their revision markers.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// ListCells returns every stored assigned cell of an institution in grid order.
func (r *TimetableRepository) ListCells(ctx context.Context, institutionID string) ([]models.StoredCell, error) {
	const query = `SELECT institution_id, semester, section, day, period, teacher_id, subject_id, room_id
FROM timetable_cells WHERE institution_id = $1 ORDER BY semester ASC, section ASC, day ASC, period ASC`
	var cells []models.StoredCell
	if err := r.db.SelectContext(ctx, &cells, query, institutionID); err != nil {
		return nil, fmt.Errorf("list timetable cells: %w", err)
	}
	return cells, nil
}

// MaxRevision returns the highest persisted grid revision of an institution, or 0.
func (r *TimetableRepository) MaxRevision(ctx context.Context, institutionID string) (int64, error) {
	const query = `SELECT COALESCE(MAX(revision), 0) FROM timetable_grids WHERE institution_id = $1`
	var revision int64
	if err := r.db.GetContext(ctx, &revision, query, institutionID); err != nil {
		return 0, fmt.Errorf("get timetable revision: %w", err)
	}
	return revision, nil
}

// SaveGrids overwrites the stored cells of each grid in one transaction. A grid whose stored
// revision is not older than the snapshot's is skipped. It returns the number of grids written.
func (r *TimetableRepository) SaveGrids(ctx context.Context, institutionID string, grids []models.GridSnapshot) (int, error) {
	if len(grids) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin timetable tx: %w", err)
	}

	const bumpRevision = `INSERT INTO timetable_grids (institution_id, semester, section, revision, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (institution_id, semester, section) DO UPDATE
SET revision = EXCLUDED.revision, updated_at = EXCLUDED.updated_at
WHERE timetable_grids.revision < EXCLUDED.revision
RETURNING revision`
	const deleteCells = `DELETE FROM timetable_cells WHERE institution_id = $1 AND semester = $2 AND section = $3`
	const insertCells = `INSERT INTO timetable_cells (institution_id, semester, section, day, period, teacher_id, subject_id, room_id)
VALUES (:institution_id, :semester, :section, :day, :period, :teacher_id, :subject_id, :room_id)`

	now := time.Now().UTC()
	applied := 0
	for _, grid := range grids {
		var revision int64
		err := tx.QueryRowxContext(ctx, bumpRevision, institutionID, grid.Semester, grid.Section, grid.Revision, now).Scan(&revision)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("bump grid revision: %w", err)
		}
		if _, err := tx.ExecContext(ctx, deleteCells, institutionID, grid.Semester, grid.Section); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("clear grid cells: %w", err)
		}
		if len(grid.Cells) > 0 {
			cells := make([]models.StoredCell, len(grid.Cells))
			for i, cell := range grid.Cells {
				cell.InstitutionID = institutionID
				cells[i] = cell
			}
			if _, err := tx.NamedExecContext(ctx, insertCells, cells); err != nil {
				_ = tx.Rollback()
				return 0, fmt.Errorf("insert grid cells: %w", err)
			}
		}
		applied++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit timetable tx: %w", err)
	}
	return applied, nil
}
