package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aozora-juku/lesson-match-api/internal/models"
)

// WindowRepository persists recurring availability windows.
type WindowRepository struct {
	db *sqlx.DB
}

// NewWindowRepository constructs the repository.
func NewWindowRepository(db *sqlx.DB) *WindowRepository {
	return &WindowRepository{db: db}
}

// CreateBatch inserts one row per slot produced by range splitting.
func (r *WindowRepository) CreateBatch(ctx context.Context, windows []models.TimeWindow) error {
	if len(windows) == 0 {
		return nil
	}
	now := time.Now().UTC()

	const query = `INSERT INTO time_windows (id, course_id, day_of_week, start_time, end_time, instructor_id, instructor_name, capacity, created_at)
VALUES (:id, :course_id, :day_of_week, :start_time, :end_time, :instructor_id, :instructor_name, :capacity, :created_at)`

	for i := range windows {
		w := &windows[i]
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		if _, err := r.db.NamedExecContext(ctx, query, w); err != nil {
			return fmt.Errorf("create time window: %w", err)
		}
	}
	return nil
}

// FindByID returns a window by its ID.
func (r *WindowRepository) FindByID(ctx context.Context, id string) (*models.TimeWindow, error) {
	const query = `SELECT id, course_id, day_of_week, start_time, end_time, instructor_id, instructor_name, capacity, created_at
FROM time_windows WHERE id = $1`
	var window models.TimeWindow
	if err := r.db.GetContext(ctx, &window, query, id); err != nil {
		return nil, err
	}
	return &window, nil
}

// ListByCourse returns a course's windows ordered by day and start time.
func (r *WindowRepository) ListByCourse(ctx context.Context, courseID string) ([]models.TimeWindow, error) {
	const query = `SELECT id, course_id, day_of_week, start_time, end_time, instructor_id, instructor_name, capacity, created_at
FROM time_windows WHERE course_id = $1 ORDER BY day_of_week ASC, start_time ASC`
	var windows []models.TimeWindow
	if err := r.db.SelectContext(ctx, &windows, query, courseID); err != nil {
		return nil, fmt.Errorf("list time windows: %w", err)
	}
	return windows, nil
}

// Delete removes a window. Historical applications keep their dangling
// window_id on purpose.
func (r *WindowRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM time_windows WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete time window: %w", err)
	}
	return nil
}
