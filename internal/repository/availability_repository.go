package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/aozora-juku/lesson-match-api/internal/models"
)

// AvailabilityRepository reads declared availability slots for the
// auto-matching batch job.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListByCourseRole returns all slots for a course declared by the given
// role, ordered by start time.
func (r *AvailabilityRepository) ListByCourseRole(ctx context.Context, courseID string, role models.AvailabilityRole) ([]models.AvailabilitySlot, error) {
	const query = `SELECT id, course_id, owner_id, role, start_at, end_at, capacity, created_at
FROM availability_slots WHERE course_id = $1 AND role = $2 ORDER BY start_at ASC`
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, courseID, role); err != nil {
		return nil, fmt.Errorf("list availability slots: %w", err)
	}
	return slots, nil
}
