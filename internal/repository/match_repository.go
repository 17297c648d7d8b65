package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aozora-juku/lesson-match-api/internal/models"
)

// MatchRepository persists matches and their student rosters.
type MatchRepository struct {
	db *sqlx.DB
}

// NewMatchRepository constructs the repository.
func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a match row. Runs inside the caller's transaction when exec
// is provided.
func (r *MatchRepository) Create(ctx context.Context, exec sqlx.ExtContext, match *models.Match) error {
	if match.ID == "" {
		match.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if match.CreatedAt.IsZero() {
		match.CreatedAt = now
	}
	match.UpdatedAt = now

	const query = `INSERT INTO matches (id, course_id, slot_start_at, slot_end_at, instructor_id, instructor_name, status, updated_by, created_at, updated_at)
VALUES (:id, :course_id, :slot_start_at, :slot_end_at, :instructor_id, :instructor_name, :status, :updated_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, match); err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

// FindByID returns a match by its ID.
func (r *MatchRepository) FindByID(ctx context.Context, id string) (*models.Match, error) {
	const query = `SELECT id, course_id, slot_start_at, slot_end_at, instructor_id, instructor_name, status, updated_by, created_at, updated_at
FROM matches WHERE id = $1`
	var match models.Match
	if err := r.db.GetContext(ctx, &match, query, id); err != nil {
		return nil, err
	}
	return &match, nil
}

// FindByIDForUpdate loads a match with a row lock inside a transaction, so
// concurrent roster edits serialize on the match row.
func (r *MatchRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Match, error) {
	const query = `SELECT id, course_id, slot_start_at, slot_end_at, instructor_id, instructor_name, status, updated_by, created_at, updated_at
FROM matches WHERE id = $1 FOR UPDATE`
	var match models.Match
	if err := tx.GetContext(ctx, &match, query, id); err != nil {
		return nil, err
	}
	return &match, nil
}

// FindBySlot looks up a match keyed on (course, instructor, start, end).
// The auto-matcher relies on this for idempotent match creation.
func (r *MatchRepository) FindBySlot(ctx context.Context, courseID string, instructorID *string, startAt, endAt time.Time) (*models.Match, error) {
	const query = `SELECT id, course_id, slot_start_at, slot_end_at, instructor_id, instructor_name, status, updated_by, created_at, updated_at
FROM matches WHERE course_id = $1 AND instructor_id IS NOT DISTINCT FROM $2 AND slot_start_at = $3 AND slot_end_at = $4 LIMIT 1`
	var match models.Match
	if err := r.db.GetContext(ctx, &match, query, courseID, instructorID, startAt, endAt); err != nil {
		return nil, err
	}
	return &match, nil
}

// ListByCourse returns matches for a course ordered by slot start.
func (r *MatchRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Match, error) {
	const query = `SELECT id, course_id, slot_start_at, slot_end_at, instructor_id, instructor_name, status, updated_by, created_at, updated_at
FROM matches WHERE course_id = $1 ORDER BY slot_start_at ASC`
	var matches []models.Match
	if err := r.db.SelectContext(ctx, &matches, query, courseID); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return matches, nil
}

// UpdateTime moves a match to a new slot.
func (r *MatchRepository) UpdateTime(ctx context.Context, id string, startAt, endAt time.Time, updatedBy string) error {
	const query = `UPDATE matches SET slot_start_at = $2, slot_end_at = $3, updated_by = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, startAt, endAt, updatedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("update match time: %w", err)
	}
	return nil
}

// Delete removes a match; match_students rows cascade.
func (r *MatchRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM matches WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	return nil
}

// AddStudent appends a student to the roster.
func (r *MatchRepository) AddStudent(ctx context.Context, exec sqlx.ExtContext, matchID, studentID string) error {
	const query = `INSERT INTO match_students (id, match_id, student_id, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.exec(exec).ExecContext(ctx, query, uuid.NewString(), matchID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add match student: %w", err)
	}
	return nil
}

// RemoveStudent drops a student from the roster.
func (r *MatchRepository) RemoveStudent(ctx context.Context, exec sqlx.ExtContext, matchID, studentID string) error {
	const query = `DELETE FROM match_students WHERE match_id = $1 AND student_id = $2`
	if _, err := r.exec(exec).ExecContext(ctx, query, matchID, studentID); err != nil {
		return fmt.Errorf("remove match student: %w", err)
	}
	return nil
}

// ListStudents returns the roster for a match.
func (r *MatchRepository) ListStudents(ctx context.Context, matchID string) ([]models.MatchStudent, error) {
	const query = `SELECT id, match_id, student_id, created_at FROM match_students WHERE match_id = $1 ORDER BY created_at ASC`
	var students []models.MatchStudent
	if err := r.db.SelectContext(ctx, &students, query, matchID); err != nil {
		return nil, fmt.Errorf("list match students: %w", err)
	}
	return students, nil
}

// CountStudents returns the current roster size, inside the caller's
// transaction when exec is provided.
func (r *MatchRepository) CountStudents(ctx context.Context, exec sqlx.ExtContext, matchID string) (int, error) {
	const query = `SELECT COUNT(*) FROM match_students WHERE match_id = $1`
	var count int
	row := r.exec(exec).QueryRowxContext(ctx, query, matchID)
	if err := row.Scan(&count); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("count match students: %w", err)
	}
	return count, nil
}

// OccupancyByCourse returns roster sizes for all of a course's matches.
func (r *MatchRepository) OccupancyByCourse(ctx context.Context, courseID string) ([]models.MatchOccupancy, error) {
	const query = `SELECT m.id AS match_id, COUNT(ms.id) AS count
FROM matches m
LEFT JOIN match_students ms ON ms.match_id = m.id
WHERE m.course_id = $1
GROUP BY m.id`
	var occupancy []models.MatchOccupancy
	if err := r.db.SelectContext(ctx, &occupancy, query, courseID); err != nil {
		return nil, fmt.Errorf("load match occupancy: %w", err)
	}
	return occupancy, nil
}
