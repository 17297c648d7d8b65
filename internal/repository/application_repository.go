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

// ApplicationRepository persists applications and their time selections.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	const query = `SELECT id, course_id, student_id, status, created_at, updated_at FROM applications WHERE id = $1`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// FindByCourseStudent returns the most recent application for the pair,
// regardless of status. Used to detect duplicates and re-activate cancelled
// rows.
func (r *ApplicationRepository) FindByCourseStudent(ctx context.Context, courseID, studentID string) (*models.Application, error) {
	const query = `SELECT id, course_id, student_id, status, created_at, updated_at
FROM applications WHERE course_id = $1 AND student_id = $2 ORDER BY created_at DESC LIMIT 1`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, courseID, studentID); err != nil {
		return nil, err
	}
	return &app, nil
}

// Create persists a new application.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	if app.Status == "" {
		app.Status = models.ApplicationStatusPending
	}
	const query = `INSERT INTO applications (id, course_id, student_id, status, created_at, updated_at)
VALUES (:id, :course_id, :student_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// UpdateStatus flips a single application's status.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ApplicationStatus) error {
	const query = `UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	return nil
}

// UpdateStatusForStudents flips status for all of a course's applications
// belonging to the given students. Runs inside the caller's transaction when
// exec is provided.
func (r *ApplicationRepository) UpdateStatusForStudents(ctx context.Context, exec sqlx.ExtContext, courseID string, studentIDs []string, status models.ApplicationStatus) error {
	if len(studentIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		`UPDATE applications SET status = ?, updated_at = ? WHERE course_id = ? AND student_id IN (?) AND status <> ?`,
		status, time.Now().UTC(), courseID, studentIDs, models.ApplicationStatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("build application status update: %w", err)
	}
	target := r.exec(exec)
	query = target.Rebind(query)
	if _, err := target.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update application statuses: %w", err)
	}
	return nil
}

// ListPendingByCourse returns pending applications joined with the student
// data the proposal engine sorts on, ordered by creation time.
func (r *ApplicationRepository) ListPendingByCourse(ctx context.Context, courseID string) ([]models.ApplicationCandidate, error) {
	const query = `SELECT a.id, a.course_id, a.student_id, a.created_at, s.birthdate
FROM applications a
LEFT JOIN students s ON s.id = a.student_id
WHERE a.course_id = $1 AND a.status = $2
ORDER BY a.created_at ASC`
	var apps []models.ApplicationCandidate
	if err := r.db.SelectContext(ctx, &apps, query, courseID, models.ApplicationStatusPending); err != nil {
		return nil, fmt.Errorf("list pending applications: %w", err)
	}
	return apps, nil
}

// ListCreatedBetween returns a course's applications created within the
// range, ordered by creation time. Used by the auto-matching batch.
func (r *ApplicationRepository) ListCreatedBetween(ctx context.Context, courseID string, from, to time.Time) ([]models.Application, error) {
	const query = `SELECT id, course_id, student_id, status, created_at, updated_at
FROM applications WHERE course_id = $1 AND created_at >= $2 AND created_at <= $3 ORDER BY created_at ASC`
	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, courseID, from, to); err != nil {
		return nil, fmt.Errorf("list applications by range: %w", err)
	}
	return apps, nil
}

// ReplaceChoices swaps an application's selected windows. Duplicate window
// ids are collapsed before insert.
func (r *ApplicationRepository) ReplaceChoices(ctx context.Context, applicationID string, windowIDs []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM application_time_choices WHERE application_id = $1`, applicationID); err != nil {
		return fmt.Errorf("clear application choices: %w", err)
	}

	seen := make(map[string]struct{}, len(windowIDs))
	const query = `INSERT INTO application_time_choices (id, application_id, window_id) VALUES ($1, $2, $3)`
	for _, windowID := range windowIDs {
		if _, dup := seen[windowID]; dup {
			continue
		}
		seen[windowID] = struct{}{}
		if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), applicationID, windowID); err != nil {
			return fmt.Errorf("insert application choice: %w", err)
		}
	}
	return nil
}

// ReplaceTimeRequests swaps an application's free-form time requests.
func (r *ApplicationRepository) ReplaceTimeRequests(ctx context.Context, applicationID string, requests []models.ApplicationTimeRequest) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM application_time_requests WHERE application_id = $1`, applicationID); err != nil {
		return fmt.Errorf("clear application time requests: %w", err)
	}

	const query = `INSERT INTO application_time_requests (id, application_id, day_of_week, start_time, end_time)
VALUES (:id, :application_id, :day_of_week, :start_time, :end_time)`
	for i := range requests {
		req := &requests[i]
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		req.ApplicationID = applicationID
		if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
			return fmt.Errorf("insert application time request: %w", err)
		}
	}
	return nil
}

// ListChoicesByApplications returns window selections for a set of
// applications.
func (r *ApplicationRepository) ListChoicesByApplications(ctx context.Context, applicationIDs []string) ([]models.ApplicationTimeChoice, error) {
	if len(applicationIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, application_id, window_id FROM application_time_choices WHERE application_id IN (?)`, applicationIDs)
	if err != nil {
		return nil, fmt.Errorf("build choices query: %w", err)
	}
	query = r.db.Rebind(query)
	var choices []models.ApplicationTimeChoice
	if err := r.db.SelectContext(ctx, &choices, query, args...); err != nil {
		return nil, fmt.Errorf("list application choices: %w", err)
	}
	return choices, nil
}

// HasActive reports whether a non-cancelled application exists for the pair.
func (r *ApplicationRepository) HasActive(ctx context.Context, courseID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM applications WHERE course_id = $1 AND student_id = $2 AND status <> $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, courseID, studentID, models.ApplicationStatusCancelled); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active application: %w", err)
	}
	return true, nil
}
