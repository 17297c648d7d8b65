package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/aozora-juku/lesson-match-api/internal/models"
)

// StudentRepository reads student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, full_name, email, birthdate, created_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListEmailsByIDs returns the email addresses for the given students.
func (r *StudentRepository) ListEmailsByIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT email FROM students WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build student email query: %w", err)
	}
	query = r.db.Rebind(query)
	var emails []string
	if err := r.db.SelectContext(ctx, &emails, query, args...); err != nil {
		return nil, fmt.Errorf("list student emails: %w", err)
	}
	return emails, nil
}
