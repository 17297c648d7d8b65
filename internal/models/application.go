package models

import "time"

// ApplicationStatus represents the lifecycle of a course application.
type ApplicationStatus string

// Possible application statuses.
const (
	ApplicationStatusPending   ApplicationStatus = "PENDING"
	ApplicationStatusMatched   ApplicationStatus = "MATCHED"
	ApplicationStatusCancelled ApplicationStatus = "CANCELLED"
)

// Application is a student's request to join a course. At most one
// non-cancelled application exists per (course, student); re-applying after a
// cancellation re-activates the cancelled row.
type Application struct {
	ID        string            `db:"id" json:"id"`
	CourseID  string            `db:"course_id" json:"course_id"`
	StudentID string            `db:"student_id" json:"student_id"`
	Status    ApplicationStatus `db:"status" json:"status"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationTimeChoice links an application to a recurring window the
// student selected. A deleted window leaves a dangling window_id on purpose;
// callers render those as "deleted time".
type ApplicationTimeChoice struct {
	ID            string `db:"id" json:"id"`
	ApplicationID string `db:"application_id" json:"application_id"`
	WindowID      string `db:"window_id" json:"window_id"`
}

// ApplicationTimeRequest is a free-form day/time range requested when no
// existing window fits.
type ApplicationTimeRequest struct {
	ID            string `db:"id" json:"id"`
	ApplicationID string `db:"application_id" json:"application_id"`
	DayOfWeek     int    `db:"day_of_week" json:"day_of_week"`
	StartTime     string `db:"start_time" json:"start_time"`
	EndTime       string `db:"end_time" json:"end_time"`
}

// ApplicationCandidate enriches a pending application with the student data
// the proposal engine sorts on.
type ApplicationCandidate struct {
	ID        string     `db:"id" json:"id"`
	CourseID  string     `db:"course_id" json:"course_id"`
	StudentID string     `db:"student_id" json:"student_id"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Birthdate *time.Time `db:"birthdate" json:"birthdate,omitempty"`
}
