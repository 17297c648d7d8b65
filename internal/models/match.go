package models

import "time"

// MatchStatus is the explicit state of a scheduled occurrence.
type MatchStatus string

// Match lifecycle: PROPOSED -> CONFIRMED -> {RESCHEDULED, CANCELLED}.
// Removing the last student deletes the match row instead of introducing an
// "unassigned" state.
const (
	MatchStatusProposed    MatchStatus = "PROPOSED"
	MatchStatusConfirmed   MatchStatus = "CONFIRMED"
	MatchStatusRescheduled MatchStatus = "RESCHEDULED"
	MatchStatusCancelled   MatchStatus = "CANCELLED"
)

// Match is a concrete scheduled occurrence with an instructor and a roster
// of students.
type Match struct {
	ID             string      `db:"id" json:"id"`
	CourseID       string      `db:"course_id" json:"course_id"`
	SlotStartAt    time.Time   `db:"slot_start_at" json:"slot_start_at"`
	SlotEndAt      time.Time   `db:"slot_end_at" json:"slot_end_at"`
	InstructorID   *string     `db:"instructor_id" json:"instructor_id,omitempty"`
	InstructorName string      `db:"instructor_name" json:"instructor_name,omitempty"`
	Status         MatchStatus `db:"status" json:"status"`
	UpdatedBy      string      `db:"updated_by" json:"updated_by"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// MatchStudent joins a student onto a match roster.
type MatchStudent struct {
	ID        string    `db:"id" json:"id"`
	MatchID   string    `db:"match_id" json:"match_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MatchOccupancy reports the current roster size of a match.
type MatchOccupancy struct {
	MatchID string `db:"match_id" json:"match_id"`
	Count   int    `db:"count" json:"count"`
}

// MatchDetail bundles a match with its roster for list endpoints.
type MatchDetail struct {
	Match
	Students []MatchStudent `json:"students"`
}
