package models

import "time"

// AvailabilityRole tags who declared an availability slot.
type AvailabilityRole string

// Availability slot owners.
const (
	AvailabilityRoleStudent    AvailabilityRole = "STUDENT"
	AvailabilityRoleInstructor AvailabilityRole = "INSTRUCTOR"
)

// AvailabilitySlot is a concrete, non-recurring interval a student or
// instructor declared available. Used only by the auto-matching batch job;
// this is a separate data path from TimeWindow/Application.
type AvailabilitySlot struct {
	ID        string           `db:"id" json:"id"`
	CourseID  string           `db:"course_id" json:"course_id"`
	OwnerID   string           `db:"owner_id" json:"owner_id"`
	Role      AvailabilityRole `db:"role" json:"role"`
	StartAt   time.Time        `db:"start_at" json:"start_at"`
	EndAt     time.Time        `db:"end_at" json:"end_at"`
	Capacity  int              `db:"capacity" json:"capacity"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
