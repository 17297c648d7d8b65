package models

import "time"

// TimeWindow is a recurring weekly availability slot for a course. Admin
// input ranges are split into lesson-sized rows on save, so a stored window
// is exactly one bookable slot (save for the two almost-full-range
// exceptions handled by the timeslot package).
type TimeWindow struct {
	ID             string    `db:"id" json:"id"`
	CourseID       string    `db:"course_id" json:"course_id"`
	DayOfWeek      int       `db:"day_of_week" json:"day_of_week"` // 0 = Sunday
	StartTime      string    `db:"start_time" json:"start_time"`   // "HH:MM"
	EndTime        string    `db:"end_time" json:"end_time"`
	InstructorID   *string   `db:"instructor_id" json:"instructor_id,omitempty"`
	InstructorName string    `db:"instructor_name" json:"instructor_name,omitempty"`
	Capacity       *int      `db:"capacity" json:"capacity,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// EffectiveCapacity resolves the window capacity, falling back to the course
// capacity when the window does not override it.
func (w TimeWindow) EffectiveCapacity(course *Course) int {
	if w.Capacity != nil && *w.Capacity > 0 {
		return *w.Capacity
	}
	if course != nil {
		return course.Capacity
	}
	return 0
}

// SlotInstant is a concrete future occurrence of a recurring window.
type SlotInstant struct {
	WindowID string    `json:"window_id"`
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
}
