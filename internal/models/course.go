package models

import "time"

// Course represents a bookable course taught in fixed-duration lessons.
type Course struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Capacity        int       `db:"capacity" json:"capacity"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
