package models

import "time"

// Student is the student profile referenced by applications and matches.
type Student struct {
	ID        string     `db:"id" json:"id"`
	FullName  string     `db:"full_name" json:"full_name"`
	Email     string     `db:"email" json:"email"`
	Birthdate *time.Time `db:"birthdate" json:"birthdate,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
