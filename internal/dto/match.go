package dto

import "time"

// ConfirmMatchRequest commits an admin-reviewed proposal as a match.
type ConfirmMatchRequest struct {
	SlotStartAt    time.Time `json:"slotStartAt" validate:"required"`
	SlotEndAt      time.Time `json:"slotEndAt" validate:"required"`
	InstructorID   *string   `json:"instructorId"`
	InstructorName string    `json:"instructorName"`
	StudentIDs     []string  `json:"studentIds" validate:"required,min=1,dive,required"`
}

// AddMatchStudentRequest appends a student to an existing match.
type AddMatchStudentRequest struct {
	StudentID string `json:"studentId" validate:"required"`
}

// UpdateMatchTimeRequest moves a still-proposed match to a new slot.
type UpdateMatchTimeRequest struct {
	SlotStartAt time.Time `json:"slotStartAt" validate:"required"`
	SlotEndAt   time.Time `json:"slotEndAt" validate:"required"`
}
