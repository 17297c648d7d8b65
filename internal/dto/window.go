package dto

// CreateWindowRequest defines a recurring availability range for a course.
// The range is split into lesson-sized windows before persisting.
type CreateWindowRequest struct {
	DayOfWeek      int     `json:"dayOfWeek" validate:"min=0,max=6"`
	StartTime      string  `json:"startTime" validate:"required"`
	EndTime        string  `json:"endTime" validate:"required"`
	InstructorID   *string `json:"instructorId"`
	InstructorName string  `json:"instructorName"`
	Capacity       *int    `json:"capacity" validate:"omitempty,min=1"`
}
