package dto

// TimeRequest is a free-form day/time range a student asks for when no
// existing window fits.
type TimeRequest struct {
	DayOfWeek int    `json:"dayOfWeek" validate:"min=0,max=6"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

// ApplyRequest creates (or re-activates) a course application with the
// student's selected windows and optional free-form requests.
type ApplyRequest struct {
	WindowIDs    []string      `json:"windowIds"`
	TimeRequests []TimeRequest `json:"timeRequests" validate:"omitempty,dive"`
}
