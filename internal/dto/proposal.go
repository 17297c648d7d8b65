package dto

import "time"

// Proposal generation modes.
const (
	ProposalModePopular = "popular"
	ProposalModeGeneral = "general"
)

// ProposalStudent identifies a candidate placed into a proposal.
type ProposalStudent struct {
	StudentID     string `json:"studentId"`
	ApplicationID string `json:"applicationId"`
}

// Proposal is one unpersisted candidate match for admin review.
type Proposal struct {
	WindowID       string            `json:"windowId"`
	SlotStartAt    time.Time         `json:"slotStartAt"`
	SlotEndAt      time.Time         `json:"slotEndAt"`
	InstructorID   *string           `json:"instructorId,omitempty"`
	InstructorName string            `json:"instructorName,omitempty"`
	Capacity       int               `json:"capacity"`
	Students       []ProposalStudent `json:"students"`
}

// ProposalSet is the result of one generation pass. Nothing is persisted;
// admins edit and confirm proposals separately.
type ProposalSet struct {
	CourseID    string         `json:"courseId"`
	Mode        string         `json:"mode"`
	MaxDemand   int            `json:"maxDemand"`
	Demand      map[string]int `json:"demand"`
	Proposals   []Proposal     `json:"proposals"`
	GeneratedAt time.Time      `json:"generatedAt"`
}
