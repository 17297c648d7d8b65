package dto

import "time"

// AutoMatchRequest bounds the batch run to applications created in [from, to].
type AutoMatchRequest struct {
	From time.Time `json:"from" validate:"required"`
	To   time.Time `json:"to" validate:"required"`
}

// AutoMatchResult aggregates a batch run.
type AutoMatchResult struct {
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
}
