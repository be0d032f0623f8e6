package models

import (
	"time"

	"gorm.io/datatypes"
)

// Reasons a snapshot was appended to the iteration history.
const (
	IterationReasonReReview = "re_review"
	IterationReasonResubmit = "resubmitted"
)

// ReviewIteration is one append-only snapshot of a past review pass. Rows
// are created when a thesis cycles back through review and are never
// mutated afterwards.
type ReviewIteration struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	ThesisID          uint           `gorm:"not null;index" json:"thesis_id"`
	Iteration         int            `gorm:"not null" json:"iteration"`
	Snapshot          datatypes.JSON `gorm:"type:json" json:"snapshot"`
	FinalGrade        *int           `json:"final_grade"`
	UnsignedReviewURL string         `gorm:"size:512" json:"unsigned_review_url"`
	SignedReviewURL   string         `gorm:"size:512" json:"signed_review_url"`
	Reason            string         `gorm:"size:32;not null" json:"reason"`
	CreatedAt         time.Time      `json:"created_at"`
}
