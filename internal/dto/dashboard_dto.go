package dto

import (
	"time"

	"github.com/akademia-dev/thesis-review-api/internal/models"
)

// ThesisSummary is the compact listing shape for reviewer dashboards.
type ThesisSummary struct {
	ID               uint                `json:"id"`
	Title            string              `json:"title"`
	Status           models.ThesisStatus `json:"status"`
	StudentName      string              `json:"student_name"`
	CurrentIteration int                 `json:"current_iteration"`
	FinalGrade       *int                `json:"final_grade"`
	SubmissionDate   *time.Time          `json:"submission_date"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// ReviewerWorkload is the cached dashboard payload for a reviewer.
type ReviewerWorkload struct {
	ReviewerID uint            `json:"reviewer_id"`
	Assigned   []ThesisSummary `json:"assigned"`
	Completed  []ThesisSummary `json:"completed"`
	CachedAt   time.Time       `json:"cached_at"`
}

// NewThesisSummary converts a thesis into its dashboard listing shape.
func NewThesisSummary(model models.Thesis) ThesisSummary {
	summary := ThesisSummary{
		ID:               model.ID,
		Title:            model.Title,
		Status:           model.Status,
		CurrentIteration: model.CurrentIteration,
		FinalGrade:       model.FinalGrade,
		SubmissionDate:   model.SubmissionDate,
		UpdatedAt:        model.UpdatedAt,
	}
	if model.Student.ID != 0 {
		summary.StudentName = model.Student.Name
	}
	return summary
}

// NewThesisSummarySlice converts thesis models into dashboard summaries.
func NewThesisSummarySlice(theses []models.Thesis) []ThesisSummary {
	summaries := make([]ThesisSummary, 0, len(theses))
	for _, thesis := range theses {
		summaries = append(summaries, NewThesisSummary(thesis))
	}
	return summaries
}
