package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/akademia-dev/thesis-review-api/internal/models"
)

// SubmitTopicRequest registers a thesis topic before any document exists.
type SubmitTopicRequest struct {
	Title string `json:"title" form:"title" validate:"required,min=8,max=512"`
}

// ThesisResponse is the snapshot returned by every operation that touches a
// thesis.
type ThesisResponse struct {
	ID             uint                `json:"id"`
	StudentID      uint                `json:"student_id"`
	Title          string              `json:"title"`
	FileURL        string              `json:"file_url"`
	SubmissionDate *time.Time          `json:"submission_date"`
	Status         models.ThesisStatus `json:"status"`

	AssignedReviewerID   *uint `json:"assigned_reviewer_id"`
	AssignedConsultantID *uint `json:"assigned_consultant_id"`
	AssignedSupervisorID *uint `json:"assigned_supervisor_id"`

	Assessment *AssessmentResponse `json:"assessment,omitempty"`
	FinalGrade *int                `json:"final_grade"`
	GradedAt   *time.Time          `json:"graded_at"`

	Plagiarism PlagiarismResponse `json:"plagiarism"`

	UnsignedReviewURL string `json:"unsigned_review_url,omitempty"`
	SignedReviewURL   string `json:"signed_review_url,omitempty"`

	CurrentIteration int    `json:"current_iteration"`
	TotalReviewCount int    `json:"total_review_count"`
	RevisionComment  string `json:"revision_comment,omitempty"`

	ReviewIterations []ReviewIterationResponse `json:"review_iterations,omitempty"`

	Student *UserLite `json:"student,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlagiarismResponse summarizes the gate state for a thesis.
type PlagiarismResponse struct {
	IsChecked         bool     `json:"is_checked"`
	SimilarityScore   *float64 `json:"similarity_score"`
	Attempts          int      `json:"attempts"`
	MaxAttempts       int      `json:"max_attempts"`
	AttemptsRemaining int      `json:"attempts_remaining"`
	IsApproved        bool     `json:"is_approved"`
	ReportURL         string   `json:"report_url,omitempty"`
	AdminOverride     bool     `json:"admin_override,omitempty"`
}

// AssessmentResponse serializes the live rubric together with its derived
// completeness flags.
type AssessmentResponse struct {
	Scores             map[string]interface{} `json:"scores"`
	Questions          []string               `json:"questions"`
	Advantages         string                 `json:"advantages"`
	Disadvantages      string                 `json:"disadvantages"`
	FinalAssessment    string                 `json:"final_assessment"`
	IsComplete         bool                   `json:"is_complete"`
	DegreeWorthy       *bool                  `json:"degree_worthy"`
	SectionOneComplete bool                   `json:"section_one_complete"`
	SectionTwoComplete bool                   `json:"section_two_complete"`
	MissingFields      []string               `json:"missing_fields,omitempty"`
}

// ReviewIterationResponse serializes one history snapshot.
type ReviewIterationResponse struct {
	Iteration         int            `json:"iteration"`
	Snapshot          datatypes.JSON `json:"snapshot"`
	FinalGrade        *int           `json:"final_grade"`
	UnsignedReviewURL string         `json:"unsigned_review_url,omitempty"`
	SignedReviewURL   string         `json:"signed_review_url,omitempty"`
	Reason            string         `json:"reason"`
	CreatedAt         time.Time      `json:"created_at"`
}

// UserLite summarizes a principal without exposing full profile data.
type UserLite struct {
	ID   uint        `json:"id"`
	Name string      `json:"name"`
	Role models.Role `json:"role"`
}

// NewThesisResponse converts a Thesis model into a DTO.
func NewThesisResponse(model models.Thesis) ThesisResponse {
	response := ThesisResponse{
		ID:                   model.ID,
		StudentID:            model.StudentID,
		Title:                model.Title,
		FileURL:              model.FileURL,
		SubmissionDate:       model.SubmissionDate,
		Status:               model.Status,
		AssignedReviewerID:   model.AssignedReviewerID,
		AssignedConsultantID: model.AssignedConsultantID,
		AssignedSupervisorID: model.AssignedSupervisorID,
		FinalGrade:           model.FinalGrade,
		GradedAt:             model.GradedAt,
		UnsignedReviewURL:    model.UnsignedReviewURL,
		SignedReviewURL:      model.SignedReviewURL,
		CurrentIteration:     model.CurrentIteration,
		TotalReviewCount:     model.TotalReviewCount,
		RevisionComment:      model.RevisionComment,
		CreatedAt:            model.CreatedAt,
		UpdatedAt:            model.UpdatedAt,
		Plagiarism: PlagiarismResponse{
			IsChecked:         model.PlagiarismChecked,
			SimilarityScore:   model.SimilarityScore,
			Attempts:          model.PlagiarismAttempts,
			MaxAttempts:       models.MaxPlagiarismAttempts,
			AttemptsRemaining: model.PlagiarismAttemptsRemaining(),
			IsApproved:        model.PlagiarismApproved(),
			ReportURL:         model.PlagiarismReportURL,
			AdminOverride:     model.PlagiarismOverride,
		},
	}

	if model.Assessment != nil {
		response.Assessment = NewAssessmentResponse(*model.Assessment)
	}

	if model.Student.ID != 0 {
		response.Student = &UserLite{
			ID:   model.Student.ID,
			Name: model.Student.Name,
			Role: model.Student.Role,
		}
	}

	if len(model.ReviewIterations) > 0 {
		iterations := make([]ReviewIterationResponse, 0, len(model.ReviewIterations))
		for _, iteration := range model.ReviewIterations {
			iterations = append(iterations, ReviewIterationResponse{
				Iteration:         iteration.Iteration,
				Snapshot:          iteration.Snapshot,
				FinalGrade:        iteration.FinalGrade,
				UnsignedReviewURL: iteration.UnsignedReviewURL,
				SignedReviewURL:   iteration.SignedReviewURL,
				Reason:            iteration.Reason,
				CreatedAt:         iteration.CreatedAt,
			})
		}
		response.ReviewIterations = iterations
	}

	return response
}

// NewAssessmentResponse converts an Assessment model into a DTO, computing
// the derived completeness flags at serialization time.
func NewAssessmentResponse(model models.Assessment) *AssessmentResponse {
	return &AssessmentResponse{
		Scores:             model.Scores,
		Questions:          model.QuestionList(),
		Advantages:         model.Advantages,
		Disadvantages:      model.Disadvantages,
		FinalAssessment:    model.FinalAssessment,
		IsComplete:         model.IsComplete,
		DegreeWorthy:       model.DegreeWorthy,
		SectionOneComplete: model.IsSectionOneComplete(),
		SectionTwoComplete: model.IsSectionTwoComplete(),
		MissingFields:      model.MissingFields(),
	}
}

// NewThesisResponseSlice converts thesis models into DTOs.
func NewThesisResponseSlice(theses []models.Thesis) []ThesisResponse {
	responses := make([]ThesisResponse, 0, len(theses))
	for _, thesis := range theses {
		responses = append(responses, NewThesisResponse(thesis))
	}
	return responses
}
