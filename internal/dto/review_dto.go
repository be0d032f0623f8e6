package dto

// RubricPayload carries the two-section rubric as submitted by a reviewer.
// Scores maps the fixed criterion keys onto the 5-point ordinal scale;
// unanswered criteria are simply absent.
type RubricPayload struct {
	Scores          map[string]string `json:"scores" validate:"omitempty,dive,keys,min=1,endkeys,min=1"`
	Questions       []string          `json:"questions"`
	Advantages      string            `json:"advantages"`
	Disadvantages   string            `json:"disadvantages"`
	FinalAssessment string            `json:"final_assessment"`
	IsComplete      bool              `json:"is_complete"`
	DegreeWorthy    *bool             `json:"degree_worthy"`
}

// SaveDraftRequest stores rubric progress without finalizing. Drafts never
// require completeness.
type SaveDraftRequest struct {
	Rubric RubricPayload `json:"rubric" validate:"required"`
}

// SubmitReviewRequest finalizes the rubric with a grade on the 5-point
// scale. The guard set in the service enforces completeness; the validator
// only rejects structurally impossible payloads.
type SubmitReviewRequest struct {
	Rubric RubricPayload `json:"rubric" validate:"required"`
	Grade  int           `json:"grade" validate:"required,gte=1,lte=5"`
}

// RequestRevisionsRequest kicks a thesis back to the student. The comment is
// mandatory: the student has to know what to fix.
type RequestRevisionsRequest struct {
	Comment string `json:"comment" validate:"required,min=10"`
}

// RenderedDocumentResponse points at the unsigned review document for the
// current iteration.
type RenderedDocumentResponse struct {
	ThesisID  uint   `json:"thesis_id"`
	Iteration int    `json:"iteration"`
	FileURL   string `json:"file_url"`
}
