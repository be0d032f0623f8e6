package models

import (
	"strings"
	"time"
)

// ThesisStatus enumerates the states of the review workflow.
type ThesisStatus string

const (
	// StatusSubmitted is the only initial state.
	StatusSubmitted ThesisStatus = "submitted"
	// StatusWithConsultant and StatusWithSupervisor form the extended
	// topology between submission and reviewer assignment.
	StatusWithConsultant ThesisStatus = "with_consultant"
	StatusWithSupervisor ThesisStatus = "with_supervisor"
	// StatusAssigned means a reviewer owns the thesis but has not started
	// the rubric yet.
	StatusAssigned ThesisStatus = "assigned"
	// StatusUnderReview means the reviewer has opened or drafted the rubric.
	StatusUnderReview ThesisStatus = "under_review"
	// StatusRevisionsRequested is the recoverable kick-back state; the
	// thesis re-enters the pipeline once the student resubmits.
	StatusRevisionsRequested ThesisStatus = "revisions_requested"
	// StatusGradedPendingSignature means a grade exists but the signed
	// review document has not been uploaded yet.
	StatusGradedPendingSignature ThesisStatus = "graded_pending_signature"
	// StatusEvaluated is the fully-terminal state; only an explicit
	// re-review reopens it.
	StatusEvaluated ThesisStatus = "evaluated"
)

// ParseThesisStatus normalizes a raw status string.
func ParseThesisStatus(raw string) (ThesisStatus, bool) {
	status := ThesisStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", false
	}
	return status, true
}

// Valid reports whether the status belongs to the closed set.
func (s ThesisStatus) Valid() bool {
	switch s {
	case StatusSubmitted, StatusWithConsultant, StatusWithSupervisor,
		StatusAssigned, StatusUnderReview, StatusRevisionsRequested,
		StatusGradedPendingSignature, StatusEvaluated:
		return true
	}
	return false
}

func (s ThesisStatus) String() string {
	return string(s)
}

// Terminal reports whether the status admits no transitions other than an
// explicit re-review.
func (s ThesisStatus) Terminal() bool {
	return s == StatusEvaluated
}

// transitions is the closed adjacency table of the state machine. Guards
// live in the services; this table only rules out structurally impossible
// moves so no call site can invent one.
var transitions = map[ThesisStatus][]ThesisStatus{
	StatusSubmitted:              {StatusWithConsultant, StatusAssigned},
	StatusWithConsultant:         {StatusWithSupervisor, StatusRevisionsRequested},
	StatusWithSupervisor:         {StatusAssigned, StatusRevisionsRequested},
	StatusAssigned:               {StatusUnderReview, StatusGradedPendingSignature, StatusRevisionsRequested},
	StatusUnderReview:            {StatusGradedPendingSignature, StatusRevisionsRequested},
	StatusRevisionsRequested:     {StatusWithConsultant, StatusWithSupervisor, StatusAssigned, StatusUnderReview},
	StatusGradedPendingSignature: {StatusEvaluated, StatusAssigned},
	StatusEvaluated:              {StatusAssigned},
}

// CanTransition reports whether the state machine permits moving from s to
// the target status.
func (s ThesisStatus) CanTransition(to ThesisStatus) bool {
	for _, candidate := range transitions[s] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Plagiarism gate constants. The threshold and attempt bound are business
// rules, not tunables per thesis.
const (
	MaxPlagiarismAttempts    = 3
	SimilarityThresholdScore = 15.0
)

// Grade bounds of the fixed 5-point ordinal scale.
const (
	GradeMin = 1
	GradeMax = 5
)

// ValidGrade reports whether the grade sits on the ordinal scale.
func ValidGrade(grade int) bool {
	return grade >= GradeMin && grade <= GradeMax
}

// Thesis is the central aggregate of the review workflow. It is created on
// first submission, mutated in place across revision cycles and logically
// terminal once evaluated with a signed document attached.
type Thesis struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	StudentID      uint         `gorm:"uniqueIndex;not null" json:"student_id"`
	Title          string       `gorm:"size:512;not null" json:"title"`
	FileURL        string       `gorm:"size:512" json:"file_url"`
	SubmissionDate *time.Time   `json:"submission_date"`
	Status         ThesisStatus `gorm:"size:40;not null" json:"status"`

	// Assignment slots, written exclusively by the assignment ledger.
	AssignedReviewerID   *uint `json:"assigned_reviewer_id"`
	AssignedConsultantID *uint `json:"assigned_consultant_id"`
	AssignedSupervisorID *uint `json:"assigned_supervisor_id"`

	Assessment *Assessment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assessment"`
	FinalGrade *int        `json:"final_grade"`
	GradedAt   *time.Time  `json:"graded_at"`
	GradedBy   *uint       `json:"graded_by"`

	// Plagiarism gate record, embedded so the attempt counter shares the
	// thesis row's atomic update discipline.
	PlagiarismChecked   bool     `gorm:"not null;default:false" json:"plagiarism_checked"`
	SimilarityScore     *float64 `json:"similarity_score"`
	PlagiarismAttempts  int      `gorm:"not null;default:0" json:"plagiarism_attempts"`
	PlagiarismReportURL string   `gorm:"size:512" json:"plagiarism_report_url"`
	PlagiarismOverride  bool     `gorm:"not null;default:false" json:"plagiarism_override"`

	// Signing pipeline artifacts. The unsigned document stays retrievable
	// after signing; the signed one is what students are served.
	UnsignedReviewURL string `gorm:"size:512" json:"unsigned_review_url"`
	SignedReviewURL   string `gorm:"size:512" json:"signed_review_url"`
	ArtifactIteration int    `gorm:"not null;default:0" json:"artifact_iteration"`

	CurrentIteration int `gorm:"not null;default:1" json:"current_iteration"`
	TotalReviewCount int `gorm:"not null;default:0" json:"total_review_count"`

	// RevisionComment carries the latest requested-changes text and
	// ReturnStatus the state the thesis re-enters after resubmission.
	RevisionComment string       `gorm:"type:text" json:"revision_comment"`
	ReturnStatus    ThesisStatus `gorm:"size:40" json:"return_status"`

	ReviewIterations []ReviewIteration `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"review_iterations"`

	Student User `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlagiarismApproved is derived, never stored: approval either comes from a
// score at or below the threshold or from an explicit administrative
// override after the attempt budget was spent.
func (t Thesis) PlagiarismApproved() bool {
	if t.PlagiarismOverride {
		return true
	}
	return t.PlagiarismChecked && t.SimilarityScore != nil && *t.SimilarityScore <= SimilarityThresholdScore
}

// PlagiarismAttemptsRemaining returns how many gate calls the student has
// left.
func (t Thesis) PlagiarismAttemptsRemaining() int {
	remaining := MaxPlagiarismAttempts - t.PlagiarismAttempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PlagiarismExhausted reports whether the bounded attempt budget is spent
// without approval.
func (t Thesis) PlagiarismExhausted() bool {
	return t.PlagiarismAttempts >= MaxPlagiarismAttempts && !t.PlagiarismApproved()
}

// HasFile reports whether a document has been uploaded for the current
// iteration.
func (t Thesis) HasFile() bool {
	return strings.TrimSpace(t.FileURL) != ""
}

// SlotOccupant returns the principal bound to the given slot, if any.
func (t Thesis) SlotOccupant(slot RoleSlot) *uint {
	switch slot {
	case SlotConsultant:
		return t.AssignedConsultantID
	case SlotSupervisor:
		return t.AssignedSupervisorID
	default:
		return t.AssignedReviewerID
	}
}
