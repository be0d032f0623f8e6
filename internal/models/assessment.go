package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// CriterionKeys is the fixed set of Section I criteria. Every key must carry
// an ordinal level before the rubric counts as complete.
var CriterionKeys = []string{
	"relevance",
	"theory_level",
	"methodology",
	"practical_value",
	"structure",
	"sources",
	"presentation",
	"independence",
}

// OrdinalLevels is the fixed 5-point scale Section I criteria are scored on.
var OrdinalLevels = []string{
	"excellent",
	"good",
	"satisfactory",
	"poor",
	"unacceptable",
}

// MinSectionTwoQuestions is the minimum number of non-blank free-text
// questions Section II requires.
const MinSectionTwoQuestions = 2

// ValidCriterionKey reports whether the key belongs to the fixed Section I
// set.
func ValidCriterionKey(key string) bool {
	for _, candidate := range CriterionKeys {
		if candidate == key {
			return true
		}
	}
	return false
}

// ValidOrdinalLevel reports whether the value sits on the fixed scale.
func ValidOrdinalLevel(level string) bool {
	for _, candidate := range OrdinalLevels {
		if candidate == level {
			return true
		}
	}
	return false
}

// Assessment is the two-section rubric a reviewer fills in. Completeness is
// always derived from the live fields; it is never persisted.
type Assessment struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	ThesisID uint `gorm:"uniqueIndex;not null" json:"thesis_id"`

	// Section I: criterion key -> ordinal level. A key with no entry is
	// unanswered.
	Scores datatypes.JSONMap `gorm:"type:json" json:"scores"`

	// Section II.
	Questions       datatypes.JSON `gorm:"type:json" json:"questions"`
	Advantages      string         `gorm:"type:text" json:"advantages"`
	Disadvantages   string         `gorm:"type:text" json:"disadvantages"`
	FinalAssessment string         `gorm:"type:text" json:"final_assessment"`
	IsComplete      bool           `gorm:"not null;default:false" json:"is_complete"`
	// DegreeWorthy must be explicitly set; nil means the reviewer never
	// answered, which is distinct from an explicit "no".
	DegreeWorthy *bool `json:"degree_worthy"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Score returns the ordinal level recorded for a criterion, if any.
func (a Assessment) Score(key string) (string, bool) {
	if a.Scores == nil {
		return "", false
	}
	raw, ok := a.Scores[key]
	if !ok {
		return "", false
	}
	level, ok := raw.(string)
	if !ok || strings.TrimSpace(level) == "" {
		return "", false
	}
	return level, true
}

// QuestionList decodes the Section II question sequence.
func (a Assessment) QuestionList() []string {
	if len(a.Questions) == 0 {
		return nil
	}
	var questions []string
	if err := json.Unmarshal(a.Questions, &questions); err != nil {
		return nil
	}
	return questions
}

// IsSectionOneComplete reports whether every criterion carries an ordinal
// level.
func (a Assessment) IsSectionOneComplete() bool {
	for _, key := range CriterionKeys {
		if _, ok := a.Score(key); !ok {
			return false
		}
	}
	return true
}

// IsSectionTwoComplete reports whether the commentary section is filled:
// at least MinSectionTwoQuestions non-blank questions, non-blank advantages,
// disadvantages and final assessment, and an explicitly answered
// degree-worthiness.
func (a Assessment) IsSectionTwoComplete() bool {
	return len(a.sectionTwoMissing()) == 0
}

// CanFinalize reports whether a grade may legally be attached to the rubric.
func (a Assessment) CanFinalize(grade *int) bool {
	if !a.IsSectionOneComplete() || !a.IsSectionTwoComplete() {
		return false
	}
	return grade != nil && ValidGrade(*grade)
}

// MissingFields enumerates exactly which rubric fields block finalization so
// the caller can surface them one by one.
func (a Assessment) MissingFields() []string {
	var missing []string
	for _, key := range CriterionKeys {
		if _, ok := a.Score(key); !ok {
			missing = append(missing, "section_one."+key)
		}
	}
	missing = append(missing, a.sectionTwoMissing()...)
	return missing
}

func (a Assessment) sectionTwoMissing() []string {
	var missing []string

	answered := 0
	for _, question := range a.QuestionList() {
		if strings.TrimSpace(question) != "" {
			answered++
		}
	}
	if answered < MinSectionTwoQuestions {
		missing = append(missing, fmt.Sprintf("section_two.questions (have %d, need %d)", answered, MinSectionTwoQuestions))
	}
	if strings.TrimSpace(a.Advantages) == "" {
		missing = append(missing, "section_two.advantages")
	}
	if strings.TrimSpace(a.Disadvantages) == "" {
		missing = append(missing, "section_two.disadvantages")
	}
	if strings.TrimSpace(a.FinalAssessment) == "" {
		missing = append(missing, "section_two.final_assessment")
	}
	if a.DegreeWorthy == nil {
		missing = append(missing, "section_two.degree_worthy")
	}

	return missing
}

// Snapshot serializes the assessment for the append-only iteration history.
func (a Assessment) Snapshot() (datatypes.JSON, error) {
	snapshot := map[string]interface{}{
		"scores":           a.Scores,
		"questions":        a.QuestionList(),
		"advantages":       a.Advantages,
		"disadvantages":    a.Disadvantages,
		"final_assessment": a.FinalAssessment,
		"is_complete":      a.IsComplete,
		"degree_worthy":    a.DegreeWorthy,
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(payload), nil
}
