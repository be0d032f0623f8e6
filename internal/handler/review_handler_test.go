package handler_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/akademia-dev/thesis-review-api/internal/dto"
	"github.com/akademia-dev/thesis-review-api/internal/models"
)

func completeRubricBody(grade int) map[string]interface{} {
	scores := map[string]string{}
	for _, key := range models.CriterionKeys {
		scores[key] = "good"
	}
	degreeWorthy := true
	body := map[string]interface{}{
		"rubric": map[string]interface{}{
			"scores":           scores,
			"questions":        []string{"How was the sample size chosen?", "Why exclude the 2019 dataset?"},
			"advantages":       "Thorough literature coverage.",
			"disadvantages":    "Evaluation limited to synthetic workloads.",
			"final_assessment": "Solid engineering work with a clear contribution.",
			"is_complete":      true,
			"degree_worthy":    degreeWorthy,
		},
	}
	if grade > 0 {
		body["grade"] = grade
	}
	return body
}

func (h *handlerApp) seedAssignedThesis(t *testing.T) (models.Thesis, models.User) {
	t.Helper()

	student := h.seedUser(t, models.RoleStudent)
	reviewer := h.seedUser(t, models.RoleReviewer)
	thesis := h.seedThesis(t, student, models.StatusAssigned)
	require.NoError(t, h.db.Model(&models.Thesis{}).Where("id = ?", thesis.ID).Update("assigned_reviewer_id", reviewer.ID).Error)
	thesis.AssignedReviewerID = &reviewer.ID
	return thesis, reviewer
}

func TestReviewHandlerDraftMovesToUnderReview(t *testing.T) {
	h := setupHandlerApp(t)
	thesis, reviewer := h.seedAssignedThesis(t)

	resp := h.request(t, "POST", "/api/v1/reviews/"+formatID(thesis.ID)+"/draft", map[string]interface{}{
		"rubric": map[string]interface{}{
			"scores": map[string]string{"relevance": "excellent"},
		},
	}, reviewer)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope thesisEnvelope
	decodeResponse(t, resp, &envelope)
	require.Equal(t, models.StatusUnderReview, envelope.Data.Status)
	require.NotNil(t, envelope.Data.Assessment)
	require.False(t, envelope.Data.Assessment.IsComplete)
}

func TestReviewHandlerSubmitIncompleteListsMissingFields(t *testing.T) {
	h := setupHandlerApp(t)
	thesis, reviewer := h.seedAssignedThesis(t)

	resp := h.request(t, "POST", "/api/v1/reviews/"+formatID(thesis.ID), map[string]interface{}{
		"rubric": map[string]interface{}{
			"scores": map[string]string{"relevance": "good"},
		},
	}, reviewer)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var envelope thesisEnvelope
	decodeResponse(t, resp, &envelope)
	require.False(t, envelope.Success)
	require.Contains(t, envelope.Fields, "section_one.methodology")
	require.Contains(t, envelope.Fields, "grade")
}

func TestReviewHandlerSubmitComplete(t *testing.T) {
	h := setupHandlerApp(t)
	thesis, reviewer := h.seedAssignedThesis(t)

	resp := h.request(t, "POST", "/api/v1/reviews/"+formatID(thesis.ID), completeRubricBody(5), reviewer)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope thesisEnvelope
	decodeResponse(t, resp, &envelope)
	require.Equal(t, models.StatusGradedPendingSignature, envelope.Data.Status)
	require.NotNil(t, envelope.Data.FinalGrade)
	require.Equal(t, 5, *envelope.Data.FinalGrade)
	require.Equal(t, 1, envelope.Data.TotalReviewCount)
}

func TestReviewHandlerForeignReviewerForbidden(t *testing.T) {
	h := setupHandlerApp(t)
	thesis, _ := h.seedAssignedThesis(t)
	other := h.seedUser(t, models.RoleReviewer)

	resp := h.request(t, "POST", "/api/v1/reviews/"+formatID(thesis.ID), completeRubricBody(4), other)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestReviewHandlerRequestRevisions(t *testing.T) {
	h := setupHandlerApp(t)
	thesis, reviewer := h.seedAssignedThesis(t)

	resp := h.request(t, "POST", "/api/v1/reviews/"+formatID(thesis.ID)+"/revisions", map[string]interface{}{
		"comment": "the methodology chapter needs a power analysis",
	}, reviewer)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope thesisEnvelope
	decodeResponse(t, resp, &envelope)
	require.Equal(t, models.StatusRevisionsRequested, envelope.Data.Status)
	require.Equal(t, "the methodology chapter needs a power analysis", envelope.Data.RevisionComment)
}

func TestReviewHandlerRenderDocumentIdempotent(t *testing.T) {
	h := setupHandlerApp(t)
	thesis, reviewer := h.seedAssignedThesis(t)

	resp := h.request(t, "POST", "/api/v1/reviews/"+formatID(thesis.ID), completeRubricBody(4), reviewer)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var first struct {
		Data dto.RenderedDocumentResponse `json:"data"`
	}
	resp = h.request(t, "GET", "/api/v1/reviews/"+formatID(thesis.ID)+"/document", nil, reviewer)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &first)
	require.NotEmpty(t, first.Data.FileURL)
	require.Equal(t, 1, first.Data.Iteration)

	var second struct {
		Data dto.RenderedDocumentResponse `json:"data"`
	}
	resp = h.request(t, "GET", "/api/v1/reviews/"+formatID(thesis.ID)+"/document", nil, reviewer)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &second)
	require.Equal(t, first.Data.FileURL, second.Data.FileURL)
}

func TestReviewHandlerSignedUploadCompletes(t *testing.T) {
	h := setupHandlerApp(t)
	thesis, reviewer := h.seedAssignedThesis(t)

	resp := h.request(t, "POST", "/api/v1/reviews/"+formatID(thesis.ID), completeRubricBody(4), reviewer)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = h.request(t, "GET", "/api/v1/reviews/"+formatID(thesis.ID)+"/document", nil, reviewer)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = h.multipartRequest(t, "POST", "/api/v1/reviews/"+formatID(thesis.ID)+"/signed", nil, "file", "review-signed.pdf", pdfContent(), reviewer)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope thesisEnvelope
	decodeResponse(t, resp, &envelope)
	require.Equal(t, models.StatusEvaluated, envelope.Data.Status)
	require.NotEmpty(t, envelope.Data.SignedReviewURL)
	require.NotEmpty(t, envelope.Data.UnsignedReviewURL)
}

func TestReviewHandlerSignedUploadWithoutRenderConflicts(t *testing.T) {
	h := setupHandlerApp(t)
	thesis, reviewer := h.seedAssignedThesis(t)

	resp := h.request(t, "POST", "/api/v1/reviews/"+formatID(thesis.ID), completeRubricBody(4), reviewer)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = h.multipartRequest(t, "POST", "/api/v1/reviews/"+formatID(thesis.ID)+"/signed", nil, "file", "review-signed.pdf", pdfContent(), reviewer)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}
