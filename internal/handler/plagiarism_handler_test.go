package handler_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/akademia-dev/thesis-review-api/internal/models"
)

func TestPlagiarismHandlerCheckApproves(t *testing.T) {
	h := setupHandlerApp(t)
	student := h.seedUser(t, models.RoleStudent)
	thesis := h.seedThesis(t, student, models.StatusSubmitted)

	resp := h.request(t, "POST", "/api/v1/theses/"+formatID(thesis.ID)+"/plagiarism", nil, student)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope thesisEnvelope
	decodeResponse(t, resp, &envelope)
	require.True(t, envelope.Data.Plagiarism.IsChecked)
	require.True(t, envelope.Data.Plagiarism.IsApproved)
	require.Equal(t, 1, envelope.Data.Plagiarism.Attempts)
	require.Equal(t, 2, envelope.Data.Plagiarism.AttemptsRemaining)
}

func TestPlagiarismHandlerExhaustionReturnsTooManyRequests(t *testing.T) {
	h := setupHandlerApp(t)
	student := h.seedUser(t, models.RoleStudent)
	thesis := h.seedThesis(t, student, models.StatusSubmitted)
	h.oracle.score = 87.5

	path := "/api/v1/theses/" + formatID(thesis.ID) + "/plagiarism"
	for i := 0; i < 3; i++ {
		resp := h.request(t, "POST", path, nil, student)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp := h.request(t, "POST", path, nil, student)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestPlagiarismHandlerForeignCallerForbidden(t *testing.T) {
	h := setupHandlerApp(t)
	owner := h.seedUser(t, models.RoleStudent)
	stranger := h.seedUser(t, models.RoleStudent)
	thesis := h.seedThesis(t, owner, models.StatusSubmitted)

	resp := h.request(t, "POST", "/api/v1/theses/"+formatID(thesis.ID)+"/plagiarism", nil, stranger)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestPlagiarismHandlerOverride(t *testing.T) {
	h := setupHandlerApp(t)
	student := h.seedUser(t, models.RoleStudent)
	admin := h.seedUser(t, models.RoleAdmin)
	thesis := h.seedThesis(t, student, models.StatusSubmitted)
	require.NoError(t, h.db.Model(&models.Thesis{}).Where("id = ?", thesis.ID).Updates(map[string]interface{}{
		"plagiarism_checked":  true,
		"plagiarism_attempts": 3,
		"similarity_score":    87.5,
	}).Error)

	resp := h.request(t, "POST", "/api/v1/theses/"+formatID(thesis.ID)+"/plagiarism/override", map[string]interface{}{
		"reason": "sources verified manually against the department archive",
	}, admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope thesisEnvelope
	decodeResponse(t, resp, &envelope)
	require.True(t, envelope.Data.Plagiarism.AdminOverride)
	require.True(t, envelope.Data.Plagiarism.IsApproved)
}

func TestPlagiarismHandlerOverrideRequiresPrivilege(t *testing.T) {
	h := setupHandlerApp(t)
	student := h.seedUser(t, models.RoleStudent)
	thesis := h.seedThesis(t, student, models.StatusSubmitted)

	resp := h.request(t, "POST", "/api/v1/theses/"+formatID(thesis.ID)+"/plagiarism/override", map[string]interface{}{
		"reason": "please just approve it",
	}, student)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
