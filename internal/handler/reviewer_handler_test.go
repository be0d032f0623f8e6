package handler_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/akademia-dev/thesis-review-api/internal/dto"
	"github.com/akademia-dev/thesis-review-api/internal/models"
)

type summaryEnvelope struct {
	Success bool               `json:"success"`
	Data    []dto.ThesisSummary `json:"data"`
}

func TestReviewerHandlerAssignedWorkload(t *testing.T) {
	h := setupHandlerApp(t)
	thesis, reviewer := h.seedAssignedThesis(t)

	resp := h.request(t, "GET", "/api/v1/reviewers/me/assigned", nil, reviewer)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope summaryEnvelope
	decodeResponse(t, resp, &envelope)
	require.Len(t, envelope.Data, 1)
	require.Equal(t, thesis.ID, envelope.Data[0].ID)

	resp = h.request(t, "GET", "/api/v1/reviewers/me/completed", nil, reviewer)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	decodeResponse(t, resp, &envelope)
	require.Empty(t, envelope.Data)
}

func TestReviewerHandlerRequiresReviewerRole(t *testing.T) {
	h := setupHandlerApp(t)
	student := h.seedUser(t, models.RoleStudent)

	resp := h.request(t, "GET", "/api/v1/reviewers/me/assigned", nil, student)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
