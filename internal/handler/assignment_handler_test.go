package handler_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/akademia-dev/thesis-review-api/internal/models"
)

func TestAssignmentHandlerAssignReviewer(t *testing.T) {
	h := setupHandlerApp(t)
	admin := h.seedUser(t, models.RoleAdmin)
	student := h.seedUser(t, models.RoleStudent)
	reviewer := h.seedUser(t, models.RoleReviewer)
	thesis := h.seedThesis(t, student, models.StatusSubmitted)

	resp := h.request(t, "POST", "/api/v1/assignments", map[string]interface{}{
		"thesis_id": thesis.ID,
		"role_slot": "reviewer",
		"user_id":   reviewer.ID,
	}, admin)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var envelope thesisEnvelope
	decodeResponse(t, resp, &envelope)
	require.Equal(t, models.StatusAssigned, envelope.Data.Status)
	require.NotNil(t, envelope.Data.AssignedReviewerID)
	require.Equal(t, reviewer.ID, *envelope.Data.AssignedReviewerID)
}

func TestAssignmentHandlerOccupiedSlotConflicts(t *testing.T) {
	h := setupHandlerApp(t)
	admin := h.seedUser(t, models.RoleAdmin)
	student := h.seedUser(t, models.RoleStudent)
	first := h.seedUser(t, models.RoleReviewer)
	second := h.seedUser(t, models.RoleReviewer)
	thesis := h.seedThesis(t, student, models.StatusSubmitted)

	resp := h.request(t, "POST", "/api/v1/assignments", map[string]interface{}{
		"thesis_id": thesis.ID,
		"role_slot": "reviewer",
		"user_id":   first.ID,
	}, admin)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = h.request(t, "POST", "/api/v1/assignments", map[string]interface{}{
		"thesis_id": thesis.ID,
		"role_slot": "reviewer",
		"user_id":   second.ID,
	}, admin)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestAssignmentHandlerAdmitsDepartmentLeadership(t *testing.T) {
	h := setupHandlerApp(t)
	head := h.seedUser(t, models.RoleHeadOfDepartment)
	dean := h.seedUser(t, models.RoleDean)
	student := h.seedUser(t, models.RoleStudent)
	consultant := h.seedUser(t, models.RoleConsultant)
	supervisor := h.seedUser(t, models.RoleSupervisor)
	thesis := h.seedThesis(t, student, models.StatusSubmitted)

	resp := h.request(t, "POST", "/api/v1/assignments", map[string]interface{}{
		"thesis_id": thesis.ID,
		"role_slot": "consultant",
		"user_id":   consultant.ID,
	}, head)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = h.request(t, "POST", "/api/v1/assignments", map[string]interface{}{
		"thesis_id": thesis.ID,
		"role_slot": "supervisor",
		"user_id":   supervisor.ID,
	}, dean)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestAssignmentHandlerRequiresAdmin(t *testing.T) {
	h := setupHandlerApp(t)
	student := h.seedUser(t, models.RoleStudent)
	reviewer := h.seedUser(t, models.RoleReviewer)
	thesis := h.seedThesis(t, student, models.StatusSubmitted)

	resp := h.request(t, "POST", "/api/v1/assignments", map[string]interface{}{
		"thesis_id": thesis.ID,
		"role_slot": "reviewer",
		"user_id":   reviewer.ID,
	}, reviewer)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestAssignmentHandlerReassign(t *testing.T) {
	h := setupHandlerApp(t)
	admin := h.seedUser(t, models.RoleAdmin)
	student := h.seedUser(t, models.RoleStudent)
	first := h.seedUser(t, models.RoleReviewer)
	second := h.seedUser(t, models.RoleReviewer)
	thesis := h.seedThesis(t, student, models.StatusSubmitted)

	resp := h.request(t, "POST", "/api/v1/assignments", map[string]interface{}{
		"thesis_id": thesis.ID,
		"role_slot": "reviewer",
		"user_id":   first.ID,
	}, admin)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = h.request(t, "PUT", "/api/v1/assignments", map[string]interface{}{
		"thesis_id": thesis.ID,
		"role_slot": "reviewer",
		"user_id":   second.ID,
	}, admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope thesisEnvelope
	decodeResponse(t, resp, &envelope)
	require.Equal(t, models.StatusAssigned, envelope.Data.Status)
	require.Equal(t, second.ID, *envelope.Data.AssignedReviewerID)
}
