package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/akademia-dev/thesis-review-api/internal/dto"
	"github.com/akademia-dev/thesis-review-api/internal/service"
	"github.com/akademia-dev/thesis-review-api/internal/utils"
)

// AssignmentHandler exposes the staffing endpoints for admins.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler builds an assignment handler instance.
func NewAssignmentHandler(svc service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: svc,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *AssignmentHandler) Register(router fiber.Router) {
	router.Post("/", h.assign)
	router.Put("/", h.reassign)
}

func (h *AssignmentHandler) assign(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	var payload dto.AssignRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	thesis, err := retryOnConflict(func() (dto.ThesisResponse, error) {
		return h.service.Assign(c.UserContext(), principal, payload)
	})
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "slot assigned", thesis)
}

func (h *AssignmentHandler) reassign(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	var payload dto.AssignRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	thesis, err := retryOnConflict(func() (dto.ThesisResponse, error) {
		return h.service.Reassign(c.UserContext(), principal, payload)
	})
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "slot reassigned", thesis)
}
