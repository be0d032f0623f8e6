package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/akademia-dev/thesis-review-api/internal/dto"
	"github.com/akademia-dev/thesis-review-api/internal/service"
	"github.com/akademia-dev/thesis-review-api/internal/utils"
)

// PlagiarismHandler exposes the bounded-attempt similarity gate.
type PlagiarismHandler struct {
	service service.PlagiarismService
	logger  zerolog.Logger
}

// NewPlagiarismHandler builds a plagiarism handler instance.
func NewPlagiarismHandler(svc service.PlagiarismService, logger zerolog.Logger) *PlagiarismHandler {
	return &PlagiarismHandler{
		service: svc,
		logger:  logger.With().Str("component", "plagiarism_handler").Logger(),
	}
}

// Register attaches the gate routes to the theses group. The check route is
// additionally rate limited by the router.
func (h *PlagiarismHandler) Register(router fiber.Router, check ...fiber.Handler) {
	handlers := append(append([]fiber.Handler{}, check...), h.check)
	router.Post("/:id/plagiarism", handlers...)
	router.Post("/:id/plagiarism/override", h.override)
}

func (h *PlagiarismHandler) check(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	thesisID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	thesis, err := retryOnConflict(func() (dto.ThesisResponse, error) {
		return h.service.Check(c.UserContext(), principal, thesisID)
	})
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "plagiarism check completed", thesis)
}

func (h *PlagiarismHandler) override(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	thesisID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	thesis, err := h.service.Override(c.UserContext(), principal, thesisID, payload.Reason)
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "plagiarism gate overridden", thesis)
}
