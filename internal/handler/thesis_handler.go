package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/akademia-dev/thesis-review-api/internal/dto"
	"github.com/akademia-dev/thesis-review-api/internal/service"
	"github.com/akademia-dev/thesis-review-api/internal/utils"
)

// ThesisHandler manages thesis submission endpoints.
type ThesisHandler struct {
	service service.ThesisService
	logger  zerolog.Logger
}

// NewThesisHandler builds a thesis handler instance.
func NewThesisHandler(svc service.ThesisService, logger zerolog.Logger) *ThesisHandler {
	return &ThesisHandler{
		service: svc,
		logger:  logger.With().Str("component", "thesis_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ThesisHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
	router.Post("/topic", h.submitTopic)
	router.Post("/:id/resubmit", h.resubmit)
	router.Get("/:id", h.get)
}

func (h *ThesisHandler) submit(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	title := c.FormValue("title")
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	thesis, err := h.service.SubmitThesis(c.UserContext(), principal, title, file)
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "thesis submitted", thesis)
}

func (h *ThesisHandler) submitTopic(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	var payload dto.SubmitTopicRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	thesis, err := h.service.SubmitTopic(c.UserContext(), principal, payload)
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "thesis topic submitted", thesis)
}

func (h *ThesisHandler) resubmit(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	thesisID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	thesis, err := retryOnConflict(func() (dto.ThesisResponse, error) {
		return h.service.Resubmit(c.UserContext(), principal, thesisID, file)
	})
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "thesis resubmitted", thesis)
}

func (h *ThesisHandler) get(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	thesisID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	thesis, err := h.service.Get(c.UserContext(), principal, thesisID)
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "thesis retrieved", thesis)
}
