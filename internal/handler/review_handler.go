package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/akademia-dev/thesis-review-api/internal/dto"
	"github.com/akademia-dev/thesis-review-api/internal/service"
	"github.com/akademia-dev/thesis-review-api/internal/utils"
)

// ReviewHandler manages the rubric, grading and signing endpoints.
type ReviewHandler struct {
	service service.ReviewService
	logger  zerolog.Logger
}

// NewReviewHandler builds a review handler instance.
func NewReviewHandler(svc service.ReviewService, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ReviewHandler) Register(router fiber.Router) {
	router.Post("/:thesisId/draft", h.saveDraft)
	router.Post("/:thesisId/revisions", h.requestRevisions)
	router.Post("/:thesisId/re-review", h.reReview)
	router.Get("/:thesisId/document", h.renderDocument)
	router.Post("/:thesisId/signed", h.uploadSigned)
	router.Post("/:thesisId", h.submit)
}

func (h *ReviewHandler) saveDraft(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	thesisID, err := parseUintParam(c, "thesisId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SaveDraftRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	thesis, err := retryOnConflict(func() (dto.ThesisResponse, error) {
		return h.service.SaveDraft(c.UserContext(), principal, thesisID, payload)
	})
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "rubric draft saved", thesis)
}

func (h *ReviewHandler) submit(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	thesisID, err := parseUintParam(c, "thesisId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmitReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	thesis, err := retryOnConflict(func() (dto.ThesisResponse, error) {
		return h.service.Submit(c.UserContext(), principal, thesisID, payload)
	})
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "review submitted", thesis)
}

func (h *ReviewHandler) requestRevisions(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	thesisID, err := parseUintParam(c, "thesisId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.RequestRevisionsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	thesis, err := retryOnConflict(func() (dto.ThesisResponse, error) {
		return h.service.RequestRevisions(c.UserContext(), principal, thesisID, payload)
	})
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "revisions requested", thesis)
}

func (h *ReviewHandler) reReview(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	thesisID, err := parseUintParam(c, "thesisId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	thesis, err := retryOnConflict(func() (dto.ThesisResponse, error) {
		return h.service.ReReview(c.UserContext(), principal, thesisID)
	})
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "thesis reopened for review", thesis)
}

func (h *ReviewHandler) renderDocument(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	thesisID, err := parseUintParam(c, "thesisId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	document, err := h.service.RenderDocument(c.UserContext(), principal, thesisID)
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "review document ready", document)
}

func (h *ReviewHandler) uploadSigned(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	thesisID, err := parseUintParam(c, "thesisId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	thesis, err := retryOnConflict(func() (dto.ThesisResponse, error) {
		return h.service.UploadSigned(c.UserContext(), principal, thesisID, file)
	})
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "signed review stored", thesis)
}
