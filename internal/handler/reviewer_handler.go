package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/akademia-dev/thesis-review-api/internal/service"
	"github.com/akademia-dev/thesis-review-api/internal/utils"
)

// ReviewerHandler exposes the reviewer workload dashboard.
type ReviewerHandler struct {
	service service.DashboardService
	logger  zerolog.Logger
}

// NewReviewerHandler builds a reviewer dashboard handler instance.
func NewReviewerHandler(svc service.DashboardService, logger zerolog.Logger) *ReviewerHandler {
	return &ReviewerHandler{
		service: svc,
		logger:  logger.With().Str("component", "reviewer_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ReviewerHandler) Register(router fiber.Router) {
	router.Get("/me/assigned", h.assigned)
	router.Get("/me/completed", h.completed)
}

func (h *ReviewerHandler) assigned(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	summaries, err := h.service.GetAssigned(c.UserContext(), principal)
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "assigned theses", summaries)
}

func (h *ReviewerHandler) completed(c *fiber.Ctx) error {
	principal := principalFromContext(c)

	summaries, err := h.service.GetCompleted(c.UserContext(), principal)
	if err != nil {
		return handleWorkflowError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "completed theses", summaries)
}
