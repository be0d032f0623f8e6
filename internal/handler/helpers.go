package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/akademia-dev/thesis-review-api/internal/dto"
	"github.com/akademia-dev/thesis-review-api/internal/middleware"
	"github.com/akademia-dev/thesis-review-api/internal/models"
	"github.com/akademia-dev/thesis-review-api/internal/service"
	"github.com/akademia-dev/thesis-review-api/internal/utils"
)

func principalFromContext(c *fiber.Ctx) service.Principal {
	principal := service.Principal{}
	if v := c.Locals("user_id"); v != nil {
		switch id := v.(type) {
		case uint:
			principal.ID = id
		case int:
			if id > 0 {
				principal.ID = uint(id)
			}
		}
	}
	if v := c.Locals("user_role"); v != nil {
		if raw, ok := v.(string); ok {
			if role, ok := models.ParseRole(raw); ok {
				principal.Role = role
			}
		}
	}
	return principal
}

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	raw := strings.TrimSpace(c.Params(key))
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return uint(parsed), nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// retryOnConflict re-runs a mutating operation exactly once after a lost
// compare-and-swap; the retry re-reads current state inside the service, so
// a still-valid transition goes through without bothering the caller.
func retryOnConflict(fn func() (dto.ThesisResponse, error)) (dto.ThesisResponse, error) {
	resp, err := fn()
	var conflict *service.ConflictError
	if errors.As(err, &conflict) {
		return fn()
	}
	return resp, err
}

// handleWorkflowError maps the service error taxonomy onto HTTP statuses.
// Guard failures carry their field list into the envelope.
func handleWorkflowError(c *fiber.Ctx, logger *zerolog.Logger, err error) error {
	var (
		validation       *service.ValidationError
		conflict         *service.ConflictError
		exhaustion       *service.ExhaustionError
		transient        *service.TransientInfraError
		authz            *service.AuthorizationError
		validationErrors validator.ValidationErrors
	)

	switch {
	case errors.As(err, &validation):
		return utils.SendValidationError(c, "validation failed", validation.MissingFields)
	case errors.As(err, &authz):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.As(err, &exhaustion):
		return utils.SendError(c, fiber.StatusTooManyRequests, err.Error())
	case errors.As(err, &transient):
		logger.Warn().Err(err).Msg("transient infrastructure failure")
		return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.As(err, &conflict):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	case errors.Is(err, service.ErrThesisNotFound), errors.Is(err, service.ErrUserNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrThesisExists),
		errors.Is(err, service.ErrSlotOccupied),
		errors.Is(err, service.ErrSlotVacant),
		errors.Is(err, service.ErrAlreadyEvaluated),
		errors.Is(err, service.ErrIterationMismatch),
		errors.Is(err, service.ErrNoUnsignedDocument):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNoFileUploaded),
		errors.Is(err, service.ErrUploadTypeNotAllowed):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
