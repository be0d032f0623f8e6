package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/akademia-dev/thesis-review-api/internal/config"
	"github.com/akademia-dev/thesis-review-api/internal/handler"
	"github.com/akademia-dev/thesis-review-api/internal/middleware"
	"github.com/akademia-dev/thesis-review-api/internal/models"
	"github.com/akademia-dev/thesis-review-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ThesisHandler     *handler.ThesisHandler
	PlagiarismHandler *handler.PlagiarismHandler
	AssignmentHandler *handler.AssignmentHandler
	ReviewHandler     *handler.ReviewHandler
	ReviewerHandler   *handler.ReviewerHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ThesisHandler != nil {
		theses := api.Group("/theses", jwtMiddleware)
		deps.ThesisHandler.Register(theses)

		if deps.PlagiarismHandler != nil {
			rate := middleware.RateLimit("plagiarism", cfg.PlagiarismRatePerMin, time.Minute)
			deps.PlagiarismHandler.Register(theses, rate)
		}
	}

	if deps.AssignmentHandler != nil {
		assignments := api.Group("/assignments", jwtMiddleware, middleware.RequireRole(models.RoleAdmin, models.RoleHeadOfDepartment, models.RoleDean))
		deps.AssignmentHandler.Register(assignments)
	}

	if deps.ReviewHandler != nil {
		reviews := api.Group("/reviews", jwtMiddleware)
		deps.ReviewHandler.Register(reviews)
	}

	if deps.ReviewerHandler != nil {
		reviewers := api.Group("/reviewers", jwtMiddleware, middleware.RequireRole(models.RoleReviewer))
		deps.ReviewerHandler.Register(reviewers)
	}
}
