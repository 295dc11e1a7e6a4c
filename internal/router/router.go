package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-exam-grader/internal/config"
	"github.com/noah-isme/gema-exam-grader/internal/handler"
	"github.com/noah-isme/gema-exam-grader/internal/middleware"
	"github.com/noah-isme/gema-exam-grader/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ExamHandler           *handler.ExamHandler
	ExamSubmissionHandler *handler.ExamSubmissionHandler
	AdminGradingHandler   *handler.AdminGradingHandler
	JWTMiddleware         fiber.Handler
	HealthProbes          map[string]handler.HealthProbe
	// SubmitLimiter guards the submit endpoint; nil disables it.
	SubmitLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ExamSubmissionHandler != nil {
		exams := app.Group("/api/v2/exams", jwtMiddleware)
		var guards []fiber.Handler
		if deps.SubmitLimiter != nil {
			guards = append(guards, deps.SubmitLimiter)
		}
		deps.ExamSubmissionHandler.Register(exams, guards...)
	}

	admin := app.Group("/api/admin", jwtMiddleware, middleware.RequireStaff())
	if deps.ExamHandler != nil {
		deps.ExamHandler.Register(admin.Group("/exams"))
	}
	if deps.AdminGradingHandler != nil {
		deps.AdminGradingHandler.Register(admin.Group("/grading"))
	}
}
