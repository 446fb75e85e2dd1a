package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/uniserve-app/uniserve-go-api/internal/config"
	"github.com/uniserve-app/uniserve-go-api/internal/handler"
	"github.com/uniserve-app/uniserve-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RequestHandler      *handler.RequestHandler
	NotificationHandler *handler.NotificationHandler
	SubmissionHandler   *handler.SubmissionHandler
	HoursHandler        *handler.HoursHandler
	DeviceHandler       *handler.DeviceHandler
	JWTMiddleware       fiber.Handler
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

	if deps.RequestHandler != nil {
		requests := api.Group("/requests", jwtMiddleware)
		deps.RequestHandler.Register(requests)

		proposals := api.Group("/proposals", jwtMiddleware)
		deps.RequestHandler.RegisterProposals(proposals)
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}

	if deps.DeviceHandler != nil {
		devices := api.Group("/devices", jwtMiddleware)
		deps.DeviceHandler.Register(devices)
	}

	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions", jwtMiddleware)
		deps.SubmissionHandler.Register(submissions)
	}

	if deps.HoursHandler != nil {
		hours := api.Group("/hours", jwtMiddleware)
		deps.HoursHandler.Register(hours)
	}
}
