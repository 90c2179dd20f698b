package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-weekly-report/internal/config"
	"github.com/noah-isme/gema-weekly-report/internal/handler"
	"github.com/noah-isme/gema-weekly-report/internal/middleware"
	"github.com/noah-isme/gema-weekly-report/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	WeeklyReportHandler *handler.WeeklyReportHandler
	Database            handler.Pinger
	// DisableRateLimit skips throttling of generation routes.
	DisableRateLimit bool
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	var generateGuard fiber.Handler
	if !deps.DisableRateLimit {
		generateGuard = middleware.RateLimit("weekly-reports", cfg.RateLimitMax, cfg.RateLimitWindow)
	}

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Database))

	if deps.WeeklyReportHandler == nil {
		return
	}

	deps.WeeklyReportHandler.Register(api, generateGuard)

	// Original route kept for existing callers; fiber matches it with or
	// without the trailing slash.
	if generateGuard != nil {
		app.Post("/generate_weekly_report", generateGuard, deps.WeeklyReportHandler.GenerateLegacy)
	} else {
		app.Post("/generate_weekly_report", deps.WeeklyReportHandler.GenerateLegacy)
	}
}
