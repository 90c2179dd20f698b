package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-weekly-report/internal/config"
	"github.com/noah-isme/gema-weekly-report/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	Service      string    `json:"service"`
	Environment  string    `json:"environment"`
	AIProvider   string    `json:"ai_provider"`
	ReportFormat string    `json:"report_format"`
	Database     string    `json:"database"`
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthCheck reports service health. A nil db skips the database probe.
func HealthCheck(cfg config.Config, db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:       "ok",
			Timestamp:    time.Now().UTC(),
			Service:      cfg.AppName,
			Environment:  cfg.AppEnv,
			AIProvider:   cfg.AIProvider,
			ReportFormat: cfg.ReportFormat,
			Database:     "unchecked",
		}

		if db != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				payload.Status = "degraded"
				payload.Database = "unreachable"
				return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "database unreachable", payload)
			}
			payload.Database = "ok"
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
