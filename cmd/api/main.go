package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-weekly-report/internal/bootstrap"
	"github.com/noah-isme/gema-weekly-report/internal/config"
	"github.com/noah-isme/gema-weekly-report/internal/handler"
	"github.com/noah-isme/gema-weekly-report/internal/middleware"
	"github.com/noah-isme/gema-weekly-report/internal/router"
	"github.com/noah-isme/gema-weekly-report/internal/utils"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "development" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	resources, err := bootstrap.Build(startCtx, cfg, logger)
	cancelStart()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise report service")
	}
	defer resources.Close()

	var dbPinger handler.Pinger
	if sqlDB, err := resources.DB.DB(); err == nil {
		dbPinger = sqlDB
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fiberErr, ok := err.(*fiber.Error); ok {
				code = fiberErr.Code
			}
			return utils.SendError(c, code, err.Error())
		},
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		WeeklyReportHandler: handler.NewWeeklyReportHandler(resources.Reports, logger),
		Database:            dbPinger,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	logger.Info().
		Str("address", cfg.HTTPAddress()).
		Str("ai_provider", cfg.AIProvider).
		Str("report_format", cfg.ReportFormat).
		Msg("weekly report service started")

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	// In flight generations may be waiting on the model.
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
