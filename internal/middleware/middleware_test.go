package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-weekly-report/internal/middleware"
	"github.com/noah-isme/gema-weekly-report/internal/observability"
)

func TestCorrelationIDPropagatesIncomingHeader(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())

	var fromContext string
	app.Get("/", func(c *fiber.Ctx) error {
		fromContext = middleware.CorrelationIDFromContext(c.UserContext())
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "req-123", resp.Header.Get("X-Correlation-ID"))
	require.Equal(t, "req-123", fromContext)
}

func TestCorrelationIDGeneratesWhenMissing(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(middleware.GetCorrelationID(c))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Len(t, string(body), 36)
	require.Equal(t, string(body), resp.Header.Get("X-Correlation-ID"))
}

func TestRateLimitRejectsAfterBudget(t *testing.T) {
	app := fiber.New()
	app.Post("/generate", middleware.RateLimit("test", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/generate", nil))
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}
	require.Equal(t, []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}, statuses)
}

func TestObservabilityCountsReportRoutesOnly(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Use(middleware.Observability(zerolog.Nop()))
	app.Get("/api/v1/students", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})
	app.Get("/metrics-probe", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	requests := observability.HTTPRequests().WithLabelValues(http.MethodGet, "/api/v1/students", "404")
	errorsCounter := observability.HTTPErrors().WithLabelValues(http.MethodGet, "/api/v1/students", "404")
	beforeRequests := testutil.ToFloat64(requests)
	beforeErrors := testutil.ToFloat64(errorsCounter)

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/students", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics-probe", nil))
	require.NoError(t, err)

	require.Equal(t, beforeRequests+1, testutil.ToFloat64(requests))
	require.Equal(t, beforeErrors+1, testutil.ToFloat64(errorsCounter))
	require.Zero(t, testutil.ToFloat64(observability.HTTPRequests().WithLabelValues(http.MethodGet, "/metrics-probe", "200")))
}
