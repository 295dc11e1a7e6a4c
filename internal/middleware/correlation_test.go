package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDPropagates(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(CorrelationIDFromContext(c.UserContext()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "corr-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Header.Get(HeaderCorrelationID))
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, "corr-123", string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Header.Get(HeaderCorrelationID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, strings.Repeat("x", 200))
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Len(t, resp.Header.Get(HeaderCorrelationID), 36)
}

func TestAcceptCorrelationID(t *testing.T) {
	require.Equal(t, "abc-123", acceptCorrelationID("  abc-123 "))
	require.Empty(t, acceptCorrelationID("has space"))
	require.Empty(t, acceptCorrelationID("line\nbreak"))
	require.Empty(t, acceptCorrelationID(""))
}

func TestRegisterTracksPrefixedRoutes(t *testing.T) {
	app := fiber.New()
	logger := zerolog.Nop()
	Register(app, Config{Logger: &logger, TrackedPrefixes: []string{"/api/admin"}})
	app.Get("/api/admin/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(HeaderCorrelationID))
}

func TestRateLimitRejectsBurst(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimit("submit", 1, time.Minute))
	app.Post("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestLatencyBucket(t *testing.T) {
	require.Equal(t, "<=25ms", latencyBucket(10*time.Millisecond))
	require.Equal(t, "<=500ms", latencyBucket(300*time.Millisecond))
	require.Equal(t, ">2s", latencyBucket(3*time.Second))
}
