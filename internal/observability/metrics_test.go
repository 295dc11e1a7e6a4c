package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesGradingCollectors(t *testing.T) {
	GradingOutcomes().WithLabelValues("graded").Inc()
	RegradeSubmissions().WithLabelValues("skipped").Inc()

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `grading_outcomes_total{outcome="graded"}`)
	require.Contains(t, string(body), `regrade_submissions_total{result="skipped"}`)
}

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	require.NotPanics(t, func() {
		RegisterMetrics()
		RegisterMetrics()
	})
	require.NotNil(t, APIRequests())
	require.NotNil(t, GradeNotifications())
}
