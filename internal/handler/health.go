package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/deppfellow/case-unboxing/internal/middleware"
	"github.com/deppfellow/case-unboxing/internal/server"
	"github.com/labstack/echo/v4"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type CheckResult struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time"`
	Error        string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Environment string                 `json:"environment"`
	Checks      map[string]CheckResult `json:"checks"`
}

type HealthHandler struct {
	Handler
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthHandler probes the dependencies enabled in the health_checks
// config block. Redis is skipped when it is not configured.
func NewHealthHandler(s *server.Server) *HealthHandler {
	obs := s.Config.Observability
	checks := make(map[string]HealthCheck)

	if obs.HasCheck("database") && s.DB != nil {
		checks["database"] = func(ctx context.Context) error {
			return s.DB.Pool.Ping(ctx)
		}
	}

	if obs.HasCheck("redis") && s.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return s.Redis.Ping(ctx).Err()
		}
	}

	return &HealthHandler{
		Handler: NewHandler(s),
		checks:  checks,
		timeout: obs.HealthChecks.Timeout,
	}
}

// CheckHealth answers 200 when every check passes and 503 otherwise.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()
	logger := middleware.GetLogger(c).With().Str("operation", "health_check").Logger()

	response := HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Environment: h.server.Config.Primary.Env,
		Checks:      make(map[string]CheckResult, len(h.checks)),
	}

	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
		checkStart := time.Now()
		err := check(ctx)
		cancel()

		result := CheckResult{Status: "healthy", ResponseTime: time.Since(checkStart).String()}
		if err != nil {
			result.Status = "unhealthy"
			result.Error = err.Error()
			response.Status = "unhealthy"

			logger.Error().Err(err).Str("check", name).Msg("health check failed")
			h.recordFailure(name, err, time.Since(checkStart))
		}
		response.Checks[name] = result
	}

	if response.Status != "healthy" {
		logger.Warn().Dur("total_duration", time.Since(start)).Msg("service unhealthy")
		return c.JSON(http.StatusServiceUnavailable, response)
	}

	return c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) recordFailure(check string, err error, took time.Duration) {
	app := h.server.LoggerService.GetApplication()
	if app == nil {
		return
	}

	app.RecordCustomEvent("HealthCheckError", map[string]any{
		"check_type":       check,
		"operation":        "health_check",
		"error_type":       check + "_unhealthy",
		"response_time_ms": took.Milliseconds(),
		"error_message":    err.Error(),
	})
}
