package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/deppfellow/case-unboxing/internal/errs"
	"github.com/labstack/echo/v4"
)

// Middleware records request count, latency and in-flight requests.
//
// The path label is the route template ("/api/v1/cases/:id"), never the raw
// URL, so ids do not explode label cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			HTTPRequestsInFlight.Inc()
			defer HTTPRequestsInFlight.Dec()

			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			status := c.Response().Status
			if err != nil {
				status = statusFromError(err, status)
			}

			HTTPRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			HTTPRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// statusFromError guesses the status the global error handler will write,
// since it runs after this middleware returns.
func statusFromError(err error, fallback int) int {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		return echoErr.Code
	}

	if fallback < http.StatusBadRequest {
		return http.StatusInternalServerError
	}
	return fallback
}
