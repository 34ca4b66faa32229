package middleware

import (
	"time"

	"github.com/deppfellow/case-unboxing/internal/errs"
	"github.com/deppfellow/case-unboxing/internal/metrics"
	"github.com/deppfellow/case-unboxing/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// rateLimitVisitorTTL is how long an idle client keeps its bucket.
const rateLimitVisitorTTL = 3 * time.Minute

type RateLimitMiddleware struct {
	server *server.Server
}

func NewRateLimitMiddleware(s *server.Server) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		server: s,
	}
}

// Unbox throttles draws per client IP using a token bucket sized by the
// rate_limit config block. Rejected requests get a 429 with a retry hint.
func (r *RateLimitMiddleware) Unbox() echo.MiddlewareFunc {
	cfg := r.server.Config.RateLimit

	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.UnboxPerSecond),
		Burst:     cfg.Burst,
		ExpiresIn: rateLimitVisitorTTL,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return errs.NewBadRequestError("Unable to identify client", false, nil, nil, nil)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			r.RecordRateLimitHit(c.Path())
			GetLogger(c).Warn().Str("identifier", identifier).Msg("unbox rate limit exceeded")
			return errs.NewTooManyRequestsError("Too many unboxes, slow down", 1)
		},
	})
}

// RecordRateLimitHit counts a rejected request in prometheus and, when the
// agent is enabled, as a New Relic custom event.
func (r *RateLimitMiddleware) RecordRateLimitHit(endpoint string) {
	metrics.UnboxesRateLimited.Inc()

	if r.server.LoggerService != nil && r.server.LoggerService.GetApplication() != nil {
		r.server.LoggerService.GetApplication().RecordCustomEvent("RateLimitHit", map[string]any{
			"endpoint": endpoint,
		})
	}
}
