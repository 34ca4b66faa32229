// Package router builds the echo instance: global middleware, the v1 API
// routes and the system routes.
package router

import (
	"net/http"

	"github.com/deppfellow/case-unboxing/internal/handler"
	"github.com/deppfellow/case-unboxing/internal/metrics"
	"github.com/deppfellow/case-unboxing/internal/middleware"
	"github.com/deppfellow/case-unboxing/internal/server"
	"github.com/labstack/echo/v4"
)

// NewRouter wires middleware and routes. Middleware order matters: the
// request id and New Relic transaction must exist before the context logger
// is built, and the logger before anything logs.
func NewRouter(s *server.Server, h *handler.Handlers) *echo.Echo {
	m := middleware.NewMiddlewares(s)

	router := echo.New()
	router.HideBanner = true
	router.HTTPErrorHandler = m.Global.GlobalErrorHandler

	router.Use(
		middleware.RequestID(),
		m.Tracing.NewRelicMiddleware(),
		m.Tracing.EnhanceTracing(),
		m.ContextEnhancer.EnhanceContext(),
		m.Global.RequestLogger(),
		m.Global.Recover(),
		metrics.Middleware(),
		m.Global.CORS(),
		m.Global.Secure(),
		m.Global.BodyLimit(),
	)

	registerSystemRoutes(router, h)
	registerV1Routes(router.Group("/api/v1"), h, m)

	return router
}

func registerV1Routes(g *echo.Group, h *handler.Handlers, m *middleware.Middlewares) {
	base := h.Unbox.Handler

	cases := g.Group("/cases")
	cases.GET("", handler.Handle[handler.EmptyRequest](base, h.Unbox.ListCases, http.StatusOK))
	cases.GET("/:id", handler.Handle[handler.CaseRequest](base, h.Unbox.GetCase, http.StatusOK))
	cases.POST("/:id/unbox", handler.Handle[handler.CaseRequest](base, h.Unbox.Unbox, http.StatusOK), m.RateLimit.Unbox())

	unboxes := g.Group("/unboxes")
	unboxes.GET("", handler.Handle[handler.UnboxFilterRequest](base, h.Unbox.List, http.StatusOK))
	unboxes.POST("", handler.Handle[handler.SaveUnboxRequest](base, h.Unbox.Save, http.StatusCreated))
	unboxes.POST("/batch", handler.Handle[handler.SaveUnboxBatchRequest](base, h.Unbox.SaveBatch, http.StatusCreated))
	unboxes.GET("/count", handler.Handle[handler.UnboxFilterRequest](base, h.Unbox.Count, http.StatusOK))

	g.GET("/unboxer", handler.Handle[handler.EmptyRequest](base, h.Unbox.Unboxer, http.StatusOK))
}
