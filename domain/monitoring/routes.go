package monitoring

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meridian-ai/meridian/pkg/auth"
)

// RegisterRoutes registers the metrics endpoint and monitoring routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	e.Use(RequestMetrics())
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	monitoring := e.Group("/api/monitoring")
	monitoring.Use(authMiddleware.RequireAuth())
	monitoring.GET("/index-jobs", h.ListIndexJobs, authMiddleware.RequireScopes(auth.ScopeGraphRead))
}
