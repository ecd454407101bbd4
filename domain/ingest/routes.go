package ingest

import (
	"github.com/labstack/echo/v4"

	"github.com/meridian-ai/meridian/pkg/auth"
)

// RegisterRoutes registers all ingest routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/ingest")
	g.Use(authMiddleware.RequireAuth())
	g.POST("", h.Ingest, authMiddleware.RequireScopes(auth.ScopeIngestWrite))
}
