package query

import (
	"github.com/labstack/echo/v4"

	"github.com/meridian-ai/meridian/pkg/auth"
)

// RegisterRoutes registers all query routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/query")
	g.Use(authMiddleware.RequireAuth())
	g.POST("", h.Query, authMiddleware.RequireScopes(auth.ScopeQueryRead))
	g.GET("/profiles", h.GetProfiles, authMiddleware.RequireScopes(auth.ScopeQueryRead))
}
