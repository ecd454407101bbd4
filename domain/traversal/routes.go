package traversal

import (
	"github.com/labstack/echo/v4"

	"github.com/meridian-ai/meridian/pkg/auth"
)

// RegisterRoutes registers all traversal routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/traverse")
	g.Use(authMiddleware.RequireAuth())
	g.POST("", h.Traverse, authMiddleware.RequireScopes(auth.ScopeQueryRead))
	g.GET("/stream", h.TraverseStream, authMiddleware.RequireScopes(auth.ScopeQueryRead))
}
