package graph

import (
	"github.com/labstack/echo/v4"

	"github.com/meridian-ai/meridian/pkg/auth"
)

// RegisterRoutes registers all graph routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	nodes := e.Group("/api/nodes")
	nodes.Use(authMiddleware.RequireAuth())
	nodes.GET("/:id", h.GetNode, authMiddleware.RequireScopes(auth.ScopeGraphRead))
	nodes.GET("/:id/neighbors", h.GetNeighbors, authMiddleware.RequireScopes(auth.ScopeGraphRead))

	g := e.Group("/api/graph")
	g.Use(authMiddleware.RequireAuth())
	g.GET("/stats", h.GetStats, authMiddleware.RequireScopes(auth.ScopeGraphRead))
	g.GET("/merge-log", h.GetMergeLog, authMiddleware.RequireScopes(auth.ScopeGraphRead))
	g.POST("/merge", h.Merge, authMiddleware.RequireScopes(auth.ScopeIngestWrite))
}
