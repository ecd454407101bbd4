package snapshot

import (
	"github.com/labstack/echo/v4"

	"github.com/meridian-ai/meridian/pkg/auth"
)

// RegisterRoutes registers the index administration routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/index")
	g.Use(authMiddleware.RequireAuth())
	g.GET("/status", h.GetStatus, authMiddleware.RequireScopes(auth.ScopeGraphRead))
	g.GET("/classification", h.GetClassification, authMiddleware.RequireScopes(auth.ScopeGraphRead))
	g.GET("/builds", h.ListBuilds, authMiddleware.RequireScopes(auth.ScopeGraphRead))
	g.POST("/rebuild", h.Rebuild, authMiddleware.RequireScopes(auth.ScopeIndexAdmin))
	g.POST("/archive", h.Archive, authMiddleware.RequireScopes(auth.ScopeIndexAdmin))
	g.GET("/archive/:buildId/url", h.ArchiveDownloadURL, authMiddleware.RequireScopes(auth.ScopeIndexAdmin))
}
