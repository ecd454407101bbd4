package mcp

import (
	"github.com/labstack/echo/v4"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"

	"github.com/meridian-ai/meridian/pkg/auth"
)

// Module exposes the retrieval engine over the Model Context Protocol.
//
// Tools: search_graph, traverse_stacks, inspect_node, find_path, list_stacks
var Module = fx.Module("mcp",
	fx.Provide(NewTools),
	fx.Provide(NewServer),
	fx.Invoke(RegisterRoutes),
)

// RegisterRoutes mounts the streamable HTTP transport at /mcp.
func RegisterRoutes(e *echo.Echo, srv *mcpserver.MCPServer, authMiddleware *auth.Middleware) {
	httpSrv := mcpserver.NewStreamableHTTPServer(srv,
		mcpserver.WithStateLess(true),
	)

	e.Any("/mcp", echo.WrapHandler(httpSrv),
		authMiddleware.RequireAuth(),
		authMiddleware.RequireScopes(auth.ScopeQueryRead),
	)
}
