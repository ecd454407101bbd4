package mcp

import (
	"github.com/mark3labs/mcp-go/server"
)

// serverName identifies this MCP server to clients.
const serverName = "meridian"

// serverVersion is set at build time via ldflags.
var serverVersion = "dev"

// NewServer creates the MCP server with all engine tools registered.
func NewServer(tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions),
	)

	s.AddTool(tools.SearchTool(), tools.HandleSearch)
	s.AddTool(tools.TraverseTool(), tools.HandleTraverse)
	s.AddTool(tools.InspectTool(), tools.HandleInspect)
	s.AddTool(tools.PathTool(), tools.HandlePath)
	s.AddTool(tools.ListStacksTool(), tools.HandleListStacks)

	return s
}

// serverInstructions tells clients how to use the engine tools together.
const serverInstructions = `Meridian serves a typed knowledge graph with hybrid retrieval.

Use search_graph for ranked lookups: it fuses lexical matching, vector
similarity, and graph proximity. Pass stack to narrow results and
profile to shift the weighting (deterministic favors exact terms,
semantic favors meaning).

Use traverse_stacks when the answer may live in a different stack than
the question suggests: it enters through one stack and hops along the
strongest edges, returning the full hop trace alongside the answer.

Use inspect_node and find_path to examine specific nodes and their
connectivity, and list_stacks to discover what the graph contains.

All tools read from an immutable serving snapshot. If no snapshot has
been built yet, tools report that instead of returning empty results.`
