package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/domain/pathindex"
	"github.com/meridian-ai/meridian/domain/query"
	"github.com/meridian-ai/meridian/domain/snapshot"
	"github.com/meridian-ai/meridian/domain/traversal"
	"github.com/meridian-ai/meridian/pkg/logger"
)

// Tools exposes the retrieval engine to MCP clients. Every tool reads
// from the serving snapshot, so results are consistent within a call
// and never observe a half-built index.
type Tools struct {
	oracle    *query.Service
	traversal *traversal.Service
	holder    *snapshot.Holder
	log       *slog.Logger
}

// NewTools creates the MCP tool set.
func NewTools(oracle *query.Service, trav *traversal.Service, holder *snapshot.Holder, log *slog.Logger) *Tools {
	return &Tools{
		oracle:    oracle,
		traversal: trav,
		holder:    holder,
		log:       log.With(logger.Scope("mcp.tools")),
	}
}

// SearchTool defines the hybrid search tool.
func (t *Tools) SearchTool() mcp.Tool {
	return mcp.NewTool("search_graph",
		mcp.WithDescription("Search the knowledge graph with hybrid retrieval: lexical match, vector similarity, and graph proximity fused into a single ranking. Returns scored candidates with a per-signal breakdown."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language or keyword query text."),
		),
		mcp.WithString("profile",
			mcp.Description("Weight profile name (e.g. semantic, deterministic). Empty selects a profile suited to the active embedding provider."),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum number of candidates to return."),
		),
		mcp.WithString("stack",
			mcp.Description("Restrict candidates to a single stack."),
		),
	)
}

// HandleSearch executes search_graph.
func (t *Tools) HandleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := t.oracle.Query(ctx, query.Request{
		Query:       text,
		Profile:     request.GetString("profile", ""),
		TopK:        request.GetInt("top_k", 0),
		StackFilter: request.GetString("stack", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(resp)
}

// TraverseTool defines the cross-stack traversal tool.
func (t *Tools) TraverseTool() mcp.Tool {
	return mcp.NewTool("traverse_stacks",
		mcp.WithDescription("Walk the knowledge graph across stacks to answer a question, hopping along the strongest edges and re-querying within each stack. Returns the synthesized answer, the outcome, and the full hop trace."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question to answer."),
		),
		mcp.WithString("start_stack",
			mcp.Description("Stack to enter the graph through. Empty picks the stack of the best overall candidate."),
		),
		mcp.WithNumber("max_hops",
			mcp.Description("Hop budget. Zero uses the server default."),
		),
	)
}

// HandleTraverse executes traverse_stacks.
func (t *Tools) HandleTraverse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := t.traversal.Traverse(ctx, traversal.Request{
		Query:      text,
		StartStack: request.GetString("start_stack", ""),
		MaxHops:    request.GetInt("max_hops", 0),
	}, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

// InspectTool defines the node inspection tool.
func (t *Tools) InspectTool() mcp.Tool {
	return mcp.NewTool("inspect_node",
		mcp.WithDescription("Fetch a single graph node with its metadata and in/out edges from the serving snapshot."),
		mcp.WithString("node_id",
			mcp.Required(),
			mcp.Description("Node identifier, e.g. git:reset."),
		),
	)
}

// nodeDetail is the inspect_node payload.
type nodeDetail struct {
	Node     *graph.Node   `json:"node"`
	Stack    string        `json:"stack"`
	OutEdges []*graph.Edge `json:"out_edges"`
	InEdges  []*graph.Edge `json:"in_edges"`
}

// HandleInspect executes inspect_node.
func (t *Tools) HandleInspect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	snap := t.holder.Current()
	if snap == nil {
		return mcp.NewToolResultError("no serving snapshot available yet"), nil
	}

	node := snap.View.Node(id)
	if node == nil {
		return mcp.NewToolResultError(fmt.Sprintf("node %q not found", id)), nil
	}

	return jsonResult(nodeDetail{
		Node:     node,
		Stack:    node.Stack(),
		OutEdges: snap.View.OutEdges(id),
		InEdges:  snap.View.InEdges(id),
	})
}

// PathTool defines the reachability tool.
func (t *Tools) PathTool() mcp.Tool {
	return mcp.NewTool("find_path",
		mcp.WithDescription("Look up the precomputed shortest path between two nodes within the indexed depth. Reports hop count and a witness path, or that the nodes are not connected within range."),
		mcp.WithString("from",
			mcp.Required(),
			mcp.Description("Start node identifier."),
		),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("End node identifier."),
		),
	)
}

// pathDetail is the find_path payload.
type pathDetail struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Connected bool     `json:"connected"`
	Hops      int      `json:"hops,omitempty"`
	Path      []string `json:"path,omitempty"`
	Partial   bool     `json:"partial,omitempty"`
}

// HandlePath executes find_path.
func (t *Tools) HandlePath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := request.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := request.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	snap := t.holder.Current()
	if snap == nil {
		return mcp.NewToolResultError("no serving snapshot available yet"), nil
	}

	detail := pathDetail{From: from, To: to}
	if entry := snap.Paths.Witness(from, to, pathindex.DirectionForward); entry != nil {
		detail.Connected = true
		detail.Hops = entry.Length
		detail.Path = entry.Path()
		detail.Partial = entry.Partial
	}
	return jsonResult(detail)
}

// ListStacksTool defines the stack listing tool.
func (t *Tools) ListStacksTool() mcp.Tool {
	return mcp.NewTool("list_stacks",
		mcp.WithDescription("List the stacks present in the serving snapshot with node counts."),
	)
}

// HandleListStacks executes list_stacks.
func (t *Tools) HandleListStacks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := t.holder.Current()
	if snap == nil {
		return mcp.NewToolResultError("no serving snapshot available yet"), nil
	}

	counts := make(map[string]int)
	for _, n := range snap.View.Nodes() {
		counts[n.Stack()]++
	}

	return jsonResult(map[string]any{
		"stacks":      counts,
		"node_count":  snap.View.NodeCount(),
		"edge_count":  snap.View.EdgeCount(),
		"snapshot_id": snap.ID.String(),
	})
}

// jsonResult marshals a payload as an indented text block.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return mcp.NewToolResultErrorFromErr("encoding result", err), nil
	}
	return mcp.NewToolResultText(strings.TrimRight(sb.String(), "\n")), nil
}
