package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/domain/lexical"
	"github.com/meridian-ai/meridian/domain/pathindex"
	"github.com/meridian-ai/meridian/domain/query"
	"github.com/meridian-ai/meridian/domain/snapshot"
	"github.com/meridian-ai/meridian/domain/traversal"
	"github.com/meridian-ai/meridian/domain/vector"
	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/pkg/embeddings"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Query: config.QueryConfig{
			Timeout:             2 * time.Second,
			CacheSize:           16,
			DefaultTopK:         10,
			MaxTopK:             100,
			MaxHops:             3,
			MaxHopsCeiling:      4,
			MinAnswerConfidence: 0.35,
		},
	}
}

func testNode(id, stack, name, description string) *graph.Node {
	return &graph.Node{
		ID:          id,
		Type:        "command",
		Name:        name,
		Description: description,
		Metadata:    map[string]any{"stack": stack},
	}
}

// testTools assembles the full serving stack behind the MCP tool set.
func testTools(t *testing.T, nodes []*graph.Node, edges []*graph.Edge, paths []pathindex.Entry) *Tools {
	t.Helper()

	for i, n := range nodes {
		n.Seq = int64(i + 1)
	}
	view := graph.NewView(nodes, edges)

	lb := lexical.NewBuilder()
	for _, n := range nodes {
		lb.Index(lexical.Document{
			NodeID:      n.ID,
			Seq:         n.Seq,
			Name:        n.Name,
			Description: n.Description,
		})
	}

	embedder := embeddings.NewHashService(testLogger())
	vb := vector.NewBuilder(vector.DefaultOptions())
	for _, n := range nodes {
		vec, err := embedder.EmbedQuery(context.Background(), n.Name+"\n"+n.Description)
		require.NoError(t, err)
		vb.Add(embedder.Provider(), n.ID, vec, vector.Norm(vec))
	}

	snap := &snapshot.Snapshot{
		ID:       uuid.New(),
		View:     view,
		Lexical:  lb.Build(),
		Vectors:  vb.Build(),
		Paths:    pathindex.NewLookup(paths),
		Provider: embedder.Provider(),
		Quality:  embedder.Quality(),
		BuiltAt:  time.Now(),
	}
	holder := snapshot.NewHolder()
	holder.Swap(snap)

	cfg := testConfig()
	profiles, err := query.LoadProfiles("")
	require.NoError(t, err)
	oracle := query.NewService(holder, profiles, embedder, query.NewCache(16), cfg, testLogger())

	synth, err := traversal.NewSynthesizer("", testLogger())
	require.NoError(t, err)
	trav := traversal.NewService(holder, oracle, synth, cfg, testLogger())

	return NewTools(oracle, trav, holder, testLogger())
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textPayload(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func gitNodes() []*graph.Node {
	return []*graph.Node{
		testNode("git:reset", "git", "git reset", "undo the last commit keeping changes"),
		testNode("git:commit", "git", "git commit", "record staged changes"),
		testNode("deploy:rollback", "deploy", "deploy rollback", "revert the release to the previous build"),
	}
}

func gitEdges() []*graph.Edge {
	return []*graph.Edge{
		{FromID: "git:commit", ToID: "git:reset", Type: "undone_by", Weight: 1},
		{FromID: "git:reset", ToID: "deploy:rollback", Type: "mirrors", Weight: 0.8},
	}
}

func TestSearchGraphReturnsRankedCandidates(t *testing.T) {
	tools := testTools(t, gitNodes(), gitEdges(), nil)

	result, err := tools.HandleSearch(context.Background(),
		callRequest("search_graph", map[string]any{"query": "undo last commit"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var resp query.Response
	require.NoError(t, json.Unmarshal([]byte(textPayload(t, result)), &resp))
	require.NotEmpty(t, resp.Candidates)
	assert.Equal(t, "git:reset", resp.Candidates[0].NodeID)
	assert.NotEmpty(t, resp.SnapshotID)
}

func TestSearchGraphRequiresQuery(t *testing.T) {
	tools := testTools(t, gitNodes(), gitEdges(), nil)

	result, err := tools.HandleSearch(context.Background(),
		callRequest("search_graph", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSearchGraphHonorsStackArgument(t *testing.T) {
	tools := testTools(t, gitNodes(), gitEdges(), nil)

	result, err := tools.HandleSearch(context.Background(),
		callRequest("search_graph", map[string]any{
			"query": "revert rollback release",
			"stack": "deploy",
		}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var resp query.Response
	require.NoError(t, json.Unmarshal([]byte(textPayload(t, result)), &resp))
	for _, c := range resp.Candidates {
		assert.Equal(t, "deploy", c.Stack)
	}
}

func TestTraverseStacksReturnsTrace(t *testing.T) {
	tools := testTools(t, gitNodes(), gitEdges(), nil)

	result, err := tools.HandleTraverse(context.Background(),
		callRequest("traverse_stacks", map[string]any{
			"query":       "undo last commit",
			"start_stack": "git",
		}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var res traversal.Result
	require.NoError(t, json.Unmarshal([]byte(textPayload(t, result)), &res))
	assert.NotEmpty(t, res.Trace)
	assert.NotEmpty(t, res.Answer)
}

func TestInspectNodeReturnsEdges(t *testing.T) {
	tools := testTools(t, gitNodes(), gitEdges(), nil)

	result, err := tools.HandleInspect(context.Background(),
		callRequest("inspect_node", map[string]any{"node_id": "git:reset"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var detail nodeDetail
	require.NoError(t, json.Unmarshal([]byte(textPayload(t, result)), &detail))
	assert.Equal(t, "git:reset", detail.Node.ID)
	assert.Equal(t, "git", detail.Stack)
	assert.Len(t, detail.OutEdges, 1)
	assert.Len(t, detail.InEdges, 1)
}

func TestInspectNodeUnknownIDIsError(t *testing.T) {
	tools := testTools(t, gitNodes(), gitEdges(), nil)

	result, err := tools.HandleInspect(context.Background(),
		callRequest("inspect_node", map[string]any{"node_id": "git:nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestFindPathReportsHops(t *testing.T) {
	paths := []pathindex.Entry{
		{
			StartID:      "git:commit",
			EndID:        "deploy:rollback",
			Direction:    pathindex.DirectionForward,
			Length:       2,
			NodeSequence: []string{"git:reset"},
		},
	}
	tools := testTools(t, gitNodes(), gitEdges(), paths)

	result, err := tools.HandlePath(context.Background(),
		callRequest("find_path", map[string]any{
			"from": "git:commit",
			"to":   "deploy:rollback",
		}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var detail pathDetail
	require.NoError(t, json.Unmarshal([]byte(textPayload(t, result)), &detail))
	assert.True(t, detail.Connected)
	assert.Equal(t, 2, detail.Hops)
	assert.Equal(t, []string{"git:commit", "git:reset", "deploy:rollback"}, detail.Path)
}

func TestFindPathUnconnectedNodes(t *testing.T) {
	tools := testTools(t, gitNodes(), gitEdges(), nil)

	result, err := tools.HandlePath(context.Background(),
		callRequest("find_path", map[string]any{
			"from": "deploy:rollback",
			"to":   "git:commit",
		}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var detail pathDetail
	require.NoError(t, json.Unmarshal([]byte(textPayload(t, result)), &detail))
	assert.False(t, detail.Connected)
	assert.Empty(t, detail.Path)
}

func TestListStacksCountsNodes(t *testing.T) {
	tools := testTools(t, gitNodes(), gitEdges(), nil)

	result, err := tools.HandleListStacks(context.Background(),
		callRequest("list_stacks", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		Stacks    map[string]int `json:"stacks"`
		NodeCount int            `json:"node_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(textPayload(t, result)), &payload))
	assert.Equal(t, 2, payload.Stacks["git"])
	assert.Equal(t, 1, payload.Stacks["deploy"])
	assert.Equal(t, 3, payload.NodeCount)
}

func TestToolsWithoutSnapshotReportError(t *testing.T) {
	holder := snapshot.NewHolder()
	cfg := testConfig()
	profiles, err := query.LoadProfiles("")
	require.NoError(t, err)
	embedder := embeddings.NewHashService(testLogger())
	oracle := query.NewService(holder, profiles, embedder, query.NewCache(16), cfg, testLogger())
	synth, err := traversal.NewSynthesizer("", testLogger())
	require.NoError(t, err)
	trav := traversal.NewService(holder, oracle, synth, cfg, testLogger())
	tools := NewTools(oracle, trav, holder, testLogger())

	result, err := tools.HandleInspect(context.Background(),
		callRequest("inspect_node", map[string]any{"node_id": "git:reset"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = tools.HandleListStacks(context.Background(),
		callRequest("list_stacks", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestNewServerRegistersTools(t *testing.T) {
	tools := testTools(t, gitNodes(), gitEdges(), nil)
	srv := NewServer(tools)
	require.NotNil(t, srv)
}
