package traversal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/domain/lexical"
	"github.com/meridian-ai/meridian/domain/pathindex"
	"github.com/meridian-ai/meridian/domain/query"
	"github.com/meridian-ai/meridian/domain/snapshot"
	"github.com/meridian-ai/meridian/domain/vector"
	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/pkg/apperror"
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

func stackNode(id, stack, name, description string, keywords ...string) *graph.Node {
	return &graph.Node{
		ID:             id,
		Type:           "component",
		Name:           name,
		Description:    description,
		IntentKeywords: keywords,
		Metadata:       map[string]any{"stack": stack},
	}
}

// testService assembles a full serving stack over the given nodes and
// edges, with the hash provider supplying real vectors.
func testService(t *testing.T, nodes []*graph.Node, edges []*graph.Edge) *Service {
	t.Helper()

	for i, n := range nodes {
		n.Seq = int64(i + 1)
	}
	view := graph.NewView(nodes, edges)

	lb := lexical.NewBuilder()
	for _, n := range nodes {
		lb.Index(lexical.Document{
			NodeID:         n.ID,
			Seq:            n.Seq,
			Name:           n.Name,
			Description:    n.Description,
			IntentKeywords: n.IntentKeywords,
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
		Paths:    pathindex.NewLookup(nil),
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

	synth, err := NewSynthesizer("", testLogger())
	require.NoError(t, err)

	return NewService(holder, oracle, synth, cfg, testLogger())
}

// pipelineNodes is a three-stack chain P1 -> P2 -> P3 linked by
// cross-stack "feeds" edges. Every name shares the "pipeline" token so
// each per-stack oracle always has a lexical candidate.
func pipelineNodes() []*graph.Node {
	return []*graph.Node{
		stackNode("p1:ingest", "P1", "pipeline ingest", "accepts raw pipeline records"),
		stackNode("p2:transform", "P2", "pipeline transform", "reshapes pipeline records"),
		stackNode("p3:publish", "P3", "pipeline publish", "writes pipeline records downstream"),
	}
}

func chainEdges() []*graph.Edge {
	return []*graph.Edge{
		{FromID: "p1:ingest", ToID: "p2:transform", Type: "feeds", Weight: 1},
		{FromID: "p2:transform", ToID: "p3:publish", Type: "feeds", Weight: 1},
	}
}

func TestTraverseWithoutSnapshotIsUnavailable(t *testing.T) {
	svc := testService(t, pipelineNodes(), chainEdges())
	svc.holder = snapshot.NewHolder()

	_, err := svc.Traverse(context.Background(), Request{Query: "trace pipeline"}, nil)
	assert.ErrorIs(t, err, apperror.ErrSnapshotUnavailable)
}

func TestTraverseThreeHopChainTracesEveryStack(t *testing.T) {
	svc := testService(t, pipelineNodes(), chainEdges())

	result, err := svc.Traverse(context.Background(), Request{Query: "trace pipeline", StartStack: "P1"}, nil)
	require.NoError(t, err)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, 3, result.Hops)

	assert.Equal(t, StateStackEntry, result.Trace[0].State)
	assert.Equal(t, "P1", result.Trace[0].Stack)
	assert.Equal(t, "p1:ingest", result.Trace[0].NodeID)
	assert.Empty(t, result.Trace[0].EdgeType)

	assert.Equal(t, StateCrossStack, result.Trace[1].State)
	assert.Equal(t, "P2", result.Trace[1].Stack)
	assert.Equal(t, "feeds", result.Trace[1].EdgeType)

	assert.Equal(t, StateCrossStack, result.Trace[2].State)
	assert.Equal(t, "P3", result.Trace[2].Stack)
	assert.Equal(t, "feeds", result.Trace[2].EdgeType)
}

func TestTraverseCyclicEdgesExhaust(t *testing.T) {
	edges := append(chainEdges(), &graph.Edge{FromID: "p3:publish", ToID: "p1:ingest", Type: "feeds", Weight: 1})
	svc := testService(t, pipelineNodes(), edges)

	result, err := svc.Traverse(context.Background(), Request{Query: "trace pipeline", StartStack: "P1", MaxHops: 3}, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeExhausted, result.Outcome)
	assert.Len(t, result.Trace, 3)
}

func TestTraverseSingleStackAnswers(t *testing.T) {
	nodes := []*graph.Node{
		stackNode("git:reset", "git", "git reset", "move HEAD to a previous commit", "undo last commit"),
	}
	svc := testService(t, nodes, nil)

	result, err := svc.Traverse(context.Background(), Request{Query: "undo last commit"}, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswered, result.Outcome)
	assert.Equal(t, "git:reset", result.NodeID)
	assert.Equal(t, 1, result.Hops)
	assert.GreaterOrEqual(t, result.Confidence, 0.35)
	assert.Contains(t, result.Answer, "git reset")
}

func TestTraverseHopBudgetExceededExhausts(t *testing.T) {
	svc := testService(t, pipelineNodes(), chainEdges())

	// One hop on a chain that continues is a budget stop, never an
	// answered outcome.
	result, err := svc.Traverse(context.Background(), Request{Query: "trace pipeline", StartStack: "P1", MaxHops: 1}, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeExhausted, result.Outcome)
	assert.Len(t, result.Trace, 1)
	assert.NotEmpty(t, result.Answer)
}

func TestTraverseRejectsUnknownStartStack(t *testing.T) {
	svc := testService(t, pipelineNodes(), chainEdges())

	_, err := svc.Traverse(context.Background(), Request{Query: "trace pipeline", StartStack: "nope"}, nil)
	assert.Error(t, err)
}

func TestTraverseStreamsOneEventPerHop(t *testing.T) {
	svc := testService(t, pipelineNodes(), chainEdges())

	var streamed []TraceEntry
	result, err := svc.Traverse(context.Background(), Request{Query: "trace pipeline", StartStack: "P1"}, func(e TraceEntry) {
		streamed = append(streamed, e)
	})
	require.NoError(t, err)

	assert.Equal(t, result.Trace, streamed)
}

func TestClampHops(t *testing.T) {
	svc := testService(t, pipelineNodes(), nil)

	assert.Equal(t, 3, svc.clampHops(0))
	assert.Equal(t, 4, svc.clampHops(10))
	assert.Equal(t, 1, svc.clampHops(1))
}

func TestSynthesizerFallsBackWithoutCandidate(t *testing.T) {
	synth, err := NewSynthesizer("", testLogger())
	require.NoError(t, err)

	out := synth.Render(answerContext{Query: "anything"})
	assert.Contains(t, out, "No candidate")
}
