package pathindex_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/domain/pathindex"
)

func node(id string, seq int64) *graph.Node {
	return &graph.Node{ID: id, Type: "command", Name: id, Seq: seq}
}

func edge(from, to string) *graph.Edge {
	return &graph.Edge{FromID: from, ToID: to, Type: "leads_to", Weight: 1}
}

func defaultOpts() pathindex.Options {
	return pathindex.Options{MaxDepth: 4, MaxNodesVisited: 10000, Parallelism: 4}
}

func chainView() *graph.View {
	// a -> b -> c -> d -> e -> f (5 hops end to end)
	nodes := []*graph.Node{
		node("a", 1), node("b", 2), node("c", 3), node("d", 4), node("e", 5), node("f", 6),
	}
	edges := []*graph.Edge{
		edge("a", "b"), edge("b", "c"), edge("c", "d"), edge("d", "e"), edge("e", "f"),
	}
	return graph.NewView(nodes, edges)
}

func findEntry(entries []pathindex.Entry, start, end string, dir pathindex.Direction) *pathindex.Entry {
	for i := range entries {
		e := &entries[i]
		if e.StartID == start && e.EndID == end && e.Direction == dir {
			return e
		}
	}
	return nil
}

func TestBuild_ChainDepthBound(t *testing.T) {
	res, err := pathindex.Build(context.Background(), chainView(), uuid.New(), defaultOpts())
	require.NoError(t, err)

	// From a: b, c, d, e are within 4 hops; f is 5 away and not indexed.
	for i, end := range []string{"b", "c", "d", "e"} {
		e := findEntry(res.Entries, "a", end, pathindex.DirectionForward)
		require.NotNil(t, e, "missing forward entry a -> %s", end)
		assert.Equal(t, i+1, e.Length)
		assert.False(t, e.Partial)
	}
	assert.Nil(t, findEntry(res.Entries, "a", "f", pathindex.DirectionForward))
	assert.Zero(t, res.Overflowed)
	assert.Zero(t, res.Mirrored)

	// Witness intermediates for a -> d are exactly b, c.
	e := findEntry(res.Entries, "a", "d", pathindex.DirectionForward)
	require.NotNil(t, e)
	assert.Equal(t, []string{"b", "c"}, e.NodeSequence)
	assert.Equal(t, []string{"a", "b", "c", "d"}, e.Path())
}

func TestBuild_BidirectionalPairing(t *testing.T) {
	res, err := pathindex.Build(context.Background(), chainView(), uuid.New(), defaultOpts())
	require.NoError(t, err)

	for _, e := range res.Entries {
		if e.Direction != pathindex.DirectionForward {
			continue
		}
		rev := findEntry(res.Entries, e.EndID, e.StartID, pathindex.DirectionReverse)
		require.NotNil(t, rev, "forward %s -> %s has no reverse pair", e.StartID, e.EndID)
		assert.Equal(t, e.Length, rev.Length)
	}
}

func TestBuild_DeterministicAcrossRuns(t *testing.T) {
	buildID := uuid.New()

	first, err := pathindex.Build(context.Background(), chainView(), buildID, defaultOpts())
	require.NoError(t, err)

	// Different parallelism must not change the output.
	opts := defaultOpts()
	opts.Parallelism = 1
	second, err := pathindex.Build(context.Background(), chainView(), buildID, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Entries, second.Entries)
}

func TestBuild_WitnessTieBreaksLexicographically(t *testing.T) {
	// Two equal-length paths x -> d: via b and via c.
	nodes := []*graph.Node{node("x", 1), node("c", 2), node("b", 3), node("d", 4)}
	edges := []*graph.Edge{
		edge("x", "c"), edge("c", "d"),
		edge("x", "b"), edge("b", "d"),
	}
	view := graph.NewView(nodes, edges)

	res, err := pathindex.Build(context.Background(), view, uuid.New(), defaultOpts())
	require.NoError(t, err)

	e := findEntry(res.Entries, "x", "d", pathindex.DirectionForward)
	require.NotNil(t, e)
	assert.Equal(t, 2, e.Length)
	assert.Equal(t, []string{"b"}, e.NodeSequence)
}

func TestBuild_ShortestPathWins(t *testing.T) {
	// z -> d directly and z -> c -> d; only the 1-hop entry is stored.
	nodes := []*graph.Node{node("z", 1), node("c", 2), node("d", 3)}
	edges := []*graph.Edge{edge("z", "d"), edge("z", "c"), edge("c", "d")}
	view := graph.NewView(nodes, edges)

	res, err := pathindex.Build(context.Background(), view, uuid.New(), defaultOpts())
	require.NoError(t, err)

	e := findEntry(res.Entries, "z", "d", pathindex.DirectionForward)
	require.NotNil(t, e)
	assert.Equal(t, 1, e.Length)
	assert.Empty(t, e.NodeSequence)
}

func TestBuild_CapTruncatesAndMirrors(t *testing.T) {
	// hub fans out to t01..t10; the cap admits the hub plus 4 targets.
	nodes := []*graph.Node{node("hub", 1)}
	var edges []*graph.Edge
	targets := []string{"t01", "t02", "t03", "t04", "t05", "t06", "t07", "t08", "t09", "t10"}
	for i, id := range targets {
		nodes = append(nodes, node(id, int64(i+2)))
		edges = append(edges, edge("hub", id))
	}
	view := graph.NewView(nodes, edges)

	opts := defaultOpts()
	opts.MaxNodesVisited = 5

	res, err := pathindex.Build(context.Background(), view, uuid.New(), opts)
	require.NoError(t, err)

	// Truncation keeps the lexicographically smallest targets and flags
	// their entries partial. Only the hub's forward run overflows: each
	// target's runs visit at most two nodes.
	assert.Equal(t, 1, res.Overflowed)
	for _, id := range []string{"t01", "t02", "t03", "t04"} {
		e := findEntry(res.Entries, "hub", id, pathindex.DirectionForward)
		require.NotNil(t, e, "expected %s to survive truncation", id)
		assert.True(t, e.Partial)
	}
	assert.Nil(t, findEntry(res.Entries, "hub", "t05", pathindex.DirectionForward))

	// Kept forward entries still have their reverse pairs, found by the
	// targets' own runs.
	for _, id := range []string{"t01", "t02", "t03", "t04"} {
		rev := findEntry(res.Entries, id, "hub", pathindex.DirectionReverse)
		require.NotNil(t, rev)
		assert.Equal(t, 1, rev.Length)
	}
}

func TestBuild_MirrorRestoresTruncatedReverse(t *testing.T) {
	// Many spokes point at the collector, so the collector's reverse run
	// overflows. Each spoke's forward entry must still find its reverse
	// pair, synthesized if need be.
	nodes := []*graph.Node{node("collector", 1)}
	var edges []*graph.Edge
	spokes := []string{"s01", "s02", "s03", "s04", "s05", "s06", "s07", "s08"}
	for i, id := range spokes {
		nodes = append(nodes, node(id, int64(i+2)))
		edges = append(edges, edge(id, "collector"))
	}
	view := graph.NewView(nodes, edges)

	opts := defaultOpts()
	opts.MaxNodesVisited = 4

	res, err := pathindex.Build(context.Background(), view, uuid.New(), opts)
	require.NoError(t, err)
	require.Positive(t, res.Mirrored)

	for _, id := range spokes {
		fwd := findEntry(res.Entries, id, "collector", pathindex.DirectionForward)
		require.NotNil(t, fwd, "spoke %s lost its forward entry", id)

		rev := findEntry(res.Entries, "collector", id, pathindex.DirectionReverse)
		require.NotNil(t, rev, "no reverse pair for %s -> collector", id)
		assert.Equal(t, fwd.Length, rev.Length)
	}

	// Synthesized entries are flagged partial like the truncated run that
	// made them necessary.
	mirrored := findEntry(res.Entries, "collector", "s08", pathindex.DirectionReverse)
	require.NotNil(t, mirrored)
	assert.True(t, mirrored.Partial)
}

func TestBuild_MirrorRestoresTruncatedForward(t *testing.T) {
	// The fan-out node's forward run overflows, but each spoke's reverse
	// run still reaches it. Those reverse entries must get synthesized
	// forward pairs, not dangle alone.
	nodes := []*graph.Node{node("fan", 1)}
	var edges []*graph.Edge
	spokes := []string{"s01", "s02", "s03", "s04"}
	for i, id := range spokes {
		nodes = append(nodes, node(id, int64(i+2)))
		edges = append(edges, edge("fan", id))
	}
	view := graph.NewView(nodes, edges)

	opts := defaultOpts()
	opts.MaxNodesVisited = 3

	res, err := pathindex.Build(context.Background(), view, uuid.New(), opts)
	require.NoError(t, err)
	require.Positive(t, res.Mirrored)

	for _, id := range spokes {
		rev := findEntry(res.Entries, id, "fan", pathindex.DirectionReverse)
		require.NotNil(t, rev, "spoke %s lost its reverse entry", id)

		fwd := findEntry(res.Entries, "fan", id, pathindex.DirectionForward)
		require.NotNil(t, fwd, "no forward pair for fan -> %s", id)
		assert.Equal(t, rev.Length, fwd.Length)
	}

	mirrored := findEntry(res.Entries, "fan", "s04", pathindex.DirectionForward)
	require.NotNil(t, mirrored)
	assert.True(t, mirrored.Partial)
}

func TestBuild_SelfLoopIgnored(t *testing.T) {
	nodes := []*graph.Node{node("solo", 1)}
	edges := []*graph.Edge{edge("solo", "solo")}
	view := graph.NewView(nodes, edges)

	res, err := pathindex.Build(context.Background(), view, uuid.New(), defaultOpts())
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
}

func TestBuild_EmptyGraph(t *testing.T) {
	view := graph.NewView(nil, nil)

	res, err := pathindex.Build(context.Background(), view, uuid.New(), defaultOpts())
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.Zero(t, res.Overflowed)
}
