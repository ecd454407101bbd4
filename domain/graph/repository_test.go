package graph_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/internal/testutil"
	"github.com/meridian-ai/meridian/pkg/apperror"
)

type RepositorySuite struct {
	testutil.BaseSuite
	repo *graph.Repository
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	s.SetDBSuffix("graphrepo")
	s.BaseSuite.SetupSuite()
}

func (s *RepositorySuite) SetupTest() {
	s.BaseSuite.SetupTest()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.repo = graph.NewRepository(s.DB(), log)
}

func (s *RepositorySuite) appCode(err error) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func (s *RepositorySuite) TestInsertNode_InsertThenUpdate() {
	node := &graph.Node{
		ID:        "git:commit",
		Type:      "command",
		Name:      "git commit",
		Namespace: "git",
	}

	res, err := s.repo.InsertNode(s.Ctx, node)
	s.Require().NoError(err)
	s.True(res.Inserted)
	s.False(res.Updated)

	node.Name = "git commit (updated)"
	node.IntentKeywords = []string{"save changes"}
	res, err = s.repo.InsertNode(s.Ctx, node)
	s.Require().NoError(err)
	s.True(res.Updated)

	got, err := s.repo.GetNode(s.Ctx, "git:commit")
	s.Require().NoError(err)
	s.Equal("git commit (updated)", got.Name)
	s.Equal([]string{"save changes"}, got.IntentKeywords)
	s.Equal("git", got.Namespace)
}

func (s *RepositorySuite) TestInsertNode_NamespaceCollision() {
	first := &graph.Node{ID: "shared:id", Type: "command", Name: "first", Namespace: "git"}
	_, err := s.repo.InsertNode(s.Ctx, first)
	s.Require().NoError(err)

	second := &graph.Node{ID: "shared:id", Type: "command", Name: "second", Namespace: "ci"}
	_, err = s.repo.InsertNode(s.Ctx, second)
	s.Require().Error(err)
	s.Equal("namespace_collision", s.appCode(err))

	// The original write is untouched.
	got, err := s.repo.GetNode(s.Ctx, "shared:id")
	s.Require().NoError(err)
	s.Equal("first", got.Name)
	s.Equal("git", got.Namespace)
}

func (s *RepositorySuite) TestInsertEdge_DanglingReference() {
	node := &graph.Node{ID: "git:commit", Type: "command", Name: "git commit", Namespace: "git"}
	_, err := s.repo.InsertNode(s.Ctx, node)
	s.Require().NoError(err)

	err = s.repo.InsertEdge(s.Ctx, &graph.Edge{
		FromID: "git:commit",
		ToID:   "git:missing",
		Type:   "produces",
		Weight: 1.0,
	})
	s.Require().Error(err)
	s.Equal("dangling_reference", s.appCode(err))
}

func (s *RepositorySuite) TestInsertEdge_UpsertUpdatesWeight() {
	s.Require().NoError(testutil.SeedToolGraph(s.Ctx, s.DB()))

	edge := &graph.Edge{FromID: "git:commit", ToID: "git:commit_object", Type: "produces", Weight: 0.5}
	s.Require().NoError(s.repo.InsertEdge(s.Ctx, edge))

	var weight float64
	err := s.DB().NewSelect().
		Table("engine.edges").
		Column("weight").
		Where("from_id = ? AND to_id = ? AND type = ?", "git:commit", "git:commit_object", "produces").
		Scan(s.Ctx, &weight)
	s.Require().NoError(err)
	s.InDelta(0.5, weight, 1e-9)
}

func (s *RepositorySuite) TestGetNode_NotFound() {
	_, err := s.repo.GetNode(s.Ctx, "nope")
	s.Require().Error(err)
	s.Equal("node_not_found", s.appCode(err))
}

func (s *RepositorySuite) TestNeighbors_Directions() {
	s.Require().NoError(testutil.SeedToolGraph(s.Ctx, s.DB()))

	out, err := s.repo.Neighbors(s.Ctx, "git:commit_object", "", graph.DirectionOut)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal("git:object_store", out[0].Node.ID)

	in, err := s.repo.Neighbors(s.Ctx, "git:commit_object", "", graph.DirectionIn)
	s.Require().NoError(err)
	s.Require().Len(in, 2)
	s.Equal("ci:runner", in[0].Node.ID)
	s.Equal("git:commit", in[1].Node.ID)

	both, err := s.repo.Neighbors(s.Ctx, "git:commit_object", "", graph.DirectionBoth)
	s.Require().NoError(err)
	s.Len(both, 3)

	reads, err := s.repo.Neighbors(s.Ctx, "git:commit_object", "reads", graph.DirectionIn)
	s.Require().NoError(err)
	s.Require().Len(reads, 1)
	s.Equal("ci:runner", reads[0].Node.ID)
}

func (s *RepositorySuite) TestNeighbors_UnknownNode() {
	_, err := s.repo.Neighbors(s.Ctx, "nope", "", graph.DirectionBoth)
	s.Require().Error(err)
	s.Equal("node_not_found", s.appCode(err))
}

func (s *RepositorySuite) TestLoadView() {
	s.Require().NoError(testutil.SeedToolGraph(s.Ctx, s.DB()))

	view, err := s.repo.LoadView(s.Ctx)
	s.Require().NoError(err)

	s.Equal(4, view.NodeCount())
	s.Equal(3, view.EdgeCount())
	s.NotNil(view.Node("git:commit"))
	s.Len(view.OutEdges("git:commit"), 1)
	s.Len(view.InEdges("git:commit_object"), 2)
}

func (s *RepositorySuite) TestEmbeddings_UpsertAndMissing() {
	s.Require().NoError(testutil.SeedToolGraph(s.Ctx, s.DB()))

	emb := &graph.Embedding{
		NodeID:     "git:commit",
		Provider:   "hash-256",
		Dimension:  3,
		Components: []float32{0.6, 0.8, 0.0},
		Norm:       1.0,
	}
	s.Require().NoError(s.repo.UpsertEmbedding(s.Ctx, emb))

	stored, err := s.repo.LoadEmbeddings(s.Ctx, "hash-256")
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal("git:commit", stored[0].NodeID)
	s.Equal([]float32{0.6, 0.8, 0.0}, stored[0].Components)

	missing, err := s.repo.MissingEmbeddings(s.Ctx, "hash-256", 0)
	s.Require().NoError(err)
	s.Len(missing, 3)
	for _, n := range missing {
		s.NotEqual("git:commit", n.ID)
	}

	// A different provider namespace has no vectors yet.
	missing, err = s.repo.MissingEmbeddings(s.Ctx, "text-embedding-004", 0)
	s.Require().NoError(err)
	s.Len(missing, 4)
}

func (s *RepositorySuite) TestUpsertEmbedding_UnknownNode() {
	err := s.repo.UpsertEmbedding(s.Ctx, &graph.Embedding{
		NodeID:     "nope",
		Provider:   "hash-256",
		Dimension:  1,
		Components: []float32{1},
		Norm:       1,
	})
	s.Require().Error(err)
	s.Equal("node_not_found", s.appCode(err))
}

func (s *RepositorySuite) TestStatsAndDirtyFlag() {
	s.Require().NoError(testutil.SeedToolGraph(s.Ctx, s.DB()))

	stats, err := s.repo.GetStats(s.Ctx)
	s.Require().NoError(err)
	s.Equal(4, stats.NodeCount)
	s.Equal(3, stats.EdgeCount)
	s.Equal(3, stats.Namespaces["git"])
	s.Equal(1, stats.Namespaces["ci"])
	s.Equal(2, stats.NodeTypes["resource"])
	s.Equal(1, stats.EdgeTypes["produces"])

	dirty, err := s.repo.IsDirty(s.Ctx)
	s.Require().NoError(err)
	s.False(dirty)

	s.Require().NoError(s.repo.MarkDirty(s.Ctx))
	dirty, err = s.repo.IsDirty(s.Ctx)
	s.Require().NoError(err)
	s.True(dirty)

	s.Require().NoError(s.repo.ClearDirty(s.Ctx))
	dirty, err = s.repo.IsDirty(s.Ctx)
	s.Require().NoError(err)
	s.False(dirty)
}

func (s *RepositorySuite) TestGetNodeEndpoint() {
	s.Require().NoError(testutil.SeedToolGraph(s.Ctx, s.DB()))

	resp := s.Client.GET("/api/nodes/git:commit", testutil.WithAuth(s.Token))
	s.Require().Equal(http.StatusOK, resp.StatusCode, resp.String())

	var node graph.Node
	s.Require().NoError(resp.JSON(&node))
	s.Equal("git:commit", node.ID)
	s.Equal("git commit", node.Name)

	resp = s.Client.GET("/api/nodes/nope", testutil.WithAuth(s.Token))
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *RepositorySuite) TestNeighborsEndpoint() {
	s.Require().NoError(testutil.SeedToolGraph(s.Ctx, s.DB()))

	resp := s.Client.GET("/api/nodes/git:commit_object/neighbors?direction=in&edge_type=reads",
		testutil.WithAuth(s.Token))
	s.Require().Equal(http.StatusOK, resp.StatusCode, resp.String())

	var body graph.NeighborsResponse
	s.Require().NoError(resp.JSON(&body))
	s.Equal(1, body.Count)
	s.Equal("ci:runner", body.Neighbors[0].Node.ID)
	s.Equal("reads", body.Neighbors[0].Edge.Type)

	resp = s.Client.GET("/api/nodes/git:commit_object/neighbors?direction=sideways",
		testutil.WithAuth(s.Token))
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *RepositorySuite) TestStatsEndpoint() {
	s.Require().NoError(testutil.SeedToolGraph(s.Ctx, s.DB()))

	resp := s.Client.GET("/api/graph/stats", testutil.WithAuth(s.Token))
	s.Require().Equal(http.StatusOK, resp.StatusCode, resp.String())

	var stats graph.Stats
	s.Require().NoError(resp.JSON(&stats))
	s.Equal(4, stats.NodeCount)
	s.Equal(3, stats.EdgeCount)
}
