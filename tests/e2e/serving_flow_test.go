package e2e

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/meridian-ai/meridian/domain/traversal"
	"github.com/meridian-ai/meridian/internal/testutil"
)

type ServingFlowSuite struct {
	testutil.BaseSuite
}

func (s *ServingFlowSuite) SetupSuite() {
	s.SetDBSuffix("serving_flow")
	s.BaseSuite.SetupSuite()
}

// seedBatch is a small cross-stack corpus: two git commands, the object
// store they feed, and a CI runner that watches it.
func seedBatch() map[string]any {
	return map[string]any{
		"nodes": []map[string]any{
			{
				"id": "git:commit", "type": "command", "name": "git commit",
				"description":     "Record staged changes as a new commit",
				"intent_keywords": []string{"save changes", "record history"},
				"namespace":       "git",
				"metadata":        map[string]any{"stack": "git"},
			},
			{
				"id": "git:reset", "type": "command", "name": "git reset",
				"description":     "Undo the last commit keeping working tree changes",
				"intent_keywords": []string{"undo commit", "rollback"},
				"namespace":       "git",
				"metadata":        map[string]any{"stack": "git"},
			},
			{
				"id": "git:object_store", "type": "resource", "name": "object store",
				"description": "Content addressed storage under .git/objects",
				"namespace":   "git",
				"metadata":    map[string]any{"stack": "git"},
			},
			{
				"id": "ci:runner", "type": "service", "name": "ci runner",
				"description":     "Executes pipelines when new commits land",
				"intent_keywords": []string{"run tests"},
				"namespace":       "ci",
				"metadata":        map[string]any{"stack": "ci"},
			},
		},
		"edges": []map[string]any{
			{"from_id": "git:commit", "to_id": "git:object_store", "type": "stored_in"},
			{"from_id": "git:commit", "to_id": "git:reset", "type": "undone_by"},
			{"from_id": "ci:runner", "to_id": "git:object_store", "type": "reads"},
		},
	}
}

// buildServingSnapshot ingests the seed batch and brings a snapshot into
// service. In-process we drain the job queue directly; against an
// external server we poll the status endpoint.
func (s *ServingFlowSuite) buildServingSnapshot() {
	report, err := s.Client.Ingest(seedBatch(), s.Token)
	s.Require().NoError(err)
	s.Require().Empty(report.Rejected)

	if s.IsExternal() {
		s.Require().NoError(s.Client.WaitForSnapshot(s.Token, 30*time.Second))
		return
	}
	s.Require().NoError(s.Server.Jobs.ProcessNext(s.Ctx))
}

func (s *ServingFlowSuite) TestIngestReportsCounts() {
	report, err := s.Client.Ingest(seedBatch(), s.Token)
	s.Require().NoError(err)

	s.Equal(4, report.InsertedNodes)
	s.Equal(0, report.UpdatedNodes)
	s.Equal(3, report.InsertedEdges)
	s.Empty(report.Rejected)

	// Re-ingesting the same batch upserts nodes in place.
	report, err = s.Client.Ingest(seedBatch(), s.Token)
	s.Require().NoError(err)
	s.Equal(0, report.InsertedNodes)
	s.Equal(4, report.UpdatedNodes)
}

func (s *ServingFlowSuite) TestIngestRejectsDanglingEdge() {
	report, err := s.Client.Ingest(map[string]any{
		"nodes": []map[string]any{
			{"id": "git:stash", "type": "command", "name": "git stash", "namespace": "git"},
		},
		"edges": []map[string]any{
			{"from_id": "git:stash", "to_id": "git:nowhere", "type": "related_to"},
		},
	}, s.Token)
	s.Require().NoError(err)

	s.Equal(1, report.InsertedNodes)
	s.Equal(0, report.InsertedEdges)
	s.Require().Len(report.Rejected, 1)
	s.Equal("dangling_reference", report.Rejected[0].Reason)
}

func (s *ServingFlowSuite) TestIngestRejectsMalformedBatch() {
	rec := s.Client.POST("/api/ingest",
		testutil.WithAuth(s.Token),
		testutil.WithJSONBody(map[string]any{
			"nodes": []map[string]any{
				{"id": "git:x", "type": "command"}, // name missing
			},
		}),
	)
	s.Equal(http.StatusBadRequest, rec.StatusCode, "Response: %s", rec.String())
}

func (s *ServingFlowSuite) TestIndexStatusAfterBuild() {
	s.buildServingSnapshot()

	status, err := s.Client.IndexStatus(s.Token)
	s.Require().NoError(err)

	s.True(status.Serving)
	s.False(status.Dirty)
	s.Require().NotNil(status.Snapshot)
	s.Equal(4, status.Snapshot.Nodes)
	s.Equal(3, status.Snapshot.Edges)
	s.NotEmpty(status.Snapshot.Provider)
	s.Positive(status.Snapshot.PathEntries)
}

func (s *ServingFlowSuite) TestQueryRanksUndoIntent() {
	s.buildServingSnapshot()

	result, err := s.Client.RunQuery("undo the last commit", 5, s.Token)
	s.Require().NoError(err)

	s.Require().NotEmpty(result.Candidates)
	s.Equal("git:reset", result.Candidates[0].NodeID)
	s.False(result.Partial)
	s.NotEmpty(result.SnapshotID)

	// Scores arrive sorted by combined score.
	for i := 1; i < len(result.Candidates); i++ {
		s.GreaterOrEqual(
			result.Candidates[i-1].CombinedScore,
			result.Candidates[i].CombinedScore,
		)
	}
}

func (s *ServingFlowSuite) TestQueryHonorsStackFilter() {
	s.buildServingSnapshot()

	rec := s.Client.POST("/api/query",
		testutil.WithAuth(s.Token),
		testutil.WithJSONBody(map[string]any{
			"query":        "run tests on new commits",
			"stack_filter": "ci",
		}),
	)
	s.Require().Equal(http.StatusOK, rec.StatusCode, "Response: %s", rec.String())

	var result testutil.QueryResponse
	s.Require().NoError(rec.JSON(&result))
	for _, c := range result.Candidates {
		s.Equal("ci", c.Stack)
	}
}

func (s *ServingFlowSuite) TestQueryWithoutSnapshotIsUnavailable() {
	if s.IsExternal() {
		s.T().Skip("external server may already be serving a snapshot")
	}

	rec := s.Client.POST("/api/query",
		testutil.WithAuth(s.Token),
		testutil.WithJSONBody(map[string]any{"query": "anything"}),
	)
	s.Equal(http.StatusServiceUnavailable, rec.StatusCode, "Response: %s", rec.String())
}

func (s *ServingFlowSuite) TestTraverseProducesAuditTrail() {
	s.buildServingSnapshot()

	rec := s.Client.POST("/api/traverse",
		testutil.WithAuth(s.Token),
		testutil.WithJSONBody(map[string]any{"query": "undo the last commit"}),
	)
	s.Require().Equal(http.StatusOK, rec.StatusCode, "Response: %s", rec.String())

	var result traversal.Result
	s.Require().NoError(rec.JSON(&result))
	s.NotEmpty(result.Answer)
	s.NotEmpty(result.Trace)
	s.NotEmpty(result.Outcome)
}

func (s *ServingFlowSuite) TestTraverseStreamEmitsHopEvents() {
	s.buildServingSnapshot()

	rec := s.Client.GET("/api/traverse/stream?query="+
		strings.ReplaceAll("undo the last commit", " ", "%20"),
		testutil.WithAuth(s.Token),
	)
	s.Require().Equal(http.StatusOK, rec.StatusCode, "Response: %s", rec.String())

	events, err := testutil.ParseSSEResponse(strings.NewReader(rec.String()))
	s.Require().NoError(err)
	s.Require().NotEmpty(events)

	// The stream always terminates with a done event and never errors on a
	// servable snapshot.
	s.Equal("done", events[len(events)-1].Event)
	s.Empty(testutil.EventsOfType(events, "error"))
}

func (s *ServingFlowSuite) TestGraphReadEndpoints() {
	s.buildServingSnapshot()

	rec := s.Client.GET("/api/nodes/git:commit", testutil.WithAuth(s.Token))
	s.Equal(http.StatusOK, rec.StatusCode, "Response: %s", rec.String())

	rec = s.Client.GET("/api/nodes/git:commit/neighbors", testutil.WithAuth(s.Token))
	s.Equal(http.StatusOK, rec.StatusCode, "Response: %s", rec.String())

	rec = s.Client.GET("/api/nodes/git:missing", testutil.WithAuth(s.Token))
	s.Equal(http.StatusNotFound, rec.StatusCode, "Response: %s", rec.String())

	rec = s.Client.GET("/api/graph/stats", testutil.WithAuth(s.Token))
	s.Equal(http.StatusOK, rec.StatusCode, "Response: %s", rec.String())
}

func (s *ServingFlowSuite) TestMonitoringListsRebuildJobs() {
	s.buildServingSnapshot()

	rec := s.Client.GET("/api/monitoring/index-jobs", testutil.WithAuth(s.Token))
	s.Equal(http.StatusOK, rec.StatusCode, "Response: %s", rec.String())
}

func TestServingFlowSuite(t *testing.T) {
	suite.Run(t, new(ServingFlowSuite))
}
