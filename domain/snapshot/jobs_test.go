package snapshot_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/meridian-ai/meridian/domain/snapshot"
	"github.com/meridian-ai/meridian/internal/testutil"
	"github.com/meridian-ai/meridian/pkg/pgutils"
)

// JobsSuite runs against the suite database directly instead of the
// per-test transaction, matching how the worker sees the queue. Writes
// are not rolled back, so each test clears the queue itself.
type JobsSuite struct {
	testutil.BaseSuite
	svc *snapshot.JobService
}

func TestJobsSuite(t *testing.T) {
	suite.Run(t, new(JobsSuite))
}

func (s *JobsSuite) SetupSuite() {
	s.SetDBSuffix("snapjobs")
	s.BaseSuite.SetupSuite()
}

func (s *JobsSuite) SetupTest() {
	s.SkipIfExternalServer("needs direct queue access")
	s.BaseSuite.SetupTest()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = snapshot.NewJobService(s.TestDB.DB, nil, log)
	s.clearJobs()
}

func (s *JobsSuite) TearDownTest() {
	if !s.IsExternal() {
		s.clearJobs()
	}
	s.BaseSuite.TearDownTest()
}

func (s *JobsSuite) clearJobs() {
	_, err := s.TestDB.DB.NewDelete().
		Model((*snapshot.Job)(nil)).
		Where("TRUE").
		Exec(s.Ctx)
	s.Require().NoError(err)
}

func (s *JobsSuite) TestEnqueueCreatesPendingJob() {
	job, created, err := s.svc.Enqueue(s.Ctx, "manual")
	s.Require().NoError(err)
	s.True(created)
	s.NotEqual("", job.ID.String())
	s.Equal("manual", job.Trigger)
	s.Equal("pending", job.Status)
}

func (s *JobsSuite) TestEnqueueAbsorbsSecondRequest() {
	first, created, err := s.svc.Enqueue(s.Ctx, "ingest")
	s.Require().NoError(err)
	s.Require().True(created)

	second, created, err := s.svc.Enqueue(s.Ctx, "manual")
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, second.ID)
	// The absorbed request does not overwrite the original trigger.
	s.Equal("ingest", second.Trigger)
}

func (s *JobsSuite) TestSinglePendingIndexRejectsDirectInsert() {
	_, created, err := s.svc.Enqueue(s.Ctx, "manual")
	s.Require().NoError(err)
	s.Require().True(created)

	// Bypass the service's pre-check the way a racing enqueue would.
	dup := &snapshot.Job{Trigger: "manual"}
	_, err = s.TestDB.DB.NewInsert().Model(dup).Exec(s.Ctx)
	s.Require().Error(err)
	s.True(pgutils.IsUniqueViolation(err))
}

func (s *JobsSuite) TestHasPending() {
	pending, err := s.svc.HasPending(s.Ctx)
	s.Require().NoError(err)
	s.False(pending)

	_, _, err = s.svc.Enqueue(s.Ctx, "manual")
	s.Require().NoError(err)

	pending, err = s.svc.HasPending(s.Ctx)
	s.Require().NoError(err)
	s.True(pending)
}
