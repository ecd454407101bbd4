package ingest

import (
	"log/slog"

	"github.com/meridian-ai/meridian/domain/graph"
)

// NewServiceForTest builds a Service with a caller-supplied enqueuer so the
// external test package can stub job scheduling.
func NewServiceForTest(repo *graph.Repository, jobs jobEnqueuer, log *slog.Logger) *Service {
	return &Service{repo: repo, jobs: jobs, log: log}
}
