package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/domain/snapshot"
	"github.com/meridian-ai/meridian/pkg/apperror"
	"github.com/meridian-ai/meridian/pkg/logger"
	"github.com/meridian-ai/meridian/pkg/tracing"
)

// jobEnqueuer schedules the rebuild that follows a batch.
type jobEnqueuer interface {
	Enqueue(ctx context.Context, trigger string) (*snapshot.Job, bool, error)
}

// Service writes ingestion batches into the graph store and schedules
// the index rebuild that follows.
type Service struct {
	repo *graph.Repository
	jobs jobEnqueuer
	log  *slog.Logger
}

// NewService creates the ingest service.
func NewService(repo *graph.Repository, jobs *snapshot.JobService, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		jobs: jobs,
		log:  log.With(logger.Scope("ingest.svc")),
	}
}

// Ingest applies one batch: nodes first, then edges, so edges may
// reference nodes from the same batch. Per-record failures are collected
// into the report and the batch continues; only infrastructure failures
// abort. A batch that changed anything marks the store dirty and
// enqueues a rebuild.
func (s *Service) Ingest(ctx context.Context, req *Request) (*Report, error) {
	ctx, span := tracing.Start(ctx, "ingest.batch")
	defer span.End()

	report := &Report{Rejected: []Rejection{}}

	for _, record := range req.Nodes {
		result, err := s.repo.InsertNode(ctx, record.toModel())
		if err != nil {
			reason, fatal := rejectionReason(err)
			if fatal {
				return nil, err
			}
			report.Rejected = append(report.Rejected, Rejection{Record: record, Reason: reason})
			continue
		}
		if result.Inserted {
			report.InsertedNodes++
		} else {
			report.UpdatedNodes++
		}
	}

	for _, record := range req.Edges {
		if err := s.repo.InsertEdge(ctx, record.toModel()); err != nil {
			reason, fatal := rejectionReason(err)
			if fatal {
				return nil, err
			}
			report.Rejected = append(report.Rejected, Rejection{Record: record, Reason: reason})
			continue
		}
		report.InsertedEdges++
	}

	if report.InsertedNodes+report.UpdatedNodes+report.InsertedEdges > 0 {
		if err := s.repo.MarkDirty(ctx); err != nil {
			return nil, err
		}
		if _, _, err := s.jobs.Enqueue(ctx, snapshot.TriggerIngest); err != nil {
			return nil, err
		}
	}

	s.log.InfoContext(ctx, "ingest batch applied",
		slog.Int("inserted_nodes", report.InsertedNodes),
		slog.Int("updated_nodes", report.UpdatedNodes),
		slog.Int("inserted_edges", report.InsertedEdges),
		slog.Int("rejected", len(report.Rejected)))
	return report, nil
}

// rejectionReason maps a per-record error to a report reason. Database
// and other infrastructure errors are fatal to the whole batch.
func rejectionReason(err error) (string, bool) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		return "", true
	}
	switch appErr.Code {
	case "dangling_reference", "namespace_collision":
		return appErr.Code, false
	default:
		return "", true
	}
}
