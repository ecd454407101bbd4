package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/internal/jobs"
	"github.com/meridian-ai/meridian/pkg/apperror"
	"github.com/meridian-ai/meridian/pkg/logger"
	"github.com/meridian-ai/meridian/pkg/pgutils"
)

// JobService manages the index rebuild queue. Rebuilds are requested by
// enqueueing a job; the polling worker picks it up and runs the builder.
type JobService struct {
	db      bun.IDB
	queue   *jobs.Queue
	builder *Builder
	log     *slog.Logger
}

// NewJobService creates the rebuild job service.
func NewJobService(db *bun.DB, builder *Builder, log *slog.Logger) *JobService {
	queueCfg := jobs.Config{
		Table:       "engine.index_jobs",
		MaxAttempts: 3,
		BatchSize:   1,
	}

	return &JobService{
		db:      db,
		queue:   jobs.NewQueue(db, queueCfg, log),
		builder: builder,
		log:     log.With(logger.Scope("snapshot.jobs")),
	}
}

// Enqueue requests a rebuild. A rebuild already pending or running absorbs
// the request: the running build will be re-enqueued by the dirty check if
// changes land after its graph read.
func (s *JobService) Enqueue(ctx context.Context, trigger string) (*Job, bool, error) {
	if existing, err := s.pendingJob(ctx); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	job := &Job{Trigger: trigger}
	if _, err := s.db.NewInsert().Model(job).Returning("*").Exec(ctx); err != nil {
		// A concurrent enqueue can win between the check and the insert;
		// the single-pending index turns that into a unique violation.
		if pgutils.IsUniqueViolation(err) {
			existing, lookupErr := s.pendingJob(ctx)
			if lookupErr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, apperror.ErrDatabase.WithInternal(err)
	}

	s.log.Info("rebuild enqueued",
		slog.String("job_id", job.ID.String()),
		slog.String("trigger", trigger))
	return job, true, nil
}

func (s *JobService) pendingJob(ctx context.Context) (*Job, error) {
	job := new(Job)
	err := s.db.NewSelect().
		Model(job).
		Where("status IN ('pending', 'processing')").
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return job, nil
}

// HasPending reports whether a rebuild is already queued or running.
func (s *JobService) HasPending(ctx context.Context) (bool, error) {
	count, err := s.db.NewSelect().
		Model((*Job)(nil)).
		Where("status IN ('pending', 'processing')").
		Count(ctx)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return count > 0, nil
}

// QueueStats returns job counts by status.
func (s *JobService) QueueStats(ctx context.Context) (*jobs.Stats, error) {
	return s.queue.GetStats(ctx)
}

// ListJobs returns recent rebuild jobs, newest first.
func (s *JobService) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []*Job
	err := s.db.NewSelect().
		Model(&out).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return out, nil
}

// ProcessNext claims and runs at most one rebuild job. Called by the
// polling worker; also usable directly by tests.
func (s *JobService) ProcessNext(ctx context.Context) error {
	ids, err := s.queue.Dequeue(ctx, 1)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	id := ids[0]

	job := new(Job)
	if err := s.queue.GetJobByID(ctx, id, job); err != nil {
		return err
	}

	rec, err := s.builder.Build(ctx, job.Trigger)
	if err != nil {
		s.log.Error("rebuild job failed",
			slog.String("job_id", id),
			logger.Error(err))
		return s.queue.MarkFailed(ctx, id, job.Attempts, err.Error())
	}

	if err := s.queue.MarkCompleted(ctx, id); err != nil {
		return err
	}

	stats, _ := json.Marshal(map[string]any{
		"build_id":     rec.ID.String(),
		"node_count":   rec.NodeCount,
		"edge_count":   rec.EdgeCount,
		"vector_count": rec.VectorCount,
		"path_count":   rec.PathCount,
		"overflowed":   rec.Overflowed,
		"build_ms":     rec.BuildMs,
	})
	_, err = s.db.NewUpdate().
		Model((*Job)(nil)).
		Set("stats = ?::jsonb", string(stats)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		s.log.Warn("failed to record job stats", slog.String("job_id", id), logger.Error(err))
	}
	return nil
}

// NewWorker creates the polling worker driving rebuild jobs.
func NewWorker(svc *JobService, cfg *config.Config, log *slog.Logger) *jobs.Worker {
	wc := jobs.DefaultWorkerConfig("index_rebuild")
	wc.PollInterval = cfg.Indexing.WorkerInterval()
	return jobs.NewWorker(wc, svc.queue, log, svc.ProcessNext)
}
