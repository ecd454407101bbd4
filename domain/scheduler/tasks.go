package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/domain/query"
	"github.com/meridian-ai/meridian/domain/snapshot"
	"github.com/meridian-ai/meridian/pkg/logger"
)

// RebuildCheckTask enqueues an index rebuild when the graph has changed
// since the serving snapshot was built. The job queue deduplicates, so
// firing while a rebuild is already pending is a no-op.
type RebuildCheckTask struct {
	repo *graph.Repository
	jobs *snapshot.JobService
	log  *slog.Logger
}

// NewRebuildCheckTask creates a new rebuild check task.
func NewRebuildCheckTask(repo *graph.Repository, jobs *snapshot.JobService, log *slog.Logger) *RebuildCheckTask {
	return &RebuildCheckTask{
		repo: repo,
		jobs: jobs,
		log:  log.With(logger.Scope("scheduler.rebuild_check")),
	}
}

// Run checks the dirty flag and enqueues a rebuild if set.
func (t *RebuildCheckTask) Run(ctx context.Context) error {
	dirty, err := t.repo.IsDirty(ctx)
	if err != nil {
		t.log.Error("failed to check dirty flag", logger.Error(err))
		return err
	}
	if !dirty {
		return nil
	}

	job, created, err := t.jobs.Enqueue(ctx, snapshot.TriggerSchedule)
	if err != nil {
		t.log.Error("failed to enqueue rebuild", logger.Error(err))
		return err
	}
	if created {
		t.log.Info("graph changed, rebuild enqueued", slog.String("job_id", job.ID.String()))
	}
	return nil
}

// ArchiveExportTask exports the serving snapshot to archive storage.
type ArchiveExportTask struct {
	exporter *snapshot.Exporter
	log      *slog.Logger
}

// NewArchiveExportTask creates a new archive export task.
func NewArchiveExportTask(exporter *snapshot.Exporter, log *slog.Logger) *ArchiveExportTask {
	return &ArchiveExportTask{
		exporter: exporter,
		log:      log.With(logger.Scope("scheduler.archive")),
	}
}

// Run writes the current snapshot to the archive bucket.
func (t *ArchiveExportTask) Run(ctx context.Context) error {
	if !t.exporter.Enabled() {
		return nil
	}

	start := time.Now()
	key, err := t.exporter.Export(ctx)
	if err != nil {
		t.log.Error("snapshot archive export failed", logger.Error(err))
		return err
	}

	t.log.Info("snapshot archived",
		slog.String("key", key),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// ArchiveRetentionTask prunes archive objects older than the retention
// window.
type ArchiveRetentionTask struct {
	exporter  *snapshot.Exporter
	retention time.Duration
	log       *slog.Logger
}

// NewArchiveRetentionTask creates a new archive retention task.
func NewArchiveRetentionTask(exporter *snapshot.Exporter, retention time.Duration, log *slog.Logger) *ArchiveRetentionTask {
	return &ArchiveRetentionTask{
		exporter:  exporter,
		retention: retention,
		log:       log.With(logger.Scope("scheduler.archive_retention")),
	}
}

// Run deletes archives exported before the retention cutoff.
func (t *ArchiveRetentionTask) Run(ctx context.Context) error {
	if !t.exporter.Enabled() {
		return nil
	}

	pruned, err := t.exporter.Prune(ctx, time.Now().UTC().Add(-t.retention))
	if err != nil {
		t.log.Error("archive retention failed", logger.Error(err))
		return err
	}
	if pruned > 0 {
		t.log.Info("archive retention pruned objects", slog.Int("count", pruned))
	}
	return nil
}

// StatsTask periodically logs serving snapshot and query cache statistics.
type StatsTask struct {
	holder *snapshot.Holder
	cache  *query.Cache
	log    *slog.Logger
}

// NewStatsTask creates a new stats logging task.
func NewStatsTask(holder *snapshot.Holder, cache *query.Cache, log *slog.Logger) *StatsTask {
	return &StatsTask{
		holder: holder,
		cache:  cache,
		log:    log.With(logger.Scope("scheduler.stats")),
	}
}

// Run logs a one-line summary of the serving state.
func (t *StatsTask) Run(ctx context.Context) error {
	stats := t.cache.Stats()

	attrs := []any{
		slog.Int("cache_entries", stats.Entries),
		slog.Int64("cache_hits", stats.Hits),
		slog.Int64("cache_misses", stats.Misses),
		slog.Int64("cache_evictions", stats.Evictions),
	}

	if snap := t.holder.Current(); snap != nil {
		attrs = append(attrs,
			slog.Int64("build_seq", snap.BuildSeq),
			slog.Int("nodes", snap.View.NodeCount()),
			slog.Int("edges", snap.View.EdgeCount()),
			slog.Int("path_entries", snap.Paths.Size()),
			slog.Int("vectors", snap.Vectors.Size()))
	} else {
		attrs = append(attrs, slog.Bool("snapshot_available", false))
	}

	t.log.Info("serving stats", attrs...)
	return nil
}
