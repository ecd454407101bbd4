package scheduler

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/domain/query"
	"github.com/meridian-ai/meridian/domain/snapshot"
	"github.com/meridian-ai/meridian/internal/config"
)

// Module provides scheduled task functionality
var Module = fx.Module("scheduler",
	fx.Provide(
		NewScheduler,
	),
	fx.Invoke(
		RegisterTasks,
		RegisterSchedulerLifecycle,
	),
)

// TaskParams contains dependencies for creating scheduled tasks
type TaskParams struct {
	fx.In
	Scheduler *Scheduler
	Repo      *graph.Repository
	Jobs      *snapshot.JobService
	Exporter  *snapshot.Exporter
	Holder    *snapshot.Holder
	Cache     *query.Cache
	Log       *slog.Logger
	Cfg       *config.Config
}

// RegisterTasks registers all scheduled tasks
func RegisterTasks(p TaskParams) error {
	if !p.Cfg.Scheduler.Enabled {
		p.Log.Info("scheduler disabled, skipping task registration")
		return nil
	}

	rebuildTask := NewRebuildCheckTask(p.Repo, p.Jobs, p.Log)
	if err := p.Scheduler.AddIntervalTask("rebuild_check",
		p.Cfg.Scheduler.RebuildCheckInterval, rebuildTask.Run); err != nil {
		p.Log.Error("failed to register rebuild check task",
			slog.String("error", err.Error()))
	}

	if p.Cfg.Scheduler.ArchiveCron != "" {
		archiveTask := NewArchiveExportTask(p.Exporter, p.Log)
		if err := p.Scheduler.AddCronTask("archive_export",
			p.Cfg.Scheduler.ArchiveCron, archiveTask.Run); err != nil {
			p.Log.Error("failed to register archive export task",
				slog.String("error", err.Error()))
		}

		if days := p.Cfg.Scheduler.ArchiveRetentionDays; days > 0 {
			retentionTask := NewArchiveRetentionTask(p.Exporter,
				time.Duration(days)*24*time.Hour, p.Log)
			if err := p.Scheduler.AddCronTask("archive_retention",
				p.Cfg.Scheduler.ArchiveCron, retentionTask.Run); err != nil {
				p.Log.Error("failed to register archive retention task",
					slog.String("error", err.Error()))
			}
		}
	}

	statsTask := NewStatsTask(p.Holder, p.Cache, p.Log)
	if err := p.Scheduler.AddIntervalTask("serving_stats",
		p.Cfg.Scheduler.StatsInterval, statsTask.Run); err != nil {
		p.Log.Error("failed to register stats task",
			slog.String("error", err.Error()))
	}

	p.Log.Info("registered scheduled tasks",
		slog.Any("tasks", p.Scheduler.ListTasks()))

	return nil
}

// RegisterSchedulerLifecycle registers the scheduler with fx lifecycle
func RegisterSchedulerLifecycle(lc fx.Lifecycle, scheduler *Scheduler, cfg *config.Config) {
	if !cfg.Scheduler.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}
