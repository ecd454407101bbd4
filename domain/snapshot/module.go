package snapshot

import (
	"context"
	"log/slog"
	"os"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/pkg/logger"
	"github.com/meridian-ai/meridian/pkg/syshealth"
)

// Module provides the snapshot coordinator: holder, builder, rebuild job
// queue and worker, and the index admin API.
var Module = fx.Module("snapshot",
	fx.Provide(NewHolder),
	fx.Provide(NewMonitor),
	fx.Provide(NewRepository),
	fx.Provide(NewBuilder),
	fx.Provide(NewJobService),
	fx.Provide(NewExporter),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(RegisterWorker),
	fx.Invoke(BootstrapServing),
)

// NewMonitor wires the system health monitor used to scale build
// concurrency under load. Zone thresholds come from HEALTH_ZONES_PATH when
// set.
func NewMonitor(lc fx.Lifecycle, db *bun.DB, log *slog.Logger) (syshealth.Monitor, error) {
	zones, err := syshealth.LoadConfig(os.Getenv("HEALTH_ZONES_PATH"))
	if err != nil {
		return nil, err
	}
	monitor := syshealth.NewMonitor(zones, db, log)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return monitor.Start() },
		OnStop:  func(context.Context) error { return monitor.Stop() },
	})
	return monitor, nil
}

// RegisterWorker starts the rebuild job worker with the fx lifecycle.
func RegisterWorker(lc fx.Lifecycle, svc *JobService, cfg *config.Config, log *slog.Logger) {
	worker := NewWorker(svc, cfg, log)
	lc.Append(fx.Hook{
		OnStart: worker.Start,
		OnStop:  worker.Stop,
	})
}

// BootstrapServing restores a serving snapshot at startup: reload the
// persisted index when one exists, and enqueue a rebuild when the graph is
// dirty, a rebuild is forced, or nothing has ever been built.
func BootstrapServing(lc fx.Lifecycle, builder *Builder, svc *JobService, cfg *config.Config, log *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			loaded, err := builder.LoadPersisted(ctx)
			if err != nil {
				log.Warn("could not load persisted snapshot", logger.Error(err))
			}

			dirty, err := builder.graphs.IsDirty(ctx)
			if err != nil {
				return err
			}

			if !loaded || dirty || cfg.Indexing.RebuildOnStart {
				if _, _, err := svc.Enqueue(ctx, TriggerStartup); err != nil {
					return err
				}
			}
			return nil
		},
	})
}
