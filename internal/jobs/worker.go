package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WorkerConfig configures a polling worker.
type WorkerConfig struct {
	// Name tags log records.
	Name string
	// PollInterval is the tick between process calls (default 5s).
	PollInterval time.Duration
	// StaleAfter is how long a claimed job may sit in 'processing' before
	// recovery releases it (default 10m).
	StaleAfter time.Duration
}

func DefaultWorkerConfig(name string) WorkerConfig {
	return WorkerConfig{
		Name:         name,
		PollInterval: 5 * time.Second,
		StaleAfter:   10 * time.Minute,
	}
}

// Worker drives a queue by invoking a process function on a fixed interval.
// The function claims and runs work itself; the worker only provides the
// loop, startup stale recovery, and graceful shutdown.
type Worker struct {
	cfg     WorkerConfig
	queue   *Queue
	process func(ctx context.Context) error
	log     *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	stopped chan struct{}
}

// NewWorker creates a worker. queue may be nil when the process function
// handles its own recovery; then startup recovery is skipped.
func NewWorker(cfg WorkerConfig, queue *Queue, log *slog.Logger, process func(ctx context.Context) error) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	return &Worker{
		cfg:     cfg,
		queue:   queue,
		process: process,
		log:     log.With(slog.String("worker", cfg.Name)),
	}
}

// Start launches the polling loop. Starting a running worker is a no-op.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stop = make(chan struct{})
	w.stopped = make(chan struct{})
	w.mu.Unlock()

	if w.queue != nil {
		if _, err := w.queue.RecoverStale(ctx, w.cfg.StaleAfter); err != nil {
			w.log.Warn("stale job recovery failed", slog.String("error", err.Error()))
		}
	}

	w.log.Info("worker starting", slog.Duration("poll_interval", w.cfg.PollInterval))
	go w.run(ctx)
	return nil
}

// Stop halts polling and waits for an in-flight process call, up to the
// context deadline.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stop)
	w.mu.Unlock()

	select {
	case <-w.stopped:
		w.log.Info("worker stopped")
	case <-ctx.Done():
		w.log.Warn("worker stop timed out")
	}
	return nil
}

// IsRunning reports whether the polling loop is active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.process(ctx); err != nil {
				w.log.Warn("process tick failed", slog.String("error", err.Error()))
			}
		}
	}
}
