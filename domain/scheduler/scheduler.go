package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/meridian-ai/meridian/pkg/logger"
)

// TaskFunc is the signature of a scheduled task. The context carries the
// per-run timeout.
type TaskFunc func(ctx context.Context) error

// taskTimeout bounds a single task run. Archive exports of large
// snapshots are the slowest task and finish well inside this.
const taskTimeout = 30 * time.Minute

// Scheduler runs the engine's background tasks on cron expressions or
// fixed intervals. Tasks are registered by name; re-registering a name
// replaces the previous entry.
type Scheduler struct {
	cron    *cron.Cron
	log     *slog.Logger
	mu      sync.RWMutex
	entries map[string]cron.EntryID
	running bool
}

// NewScheduler creates a scheduler with seconds-precision cron parsing.
func NewScheduler(log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		log:     log.With(logger.Scope("scheduler")),
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins firing registered tasks. Idempotent.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.cron.Start()
	s.running = true
	s.log.Info("scheduler started", slog.Int("tasks", len(s.entries)))
	return nil
}

// Stop waits for in-flight tasks, bounded by the caller's context.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out with tasks still running")
	}
	s.running = false
	return nil
}

// AddCronTask registers a task on a six-field cron expression
// (seconds first).
func (s *Scheduler) AddCronTask(name, schedule string, task TaskFunc) error {
	if err := s.register(name, schedule, task); err != nil {
		return err
	}
	s.log.Info("registered cron task",
		slog.String("name", name),
		slog.String("schedule", schedule))
	return nil
}

// AddIntervalTask registers a task that fires every interval.
func (s *Scheduler) AddIntervalTask(name string, interval time.Duration, task TaskFunc) error {
	if err := s.register(name, "@every "+interval.String(), task); err != nil {
		return err
	}
	s.log.Info("registered interval task",
		slog.String("name", name),
		slog.Duration("interval", interval))
	return nil
}

func (s *Scheduler) register(name, schedule string, task TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}

	id, err := s.cron.AddFunc(schedule, func() { s.run(name, task) })
	if err != nil {
		return err
	}
	s.entries[name] = id
	return nil
}

// RemoveTask unregisters a task. Unknown names are ignored.
func (s *Scheduler) RemoveTask(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
		s.log.Info("removed task", slog.String("name", name))
	}
}

func (s *Scheduler) run(name string, task TaskFunc) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	if err := task(ctx); err != nil {
		s.log.Error("scheduled task failed",
			slog.String("name", name),
			logger.Error(err),
			slog.Duration("duration", time.Since(start)))
		return
	}

	s.log.Debug("scheduled task completed",
		slog.String("name", name),
		slog.Duration("duration", time.Since(start)))
}

// ListTasks returns the registered task names.
func (s *Scheduler) ListTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// TaskInfo describes one registered task's schedule state.
type TaskInfo struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"next_run"`
	PrevRun time.Time `json:"prev_run,omitempty"`
}

// GetTaskInfo reports next/previous fire times for every task.
func (s *Scheduler) GetTaskInfo() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var info []TaskInfo
	for name, id := range s.entries {
		for _, entry := range s.cron.Entries() {
			if entry.ID == id {
				info = append(info, TaskInfo{
					Name:    name,
					NextRun: entry.Next,
					PrevRun: entry.Prev,
				})
				break
			}
		}
	}
	return info
}

// IsRunning reports whether the scheduler has been started.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
