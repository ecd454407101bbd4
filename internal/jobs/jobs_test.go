package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfigDefaults(t *testing.T) {
	q := NewQueue(nil, Config{Table: "engine.index_jobs"}, testLogger())

	assert.Equal(t, time.Minute, q.cfg.RetryBase)
	assert.Equal(t, time.Hour, q.cfg.RetryCap)
	assert.Equal(t, 10, q.cfg.BatchSize)
	assert.Zero(t, q.cfg.MaxAttempts)
}

func TestConfigExplicitValuesKept(t *testing.T) {
	cfg := Config{
		Table:       "engine.index_jobs",
		MaxAttempts: 3,
		RetryBase:   30 * time.Second,
		RetryCap:    10 * time.Minute,
		BatchSize:   1,
	}
	q := NewQueue(nil, cfg, testLogger())

	assert.Equal(t, cfg, q.cfg)
}

func TestRetryDelayGrowsQuadratically(t *testing.T) {
	q := NewQueue(nil, Config{Table: "t", RetryBase: time.Minute}, testLogger())

	assert.Equal(t, time.Minute, q.retryDelay(1))
	assert.Equal(t, 4*time.Minute, q.retryDelay(2))
	assert.Equal(t, 9*time.Minute, q.retryDelay(3))
}

func TestRetryDelayIsCapped(t *testing.T) {
	q := NewQueue(nil, Config{Table: "t", RetryBase: time.Minute, RetryCap: 5 * time.Minute}, testLogger())

	assert.Equal(t, 4*time.Minute, q.retryDelay(2))
	assert.Equal(t, 5*time.Minute, q.retryDelay(3))
	assert.Equal(t, 5*time.Minute, q.retryDelay(10))
}

func TestWorkerStartStop(t *testing.T) {
	cfg := DefaultWorkerConfig("index_rebuild")
	cfg.PollInterval = 10 * time.Millisecond
	w := NewWorker(cfg, nil, testLogger(), func(context.Context) error { return nil })

	require.False(t, w.IsRunning())
	require.NoError(t, w.Start(t.Context()))
	assert.True(t, w.IsRunning())

	// Start is idempotent.
	require.NoError(t, w.Start(t.Context()))

	require.NoError(t, w.Stop(t.Context()))
	assert.False(t, w.IsRunning())

	// Stop is idempotent too.
	require.NoError(t, w.Stop(t.Context()))
}

func TestWorkerInvokesProcessOnInterval(t *testing.T) {
	var calls atomic.Int32
	cfg := DefaultWorkerConfig("index_rebuild")
	cfg.PollInterval = 5 * time.Millisecond

	w := NewWorker(cfg, nil, testLogger(), func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, w.Start(t.Context()))
	defer w.Stop(context.Background())

	assert.Eventually(t, func() bool { return calls.Load() >= 3 },
		time.Second, 5*time.Millisecond)
}

func TestWorkerSurvivesProcessErrors(t *testing.T) {
	var calls atomic.Int32
	cfg := DefaultWorkerConfig("index_rebuild")
	cfg.PollInterval = 5 * time.Millisecond

	w := NewWorker(cfg, nil, testLogger(), func(context.Context) error {
		calls.Add(1)
		return errors.New("build exploded")
	})
	require.NoError(t, w.Start(t.Context()))
	defer w.Stop(context.Background())

	assert.Eventually(t, func() bool { return calls.Load() >= 2 },
		time.Second, 5*time.Millisecond)
	assert.True(t, w.IsRunning())
}

func TestWorkerStopWaitsForInFlightCall(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	cfg := DefaultWorkerConfig("index_rebuild")
	cfg.PollInterval = time.Millisecond
	w := NewWorker(cfg, nil, testLogger(), func(context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		finished.Store(true)
		return nil
	})
	require.NoError(t, w.Start(t.Context()))

	<-started
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	require.NoError(t, w.Stop(t.Context()))
	assert.True(t, finished.Load())
}

func TestWorkerConfigDefaultsApplied(t *testing.T) {
	w := NewWorker(WorkerConfig{Name: "index_rebuild"}, nil, testLogger(), func(context.Context) error { return nil })

	assert.Equal(t, 5*time.Second, w.cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, w.cfg.StaleAfter)
}
