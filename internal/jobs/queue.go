// Package jobs implements the PostgreSQL-backed queue behind index rebuild
// work. Claims use FOR UPDATE SKIP LOCKED so several server instances can
// poll the same table without double-running a build, and failures retry
// with a quadratic backoff until the attempt cap is hit.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
)

// Job lifecycle states as stored in the status column.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const maxErrorLen = 500

// Config describes one queue table. Table must be schema-qualified.
type Config struct {
	Table string
	// MaxAttempts caps retries; 0 retries forever.
	MaxAttempts int
	// RetryBase is the first retry delay. Delay grows as base * attempt^2
	// and never exceeds RetryCap.
	RetryBase time.Duration
	RetryCap  time.Duration
	// BatchSize is the claim size when Dequeue is called with limit <= 0.
	BatchSize int
}

func (c *Config) applyDefaults() {
	if c.RetryBase <= 0 {
		c.RetryBase = time.Minute
	}
	if c.RetryCap <= 0 {
		c.RetryCap = time.Hour
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
}

// Queue claims, completes, and retries jobs in a single PostgreSQL table.
type Queue struct {
	db  bun.IDB
	cfg Config
	log *slog.Logger
}

func NewQueue(db bun.IDB, cfg Config, log *slog.Logger) *Queue {
	cfg.applyDefaults()
	return &Queue{db: db, cfg: cfg, log: log}
}

// Dequeue atomically claims up to limit due jobs and returns their IDs.
// Claimed rows move to 'processing'; concurrent callers skip each other's
// locked rows.
func (q *Queue) Dequeue(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = q.cfg.BatchSize
	}

	// CTE keeps the claim atomic; bun's builder cannot express SKIP LOCKED
	// combined with UPDATE ... FROM.
	query := fmt.Sprintf(`
		WITH due AS (
			SELECT id FROM %s
			WHERE status = 'pending' AND scheduled_at <= now()
			ORDER BY priority DESC, scheduled_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		)
		UPDATE %s j
		SET status = 'processing', started_at = now(), updated_at = now()
		FROM due WHERE j.id = due.id
		RETURNING j.id`,
		q.cfg.Table, q.cfg.Table)

	var ids []string
	if _, err := q.db.NewRaw(query, limit).Exec(ctx, &ids); err != nil {
		return nil, fmt.Errorf("dequeue %s: %w", q.cfg.Table, err)
	}
	return ids, nil
}

// MarkCompleted finishes a claimed job.
func (q *Queue) MarkCompleted(ctx context.Context, id string) error {
	query := fmt.Sprintf(
		`UPDATE %s SET status = 'completed', completed_at = now(), updated_at = now() WHERE id = $1`,
		q.cfg.Table)
	if _, err := q.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	return nil
}

// MarkFailed records a failure for a job that had already made prevAttempts
// attempts. Under the attempt cap the job goes back to 'pending' with a
// backoff delay; at the cap it is failed permanently.
func (q *Queue) MarkFailed(ctx context.Context, id string, prevAttempts int, errMsg string) error {
	attempt := prevAttempts + 1
	if len(errMsg) > maxErrorLen {
		errMsg = errMsg[:maxErrorLen]
	}

	if q.cfg.MaxAttempts > 0 && attempt >= q.cfg.MaxAttempts {
		query := fmt.Sprintf(
			`UPDATE %s SET status = 'failed', attempts = $2, last_error = $3, updated_at = now() WHERE id = $1`,
			q.cfg.Table)
		if _, err := q.db.ExecContext(ctx, query, id, attempt, errMsg); err != nil {
			return fmt.Errorf("fail job %s: %w", id, err)
		}
		q.log.Warn("job failed permanently",
			slog.String("job_id", id),
			slog.Int("attempts", attempt),
			slog.String("error", errMsg))
		return nil
	}

	delay := q.retryDelay(attempt)
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = 'pending', attempts = $2, last_error = $3,
			scheduled_at = now() + ($4 || ' seconds')::interval, updated_at = now()
		WHERE id = $1`,
		q.cfg.Table)
	if _, err := q.db.ExecContext(ctx, query, id, attempt, errMsg, int(delay.Seconds())); err != nil {
		return fmt.Errorf("retry job %s: %w", id, err)
	}

	q.log.Debug("job scheduled for retry",
		slog.String("job_id", id),
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay))
	return nil
}

func (q *Queue) retryDelay(attempt int) time.Duration {
	d := q.cfg.RetryBase * time.Duration(attempt*attempt)
	if d > q.cfg.RetryCap {
		return q.cfg.RetryCap
	}
	return d
}

// RecoverStale releases jobs stuck in 'processing' longer than olderThan,
// typically after a crash mid-build. Returns how many were released.
func (q *Queue) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		olderThan = 10 * time.Minute
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET status = 'pending', started_at = NULL, scheduled_at = now(), updated_at = now()
		WHERE status = 'processing' AND started_at < now() - ($1 || ' seconds')::interval`,
		q.cfg.Table)

	res, err := q.db.ExecContext(ctx, query, int(olderThan.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	count, _ := res.RowsAffected()
	if count > 0 {
		q.log.Warn("recovered stale jobs",
			slog.Int64("count", count),
			slog.Duration("older_than", olderThan))
	}
	return int(count), nil
}

// Stats is the per-status row count of the queue table.
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

func (q *Queue) GetStats(ctx context.Context) (*Stats, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM %s`, q.cfg.Table)

	stats := new(Stats)
	err := q.db.QueryRowContext(ctx, query).
		Scan(&stats.Pending, &stats.Processing, &stats.Completed, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return stats, nil
}

// GetJobByID scans the full job row into dest. A missing row scans nothing
// and returns nil.
func (q *Queue) GetJobByID(ctx context.Context, id string, dest any) error {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1`, q.cfg.Table)
	err := q.db.NewRaw(query, id).Scan(ctx, dest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
