// Package database provides the pgx connection pool, the bun ORM handle
// built on top of it, and the advisory locks serializing index builds.
package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/fx"

	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/pkg/logger"
)

const slowQueryThreshold = 3 * time.Second

var Module = fx.Module("database",
	fx.Provide(
		NewPgxPool,
		NewBunDB,
		// Most repositories take bun.IDB so tests can hand them a tx.
		fx.Annotate(
			func(db *bun.DB) bun.IDB { return db },
			fx.As(new(bun.IDB)),
		),
	),
)

// NewPgxPool opens and pings the connection pool, closing it on shutdown.
func NewPgxPool(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	log = log.With(logger.Scope("database"))

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnIdleTime = cfg.Database.MaxIdleTime

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("database pool created",
		slog.String("host", cfg.Database.Host),
		slog.Int("port", cfg.Database.Port),
		slog.String("database", cfg.Database.Database),
		slog.Int("max_conns", cfg.Database.MaxOpenConns))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			log.Info("closing database pool")
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

// NewBunDB wraps the pgx pool in a bun handle with the Postgres dialect.
func NewBunDB(lc fx.Lifecycle, pool *pgxpool.Pool, cfg *config.Config, log *slog.Logger) (*bun.DB, error) {
	log = log.With(logger.Scope("bun"))

	db := bun.NewDB(stdlib.OpenDBFromPool(pool), pgdialect.New())
	if cfg.Database.QueryDebug {
		db.AddQueryHook(&queryLogHook{log: log})
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			log.Info("closing bun database")
			return db.Close()
		},
	})
	return db, nil
}

// queryLogHook logs failed and slow queries; everything else at debug.
type queryLogHook struct {
	log *slog.Logger
}

func (h *queryLogHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)
	attrs := []any{
		slog.String("query", event.Query),
		slog.Duration("duration", duration),
	}

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.log.Error("query error", append(attrs, logger.Error(event.Err))...)
	case duration > slowQueryThreshold:
		h.log.Warn("slow query", attrs...)
	default:
		h.log.Debug("query", attrs...)
	}
}

// LockIndexBuild is the advisory lock key serializing index builds across
// processes. Arbitrary but stable; changing it would let two deployments
// build concurrently.
const LockIndexBuild int64 = 7_430_001

// Lease is a session-level advisory lock pinned to a dedicated connection.
// Session locks belong to the connection that took them; routing the lock
// and unlock through the pool would land them on different sessions, so the
// connection stays out of the pool for the lease's whole lifetime.
type Lease struct {
	conn *sql.Conn
	key  int64
}

// TryAcquireLease takes the advisory lock on a dedicated connection without
// blocking. Returns a nil lease when another session holds the lock.
func TryAcquireLease(ctx context.Context, db *bun.DB, key int64) (*Lease, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("lease connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, fmt.Errorf("try advisory lock %d: %w", key, err)
	}
	if !acquired {
		conn.Close()
		return nil, nil
	}
	return &Lease{conn: conn.Conn, key: key}, nil
}

// Release unlocks and returns the connection to the pool. When the unlock
// fails the connection is discarded instead of returned, so the lock dies
// with the session rather than leaking into the pool.
func (l *Lease) Release(ctx context.Context) error {
	var released bool
	err := l.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", l.key).Scan(&released)
	if err == nil && !released {
		err = fmt.Errorf("advisory unlock %d: lock was not held", l.key)
	}
	if err != nil {
		_ = l.conn.Raw(func(any) error { return driver.ErrBadConn })
		l.conn.Close()
		return err
	}
	return l.conn.Close()
}
