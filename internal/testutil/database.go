package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/internal/migrate"
)

// Databases are cloned from a migrated template so that per-suite setup is a
// cheap CREATE DATABASE ... TEMPLATE instead of a full migration run. The
// template is built at most once per process.
const templateDBName = "go_test_template"

var (
	templateOnce sync.Once
	templateErr  error
)

// TestDB owns a throwaway database created for one test suite. The database
// is dropped on Close. Per-test isolation comes from BeginTestTx/RollbackTestTx
// rather than truncation.
type TestDB struct {
	Config *config.Config
	Pool   *pgxpool.Pool
	DB     *bun.DB
	Name   string

	cleanup func()

	tx    bun.Tx
	hasTx bool
}

// SetupTestDB provisions a fresh database named go_test_<suffix>_<nanos>,
// cloned from the migrated template. The base PostgreSQL instance comes from
// the usual environment configuration.
func SetupTestDB(ctx context.Context, suffix string) (*TestDB, error) {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	baseCfg, err := config.NewConfig(log)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	templateOnce.Do(func() {
		templateErr = buildTemplateDB(ctx, baseCfg, log)
	})
	if templateErr != nil {
		return nil, fmt.Errorf("ensure template db: %w", templateErr)
	}

	name := fmt.Sprintf("go_test_%s_%d", suffix, time.Now().UnixNano())
	if err := cloneTemplate(ctx, baseCfg, name); err != nil {
		return nil, err
	}
	log.Info("created test database from template", slog.String("name", name))

	testCfg := *baseCfg
	testCfg.Database.Database = name

	pool, err := openPool(ctx, &testCfg)
	if err != nil {
		dropDatabase(ctx, baseCfg, name)
		return nil, fmt.Errorf("connect to test db: %w", err)
	}
	bunDB := bun.NewDB(stdlib.OpenDBFromPool(pool), pgdialect.New())

	return &TestDB{
		Config: &testCfg,
		Pool:   pool,
		DB:     bunDB,
		Name:   name,
		cleanup: func() {
			bunDB.Close()
			pool.Close()
			dropDatabase(context.Background(), baseCfg, name)
		},
	}, nil
}

// Close drops the suite database and releases its connections.
func (t *TestDB) Close() {
	if t.cleanup != nil {
		t.cleanup()
	}
}

// GetDB returns the handle test code should run queries through. While a
// per-test transaction is open it returns that transaction, so rollback
// discards everything the test wrote.
func (t *TestDB) GetDB() bun.IDB {
	if t.hasTx {
		return t.tx
	}
	return t.DB
}

// BeginTestTx opens the per-test transaction surfaced by GetDB.
func (t *TestDB) BeginTestTx(ctx context.Context) error {
	if t.hasTx {
		return fmt.Errorf("transaction already started")
	}
	tx, err := t.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	t.tx = tx
	t.hasTx = true
	return nil
}

// RollbackTestTx discards the per-test transaction. Calling it without an
// open transaction is a no-op.
func (t *TestDB) RollbackTestTx() error {
	if !t.hasTx {
		return nil
	}
	err := t.tx.Rollback()
	t.hasTx = false
	return err
}

// buildTemplateDB creates the template database, installs the extensions the
// schema needs and applies the embedded migrations. Runs once per process.
func buildTemplateDB(ctx context.Context, baseCfg *config.Config, log *slog.Logger) error {
	admin, err := openAdminPool(ctx, baseCfg)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer admin.Close()

	var exists bool
	err = admin.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", templateDBName,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check template exists: %w", err)
	}
	if exists {
		return nil
	}

	log.Info("creating template database", slog.String("name", templateDBName))
	if _, err := admin.Exec(ctx, "CREATE DATABASE "+templateDBName); err != nil {
		return fmt.Errorf("create template db: %w", err)
	}

	templateCfg := *baseCfg
	templateCfg.Database.Database = templateDBName
	pool, err := openPool(ctx, &templateCfg)
	if err != nil {
		dropDatabase(ctx, baseCfg, templateDBName)
		return fmt.Errorf("connect to template db: %w", err)
	}
	defer pool.Close()

	for _, ext := range []string{"pgcrypto", `"uuid-ossp"`} {
		if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS "+ext); err != nil {
			dropDatabase(ctx, baseCfg, templateDBName)
			return fmt.Errorf("create extension %s: %w", ext, err)
		}
	}

	sqldb := stdlib.OpenDBFromPool(pool)
	defer sqldb.Close()
	if err := migrate.RunWithDB(ctx, sqldb); err != nil {
		dropDatabase(ctx, baseCfg, templateDBName)
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func cloneTemplate(ctx context.Context, baseCfg *config.Config, name string) error {
	admin, err := openAdminPool(ctx, baseCfg)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer admin.Close()

	_, err = admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s TEMPLATE %s", name, templateDBName))
	if err != nil {
		return fmt.Errorf("create test db from template: %w", err)
	}
	return nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = 5
	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// openAdminPool connects to the maintenance database so we can create and
// drop the per-suite databases.
func openAdminPool(ctx context.Context, baseCfg *config.Config) (*pgxpool.Pool, error) {
	adminCfg := *baseCfg
	adminCfg.Database.Database = "postgres"
	return openPool(ctx, &adminCfg)
}

// dropDatabase terminates lingering sessions and drops the database. Failures
// are ignored; a leaked go_test_* database is harmless and visible.
func dropDatabase(ctx context.Context, baseCfg *config.Config, name string) {
	admin, err := openAdminPool(ctx, baseCfg)
	if err != nil {
		return
	}
	defer admin.Close()

	_, _ = admin.Exec(ctx, fmt.Sprintf(
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = '%s' AND pid <> pg_backend_pid()", name))
	_, _ = admin.Exec(ctx, "DROP DATABASE IF EXISTS "+name)
}
