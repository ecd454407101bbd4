// Command migrate applies or rolls back the embedded database migrations.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/internal/migrate"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local")

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.NewConfig(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN())))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	ctx := context.Background()
	m := migrate.NewMigrator(db, log)

	switch command {
	case "up":
		err = m.Up(ctx)
	case "up-to":
		var version int64
		version, err = parseVersion(flag.Arg(1))
		if err == nil {
			err = m.UpTo(ctx, version)
		}
	case "down":
		err = m.Down(ctx)
	case "status":
		err = m.Status(ctx)
	case "version":
		var version int64
		version, err = m.Version(ctx)
		if err == nil {
			fmt.Println(version)
		}
	case "mark-applied":
		var version int64
		version, err = parseVersion(flag.Arg(1))
		if err == nil {
			err = m.MarkApplied(ctx, version)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseVersion(arg string) (int64, error) {
	if arg == "" {
		return 0, fmt.Errorf("version argument required")
	}
	return strconv.ParseInt(arg, 10, 64)
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate <command> [args]

Commands:
  up                  Apply all pending migrations
  up-to <version>     Apply migrations up to a specific version
  down                Roll back the last migration
  status              Show migration status
  version             Print the current database version
  mark-applied <ver>  Mark a migration as applied without running it

Connection settings come from the environment (POSTGRES_* variables).`)
}
