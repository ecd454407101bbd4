// Package main provides the entry point for the Meridian API server
//
// @title Meridian API
// @version 0.3.0
// @description Hybrid retrieval engine over a typed knowledge graph
// @host localhost:5300
// @BasePath /
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description API token (format: "Bearer <token>")
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/domain/health"
	"github.com/meridian-ai/meridian/domain/ingest"
	"github.com/meridian-ai/meridian/domain/mcp"
	"github.com/meridian-ai/meridian/domain/monitoring"
	"github.com/meridian-ai/meridian/domain/pathindex"
	"github.com/meridian-ai/meridian/domain/query"
	"github.com/meridian-ai/meridian/domain/scheduler"
	"github.com/meridian-ai/meridian/domain/snapshot"
	"github.com/meridian-ai/meridian/domain/tracing"
	"github.com/meridian-ai/meridian/domain/traversal"
	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/internal/database"
	"github.com/meridian-ai/meridian/internal/server"
	"github.com/meridian-ai/meridian/internal/storage"
	"github.com/meridian-ai/meridian/pkg/auth"
	"github.com/meridian-ai/meridian/pkg/embeddings"
	"github.com/meridian-ai/meridian/pkg/logger"
)

func main() {
	// Load .env files if present (for local development)
	// Order matters: .env.local overrides .env
	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local")

	fx.New(
		// Logging
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		server.Module,
		storage.Module,
		tracing.Module,

		// Auth module
		auth.Module,

		// Embeddings module (provides the embedding client)
		embeddings.Module,

		// Domain modules
		health.Module,
		graph.Module,
		pathindex.Module,
		snapshot.Module,
		query.Module,
		traversal.Module,
		ingest.Module,
		monitoring.Module,
		mcp.Module,

		// Scheduler module (cron-based background tasks)
		scheduler.Module,
	).Run()
}
