// Command embed-nodes backfills embedding vectors for graph nodes that
// the configured provider has not embedded yet. The snapshot builder
// does the same backfill during a rebuild; this tool lets operators
// pre-warm vectors separately, with batch pacing for rate-limited
// providers.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/domain/vector"
	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/pkg/embeddings"
	"github.com/meridian-ai/meridian/pkg/embeddings/genai"
	"github.com/meridian-ai/meridian/pkg/embeddings/hash"
	"github.com/meridian-ai/meridian/pkg/embeddings/vertex"
)

func main() {
	var (
		batchSize int
		delayMs   int
		dryRun    bool
	)

	flag.IntVar(&batchSize, "batch-size", 64, "Number of nodes per embedding request")
	flag.IntVar(&delayMs, "delay", 100, "Milliseconds to sleep between batches")
	flag.BoolVar(&dryRun, "dry-run", false, "Report what would be embedded without writing")
	flag.Parse()

	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local")

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.NewConfig(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	client, provider, err := newEmbeddingClient(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating embedding client: %v\n", err)
		os.Exit(1)
	}
	log.Info("embedding client initialized", slog.String("provider", provider))

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN())))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	repo := graph.NewRepository(db, log)

	missing, err := repo.MissingEmbeddings(ctx, provider, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing nodes: %v\n", err)
		os.Exit(1)
	}
	if len(missing) == 0 {
		log.Info("all nodes already embedded", slog.String("provider", provider))
		return
	}
	log.Info("starting backfill",
		slog.Int("nodes", len(missing)),
		slog.Int("batch_size", batchSize))

	var embedded, errCount int
	for start := 0; start < len(missing); start += batchSize {
		end := start + batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		texts := make([]string, len(batch))
		for i, n := range batch {
			texts[i] = embeddingText(n)
		}

		if dryRun {
			for _, n := range batch {
				log.Info("would embed", slog.String("id", n.ID), slog.String("name", n.Name))
			}
			continue
		}

		vectors, err := client.EmbedDocuments(ctx, texts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error embedding batch: %v\n", err)
			os.Exit(1)
		}

		for i, n := range batch {
			err := repo.UpsertEmbedding(ctx, &graph.Embedding{
				NodeID:     n.ID,
				Provider:   provider,
				Dimension:  len(vectors[i]),
				Components: vectors[i],
				Norm:       vector.Norm(vectors[i]),
			})
			if err != nil {
				errCount++
				log.Warn("failed to store embedding",
					slog.String("id", n.ID),
					slog.String("error", err.Error()))
				continue
			}
			embedded++
		}

		log.Info("progress",
			slog.Int("embedded", embedded),
			slog.Int("total", len(missing)),
			slog.Int("errors", errCount))

		if delayMs > 0 {
			time.Sleep(time.Duration(delayMs) * time.Millisecond)
		}
	}

	log.Info("backfill complete",
		slog.Int("embedded", embedded),
		slog.Int("errors", errCount))
}

// newEmbeddingClient builds a provider from config, preferring Vertex AI,
// then Generative AI, then the deterministic hash provider.
func newEmbeddingClient(ctx context.Context, cfg *config.Config, log *slog.Logger) (embeddings.Client, string, error) {
	embCfg := cfg.Embeddings

	if embCfg.IsEnabled() && embCfg.UseVertexAI() {
		client, err := vertex.NewClient(ctx, vertex.Config{
			ProjectID: embCfg.GCPProjectID,
			Location:  embCfg.VertexAILocation,
			Model:     embCfg.Model,
		}, vertex.WithLogger(log))
		if err != nil {
			return nil, "", err
		}
		return client, embCfg.Model, nil
	}

	if embCfg.IsEnabled() && embCfg.GoogleAPIKey != "" {
		client, err := genai.NewClient(ctx, genai.Config{
			APIKey: embCfg.GoogleAPIKey,
			Model:  embCfg.Model,
		}, genai.WithLogger(log))
		if err != nil {
			return nil, "", err
		}
		return client, embCfg.Model, nil
	}

	return hash.NewClient(), hash.Provider, nil
}

// embeddingText builds the text a node is embedded under, matching what
// the snapshot builder embeds so vectors stay comparable.
func embeddingText(n *graph.Node) string {
	parts := []string{n.Name}
	if n.Description != "" {
		parts = append(parts, n.Description)
	}
	if len(n.IntentKeywords) > 0 {
		parts = append(parts, strings.Join(n.IntentKeywords, ", "))
	}
	return strings.Join(parts, "\n")
}
