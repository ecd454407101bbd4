package snapshot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/domain/lexical"
	"github.com/meridian-ai/meridian/domain/pathindex"
	"github.com/meridian-ai/meridian/domain/vector"
	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/internal/database"
	"github.com/meridian-ai/meridian/pkg/apperror"
	"github.com/meridian-ai/meridian/pkg/embeddings"
	"github.com/meridian-ai/meridian/pkg/logger"
	"github.com/meridian-ai/meridian/pkg/syshealth"
	"github.com/meridian-ai/meridian/pkg/tracing"
)

// embedBatchSize bounds one EmbedDocuments call during backfill.
const embedBatchSize = 64

// Builder runs full index rebuilds: one consistent graph read, then the
// lexical, vector, and path indexes in sequence, then an atomic swap.
// Exactly one build runs at a time; the advisory lock extends that
// guarantee across processes sharing the database.
type Builder struct {
	db       *bun.DB
	graphs   *graph.Repository
	paths    *pathindex.Repository
	records  *Repository
	embedder *embeddings.Service
	holder   *Holder
	scaler   *syshealth.ConcurrencyScaler
	cfg      *config.Config
	log      *slog.Logger
}

// NewBuilder creates a snapshot builder.
func NewBuilder(
	db *bun.DB,
	graphs *graph.Repository,
	paths *pathindex.Repository,
	records *Repository,
	embedder *embeddings.Service,
	holder *Holder,
	monitor syshealth.Monitor,
	cfg *config.Config,
	log *slog.Logger,
) *Builder {
	max := cfg.Engine.BuildParallelism
	if max <= 0 {
		max = 8
	}
	return &Builder{
		db:       db,
		graphs:   graphs,
		paths:    paths,
		records:  records,
		embedder: embedder,
		holder:   holder,
		scaler:   syshealth.NewConcurrencyScaler(monitor, "path_index_build", true, 1, max),
		cfg:      cfg,
		log:      log.With(logger.Scope("snapshot.builder")),
	}
}

// Build runs one full rebuild and swaps the result in. Returns the stored
// build record. A build already running in any process sharing the
// database fails fast with ErrBuildInProgress.
func (b *Builder) Build(ctx context.Context, trigger string) (*Record, error) {
	ctx, span := tracing.Start(ctx, "snapshot.build")
	defer span.End()

	lease, err := database.TryAcquireLease(ctx, b.db, database.LockIndexBuild)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	if lease == nil {
		return nil, apperror.ErrBuildInProgress
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			b.log.Warn("build lease release failed", logger.Error(err))
		}
	}()

	start := time.Now()
	b.log.Info("snapshot build starting", slog.String("trigger", trigger))

	view, err := b.graphs.LoadView(ctx)
	if err != nil {
		return nil, err
	}

	if err := b.backfillEmbeddings(ctx, view); err != nil {
		return nil, err
	}

	lexIdx := buildLexical(view)

	vecIdx, vecCount, err := b.buildVectors(ctx)
	if err != nil {
		return nil, err
	}

	buildID := uuid.New()
	pathRes, err := pathindex.Build(ctx, view, buildID, pathindex.Options{
		MaxDepth:        b.cfg.Engine.MaxDepth,
		MaxNodesVisited: b.cfg.Engine.MaxNodesVisited,
		Parallelism:     b.scaler.GetConcurrency(b.cfg.Engine.BuildParallelism),
	})
	if err != nil {
		return nil, err
	}
	if err := b.paths.Replace(ctx, pathRes.Entries); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:                buildID,
		NodeCount:         view.NodeCount(),
		EdgeCount:         view.EdgeCount(),
		VectorCount:       vecCount,
		PathCount:         int64(len(pathRes.Entries)),
		EmbeddingProvider: b.embedder.Provider(),
		Overflowed:        pathRes.Overflowed,
		BuildMs:           time.Since(start).Milliseconds(),
		BuiltAt:           time.Now().UTC(),
	}
	if err := b.records.Insert(ctx, rec); err != nil {
		return nil, err
	}
	if err := b.graphs.ClearDirty(ctx); err != nil {
		return nil, err
	}

	b.holder.Swap(&Snapshot{
		ID:         buildID,
		BuildSeq:   rec.BuildSeq,
		View:       view,
		Lexical:    lexIdx,
		Vectors:    vecIdx,
		Paths:      pathindex.NewLookup(pathRes.Entries),
		Provider:   b.embedder.Provider(),
		Quality:    b.embedder.Quality(),
		Overflowed: pathRes.Overflowed,
		BuiltAt:    rec.BuiltAt,
	})

	b.log.Info("snapshot build completed",
		slog.String("build_id", buildID.String()),
		slog.String("trigger", trigger),
		slog.Int("nodes", rec.NodeCount),
		slog.Int("edges", rec.EdgeCount),
		slog.Int("vectors", rec.VectorCount),
		slog.Int64("path_entries", rec.PathCount),
		slog.Int("overflowed", rec.Overflowed),
		slog.Int64("build_ms", rec.BuildMs),
	)

	return rec, nil
}

// LoadPersisted reconstructs a serving snapshot from the stored path index
// and embeddings without rebuilding, used at startup when the graph is
// clean. Returns false when no completed build exists to load.
func (b *Builder) LoadPersisted(ctx context.Context) (bool, error) {
	rec, err := b.records.Latest(ctx)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	view, err := b.graphs.LoadView(ctx)
	if err != nil {
		return false, err
	}

	entries, err := b.paths.LoadAll(ctx)
	if err != nil {
		return false, err
	}

	vecIdx, _, err := b.buildVectors(ctx)
	if err != nil {
		return false, err
	}

	b.holder.Swap(&Snapshot{
		ID:         rec.ID,
		BuildSeq:   rec.BuildSeq,
		View:       view,
		Lexical:    buildLexical(view),
		Vectors:    vecIdx,
		Paths:      pathindex.NewLookup(entries),
		Provider:   b.embedder.Provider(),
		Quality:    b.embedder.Quality(),
		Overflowed: rec.Overflowed,
		BuiltAt:    rec.BuiltAt,
	})

	b.log.Info("persisted snapshot loaded",
		slog.String("build_id", rec.ID.String()),
		slog.Int("path_entries", len(entries)))
	return true, nil
}

// backfillEmbeddings generates and stores vectors for nodes the active
// provider has not embedded yet. A provider failure on one batch aborts
// the build: serving a vector index with holes would silently skew
// ranking.
func (b *Builder) backfillEmbeddings(ctx context.Context, view *graph.View) error {
	provider := b.embedder.Provider()
	missing, err := b.graphs.MissingEmbeddings(ctx, provider, 0)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	b.log.Info("backfilling embeddings",
		slog.String("provider", provider),
		slog.Int("nodes", len(missing)))

	for start := 0; start < len(missing); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		texts := make([]string, len(batch))
		for i, n := range batch {
			texts[i] = embeddingText(n)
		}

		vectors, err := b.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return apperror.ErrInternal.WithMessage("embedding backfill failed").WithInternal(err)
		}

		for i, n := range batch {
			if err := b.graphs.UpsertEmbedding(ctx, &graph.Embedding{
				NodeID:     n.ID,
				Provider:   provider,
				Dimension:  len(vectors[i]),
				Components: vectors[i],
				Norm:       vector.Norm(vectors[i]),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildVectors loads all stored vectors for the active provider into an
// immutable in-memory index.
func (b *Builder) buildVectors(ctx context.Context) (*vector.Index, int, error) {
	rows, err := b.graphs.LoadEmbeddings(ctx, b.embedder.Provider())
	if err != nil {
		return nil, 0, err
	}

	vb := vector.NewBuilder(vector.Options{
		HNSWEnabled:  b.cfg.Engine.HNSWEnabled,
		HNSWMinNodes: b.cfg.Engine.HNSWMinNodes,
		EfSearch:     b.cfg.Engine.HNSWEfSearch,
	})
	for _, row := range rows {
		vb.Add(row.Provider, row.NodeID, row.Components, row.Norm)
	}
	return vb.Build(), len(rows), nil
}

func buildLexical(view *graph.View) *lexical.Index {
	lb := lexical.NewBuilder()
	for _, n := range view.Nodes() {
		lb.Index(lexical.Document{
			NodeID:         n.ID,
			Seq:            n.Seq,
			Name:           n.Name,
			Description:    n.Description,
			IntentKeywords: n.IntentKeywords,
		})
	}
	return lb.Build()
}

// embeddingText is the node projection handed to the embedding provider.
// Intent keywords are included so curated phrasing reaches semantic
// providers too.
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
