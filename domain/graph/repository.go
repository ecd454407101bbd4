package graph

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/meridian-ai/meridian/pkg/apperror"
	"github.com/meridian-ai/meridian/pkg/logger"
	"github.com/meridian-ai/meridian/pkg/pgutils"
)

// Direction selects which edges a neighbor query follows.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// ParseDirection validates a direction string, defaulting to "both".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "both":
		return DirectionBoth, nil
	case "out":
		return DirectionOut, nil
	case "in":
		return DirectionIn, nil
	default:
		return "", apperror.ErrBadRequest.WithMessage("direction must be one of out, in, both")
	}
}

// Repository handles database operations for the graph store.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new graph repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("graph.repo")),
	}
}

// InsertResult reports whether an upsert created or replaced a node.
type InsertResult struct {
	Inserted bool
	Updated  bool
}

// InsertNode upserts a node by id. A raw id already claimed by a node in a
// different namespace is a namespace collision: the write is rejected and
// the caller decides how to re-key. Namespace never changes on overwrite.
func (r *Repository) InsertNode(ctx context.Context, node *Node) (*InsertResult, error) {
	return r.insertNode(ctx, r.db, node)
}

func (r *Repository) insertNode(ctx context.Context, db bun.IDB, node *Node) (*InsertResult, error) {
	var existingNS string
	err := db.NewSelect().
		Model((*Node)(nil)).
		Column("namespace").
		Where("id = ?", node.ID).
		Scan(ctx, &existingNS)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	exists := err == nil
	if exists && existingNS != node.Namespace {
		return nil, apperror.ErrNamespaceCollision.WithDetails(map[string]any{
			"id":                  node.ID,
			"existing_namespace":  existingNS,
			"requested_namespace": node.Namespace,
		})
	}

	_, err = db.NewInsert().
		Model(node).
		On("CONFLICT (id) DO UPDATE").
		Set("type = EXCLUDED.type").
		Set("name = EXCLUDED.name").
		Set("description = EXCLUDED.description").
		Set("intent_keywords = EXCLUDED.intent_keywords").
		Set("metadata = EXCLUDED.metadata").
		Set("updated_at = now()").
		Exec(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	if exists {
		return &InsertResult{Updated: true}, nil
	}
	return &InsertResult{Inserted: true}, nil
}

// InsertEdge upserts an edge by (from_id, to_id, type). Both endpoints must
// exist: a missing one surfaces as a dangling reference error, never a
// silent drop.
func (r *Repository) InsertEdge(ctx context.Context, edge *Edge) error {
	return r.insertEdge(ctx, r.db, edge)
}

func (r *Repository) insertEdge(ctx context.Context, db bun.IDB, edge *Edge) error {
	_, err := db.NewInsert().
		Model(edge).
		On("CONFLICT (from_id, to_id, type) DO UPDATE").
		Set("weight = EXCLUDED.weight").
		Set("source = EXCLUDED.source").
		Exec(ctx)
	if err != nil {
		if pgutils.IsForeignKeyViolation(err) {
			return apperror.ErrDanglingReference.WithDetails(map[string]any{
				"from_id": edge.FromID,
				"to_id":   edge.ToID,
				"type":    edge.Type,
			})
		}
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// GetNode returns a node by id.
func (r *Repository) GetNode(ctx context.Context, id string) (*Node, error) {
	node := new(Node)
	err := r.db.NewSelect().
		Model(node).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNodeNotFound.WithDetails(map[string]any{"id": id})
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return node, nil
}

// Neighbor pairs an adjacent node with the edge that connects it.
type Neighbor struct {
	Node *Node `json:"node"`
	Edge *Edge `json:"edge"`
}

// Neighbors returns nodes adjacent to the given node, optionally filtered
// by edge type. Results are ordered by neighbor id then edge type.
func (r *Repository) Neighbors(ctx context.Context, nodeID string, edgeType string, direction Direction) ([]Neighbor, error) {
	if _, err := r.GetNode(ctx, nodeID); err != nil {
		return nil, err
	}

	neighbors := []Neighbor{}

	if direction == DirectionOut || direction == DirectionBoth {
		out, err := r.adjacent(ctx, nodeID, edgeType, DirectionOut)
		if err != nil {
			return nil, err
		}
		neighbors = append(neighbors, out...)
	}
	if direction == DirectionIn || direction == DirectionBoth {
		in, err := r.adjacent(ctx, nodeID, edgeType, DirectionIn)
		if err != nil {
			return nil, err
		}
		neighbors = append(neighbors, in...)
	}

	return neighbors, nil
}

func (r *Repository) adjacent(ctx context.Context, nodeID, edgeType string, direction Direction) ([]Neighbor, error) {
	ownColumn, joinColumn := "from_id", "to_id"
	if direction == DirectionIn {
		ownColumn, joinColumn = "to_id", "from_id"
	}

	var edges []*Edge
	q := r.db.NewSelect().
		Model(&edges).
		Where("? = ?", bun.Ident(ownColumn), nodeID)
	if edgeType != "" {
		q = q.Where("type = ?", edgeType)
	}
	if err := q.OrderExpr("? ASC, type ASC", bun.Ident(joinColumn)).Scan(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	if len(edges) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		if direction == DirectionIn {
			ids = append(ids, e.FromID)
		} else {
			ids = append(ids, e.ToID)
		}
	}

	var nodes []*Node
	err := r.db.NewSelect().
		Model(&nodes).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	byID := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	result := make([]Neighbor, 0, len(edges))
	for i, e := range edges {
		id := ids[i]
		if n, ok := byID[id]; ok {
			result = append(result, Neighbor{Node: n, Edge: e})
		}
	}
	return result, nil
}

// LoadView reads the full graph into an immutable View. Both reads run in
// one repeatable-read transaction so the view is a consistent cut.
func (r *Repository) LoadView(ctx context.Context) (*View, error) {
	var nodes []*Node
	var edges []*Edge

	err := r.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(&nodes).Order("seq ASC").Scan(ctx); err != nil {
			return err
		}
		return tx.NewSelect().Model(&edges).Scan(ctx)
	})
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	return NewView(nodes, edges), nil
}

// LoadEmbeddings reads all stored vectors for one provider namespace.
func (r *Repository) LoadEmbeddings(ctx context.Context, provider string) ([]*Embedding, error) {
	var rows []*Embedding
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider = ?", provider).
		Order("node_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rows, nil
}

// UpsertEmbedding stores a vector for a (node, provider) pair, replacing
// any previous one and refreshing the cached norm.
func (r *Repository) UpsertEmbedding(ctx context.Context, emb *Embedding) error {
	_, err := r.db.NewInsert().
		Model(emb).
		On("CONFLICT (node_id, provider) DO UPDATE").
		Set("dimension = EXCLUDED.dimension").
		Set("components = EXCLUDED.components").
		Set("norm = EXCLUDED.norm").
		Set("updated_at = now()").
		Exec(ctx)
	if err != nil {
		if pgutils.IsForeignKeyViolation(err) {
			return apperror.ErrNodeNotFound.WithDetails(map[string]any{"id": emb.NodeID})
		}
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// MissingEmbeddings returns nodes that have no stored vector under the
// given provider namespace, in seq order.
func (r *Repository) MissingEmbeddings(ctx context.Context, provider string, limit int) ([]*Node, error) {
	var nodes []*Node
	q := r.db.NewSelect().
		Model(&nodes).
		Where("NOT EXISTS (SELECT 1 FROM engine.embeddings emb WHERE emb.node_id = n.id AND emb.provider = ?)", provider).
		Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return nodes, nil
}

// Stats summarizes the stored graph.
type Stats struct {
	NodeCount      int            `json:"node_count"`
	EdgeCount      int            `json:"edge_count"`
	EmbeddingCount int            `json:"embedding_count"`
	Namespaces     map[string]int `json:"namespaces"`
	NodeTypes      map[string]int `json:"node_types"`
	EdgeTypes      map[string]int `json:"edge_types"`
	Dirty          bool           `json:"dirty"`
	LastModifiedAt *time.Time     `json:"last_modified_at,omitempty"`
}

// GetStats returns counts over the stored graph plus the dirty flag.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Namespaces: map[string]int{},
		NodeTypes:  map[string]int{},
		EdgeTypes:  map[string]int{},
	}

	var err error
	if stats.NodeCount, err = r.db.NewSelect().Model((*Node)(nil)).Count(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	if stats.EdgeCount, err = r.db.NewSelect().Model((*Edge)(nil)).Count(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	if stats.EmbeddingCount, err = r.db.NewSelect().Model((*Embedding)(nil)).Count(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	if err := r.countBy(ctx, "engine.nodes", "namespace", stats.Namespaces); err != nil {
		return nil, err
	}
	if err := r.countBy(ctx, "engine.nodes", "type", stats.NodeTypes); err != nil {
		return nil, err
	}
	if err := r.countBy(ctx, "engine.edges", "type", stats.EdgeTypes); err != nil {
		return nil, err
	}

	meta, err := r.getMeta(ctx)
	if err != nil {
		return nil, err
	}
	stats.Dirty = meta.Dirty
	stats.LastModifiedAt = meta.LastModifiedAt

	return stats, nil
}

func (r *Repository) countBy(ctx context.Context, table, column string, into map[string]int) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM "+table+" GROUP BY "+column)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}
		into[key] = count
	}
	return rows.Err()
}

// MarkDirty records that the graph changed since the last snapshot build.
func (r *Repository) MarkDirty(ctx context.Context) error {
	return r.markDirty(ctx, r.db)
}

func (r *Repository) markDirty(ctx context.Context, db bun.IDB) error {
	_, err := db.NewUpdate().
		Model((*graphMeta)(nil)).
		Set("dirty = true").
		Set("last_modified_at = now()").
		Set("updated_at = now()").
		Where("id = 1").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// ClearDirty resets the dirty flag after a successful snapshot build.
func (r *Repository) ClearDirty(ctx context.Context) error {
	_, err := r.db.NewUpdate().
		Model((*graphMeta)(nil)).
		Set("dirty = false").
		Set("updated_at = now()").
		Where("id = 1").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// IsDirty reports whether the graph changed since the last snapshot build.
func (r *Repository) IsDirty(ctx context.Context) (bool, error) {
	meta, err := r.getMeta(ctx)
	if err != nil {
		return false, err
	}
	return meta.Dirty, nil
}

func (r *Repository) getMeta(ctx context.Context) (*graphMeta, error) {
	meta := new(graphMeta)
	err := r.db.NewSelect().Model(meta).Where("id = 1").Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &graphMeta{ID: 1}, nil
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return meta, nil
}

// ListMergeLog returns merge audit entries, newest first.
func (r *Repository) ListMergeLog(ctx context.Context, limit, offset int) ([]*MergeLogEntry, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	var entries []*MergeLogEntry
	total, err := r.db.NewSelect().
		Model(&entries).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, apperror.ErrDatabase.WithInternal(err)
	}
	return entries, total, nil
}
