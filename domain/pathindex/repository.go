package pathindex

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/meridian-ai/meridian/pkg/logger"
)

// insertChunk bounds multi-row INSERT statements during a replace.
const insertChunk = 1000

// Repository persists path entries. The index is a derived artifact:
// writes replace the whole table, reads load it back for serving.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a path index repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("pathindex.repo"))}
}

// Replace swaps the stored index for a freshly built entry set in one
// transaction. Readers load either the old build or the new one, never a
// mix.
func (r *Repository) Replace(ctx context.Context, entries []Entry) error {
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Entry)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return fmt.Errorf("clear path index: %w", err)
		}

		for start := 0; start < len(entries); start += insertChunk {
			end := start + insertChunk
			if end > len(entries) {
				end = len(entries)
			}
			chunk := entries[start:end]
			if _, err := tx.NewInsert().Model(&chunk).Exec(ctx); err != nil {
				return fmt.Errorf("insert path entries: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info("path index replaced", slog.Int("entries", len(entries)))
	return nil
}

// LoadAll reads the stored index in deterministic order.
func (r *Repository) LoadAll(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := r.db.NewSelect().
		Model(&entries).
		Order("start_id ASC", "direction ASC", "length ASC", "end_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load path index: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (r *Repository) Count(ctx context.Context) (int, error) {
	return r.db.NewSelect().Model((*Entry)(nil)).Count(ctx)
}
