package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/meridian-ai/meridian/pkg/apperror"
	"github.com/meridian-ai/meridian/pkg/logger"
)

// Repository persists snapshot build history.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a snapshot repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("snapshot.repo"))}
}

// Insert stores a completed build record. BuildSeq is database-assigned.
func (r *Repository) Insert(ctx context.Context, rec *Record) error {
	_, err := r.db.NewInsert().Model(rec).Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// Latest returns the most recent build record, or nil when no build has
// ever completed.
func (r *Repository) Latest(ctx context.Context) (*Record, error) {
	rec := new(Record)
	err := r.db.NewSelect().
		Model(rec).
		Order("build_seq DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rec, nil
}

// Get returns one build record, or nil when the id is unknown.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec := new(Record)
	err := r.db.NewSelect().
		Model(rec).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return rec, nil
}

// List returns build records, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var recs []*Record
	err := r.db.NewSelect().
		Model(&recs).
		Order("build_seq DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return recs, nil
}

// ListArchivedBefore returns records whose archive was exported before the
// cutoff and not yet pruned.
func (r *Repository) ListArchivedBefore(ctx context.Context, cutoff time.Time) ([]*Record, error) {
	var recs []*Record
	err := r.db.NewSelect().
		Model(&recs).
		Where("archive_key != ''").
		Where("archived_at < ?", cutoff).
		Order("archived_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return recs, nil
}

// ClearArchive removes the archive reference after the object is pruned.
func (r *Repository) ClearArchive(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.NewUpdate().
		Model((*Record)(nil)).
		Set("archive_key = ''").
		Set("archived_at = NULL").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// MarkArchived records where a snapshot export landed.
func (r *Repository) MarkArchived(ctx context.Context, id uuid.UUID, key string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*Record)(nil)).
		Set("archive_key = ?", key).
		Set("archived_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}
