package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-ai/meridian/internal/storage"
	"github.com/meridian-ai/meridian/pkg/apperror"
	"github.com/meridian-ai/meridian/pkg/logger"
)

// Exporter writes the serving snapshot to archive storage as JSONL: one
// object per line, sectioned by a "kind" field (node, edge, path). Archives
// are for offline analysis and disaster recovery; they are never read back
// by the engine.
type Exporter struct {
	store  *storage.Service
	holder *Holder
	recs   *Repository
	log    *slog.Logger
}

// NewExporter creates a snapshot exporter.
func NewExporter(store *storage.Service, holder *Holder, recs *Repository, log *slog.Logger) *Exporter {
	return &Exporter{
		store:  store,
		holder: holder,
		recs:   recs,
		log:    log.With(logger.Scope("snapshot.export")),
	}
}

// Enabled reports whether archive storage is configured.
func (e *Exporter) Enabled() bool {
	return e.store.Enabled()
}

// Export writes the current serving snapshot to archive storage and
// records the archive key on its build record. Returns the object key.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	if !e.store.Enabled() {
		return "", apperror.ErrBadRequest.WithMessage("archive storage is not configured")
	}

	snap := e.holder.Current()
	if snap == nil {
		return "", apperror.ErrSnapshotUnavailable
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, n := range snap.View.Nodes() {
		if err := enc.Encode(map[string]any{
			"kind":            "node",
			"id":              n.ID,
			"type":            n.Type,
			"name":            n.Name,
			"description":     n.Description,
			"intent_keywords": n.IntentKeywords,
			"metadata":        n.Metadata,
			"namespace":       n.Namespace,
		}); err != nil {
			return "", apperror.ErrInternal.WithInternal(err)
		}

		for _, ed := range snap.View.OutEdges(n.ID) {
			if err := enc.Encode(map[string]any{
				"kind":    "edge",
				"from_id": ed.FromID,
				"to_id":   ed.ToID,
				"type":    ed.Type,
				"weight":  ed.Weight,
				"source":  ed.Source,
			}); err != nil {
				return "", apperror.ErrInternal.WithInternal(err)
			}
		}

		for _, entry := range snap.Paths.ForwardFrom(n.ID) {
			if err := enc.Encode(map[string]any{
				"kind":          "path",
				"start_id":      entry.StartID,
				"end_id":        entry.EndID,
				"direction":     entry.Direction,
				"length":        entry.Length,
				"node_sequence": entry.NodeSequence,
				"partial":       entry.Partial,
			}); err != nil {
				return "", apperror.ErrInternal.WithInternal(err)
			}
		}
	}

	res, err := e.store.UploadArchive(ctx, snap.ID.String(), snap.BuiltAt, &buf, int64(buf.Len()))
	if err != nil {
		return "", apperror.ErrInternal.WithMessage("archive upload failed").WithInternal(err)
	}

	if err := e.recs.MarkArchived(ctx, snap.ID, res.Key, time.Now().UTC()); err != nil {
		return "", err
	}

	e.log.Info("snapshot archived",
		slog.String("build_id", snap.ID.String()),
		slog.String("key", res.Key),
		slog.Int64("bytes", res.Size))
	return res.Key, nil
}

// Prune deletes archive objects exported before the cutoff and clears the
// reference on their build records. Returns how many objects were removed.
func (e *Exporter) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	if !e.store.Enabled() {
		return 0, nil
	}

	recs, err := e.recs.ListArchivedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, rec := range recs {
		if err := e.store.Delete(ctx, rec.ArchiveKey); err != nil {
			// Keep the reference so the next run retries the delete.
			e.log.Warn("archive prune failed, will retry",
				slog.String("key", rec.ArchiveKey), logger.Error(err))
			continue
		}
		if err := e.recs.ClearArchive(ctx, rec.ID); err != nil {
			return pruned, err
		}
		pruned++
	}

	if pruned > 0 {
		e.log.Info("pruned snapshot archives",
			slog.Int("count", pruned),
			slog.Time("cutoff", cutoff))
	}
	return pruned, nil
}

// DownloadURL returns a time-limited link to a build's archive. The link
// expires after an hour; callers fetch a fresh one per download.
func (e *Exporter) DownloadURL(ctx context.Context, buildID uuid.UUID) (string, error) {
	if !e.store.Enabled() {
		return "", apperror.ErrBadRequest.WithMessage("archive storage is not configured")
	}

	rec, err := e.recs.Get(ctx, buildID)
	if err != nil {
		return "", err
	}
	if rec == nil || rec.ArchiveKey == "" {
		return "", apperror.ErrNotFound.WithMessage("no archive exists for this build")
	}

	// The record can outlive the object under bucket retention policies.
	ok, err := e.store.Exists(ctx, rec.ArchiveKey)
	if err != nil {
		return "", apperror.ErrInternal.WithInternal(err)
	}
	if !ok {
		return "", apperror.ErrNotFound.WithMessage("archive object no longer exists")
	}

	url, err := e.store.GetSignedDownloadURL(ctx, rec.ArchiveKey, storage.GetSignedDownloadURLOptions{
		ExpiresIn:                  time.Hour,
		ResponseContentDisposition: fmt.Sprintf(`attachment; filename="%s.jsonl.gz"`, buildID),
	})
	if err != nil {
		return "", apperror.ErrInternal.WithMessage("presign failed").WithInternal(err)
	}
	return url, nil
}
