package snapshot

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/domain/pathindex"
	"github.com/meridian-ai/meridian/pkg/apperror"
)

// Handler serves the index administration API.
type Handler struct {
	holder  *Holder
	jobs    *JobService
	records *Repository
	export  *Exporter
	graphs  *graph.Repository
}

// NewHandler creates an index admin handler.
func NewHandler(holder *Holder, jobs *JobService, records *Repository, export *Exporter, graphs *graph.Repository) *Handler {
	return &Handler{holder: holder, jobs: jobs, records: records, export: export, graphs: graphs}
}

// StatusResponse is the index status report.
type StatusResponse struct {
	Serving    bool            `json:"serving"`
	Snapshot   *SnapshotStatus `json:"snapshot,omitempty"`
	Dirty      bool            `json:"dirty"`
	Queue      any             `json:"queue"`
	LastBuild  *Record         `json:"last_build,omitempty"`
	ArchiveSet bool            `json:"archive_configured"`
}

// SnapshotStatus summarizes the serving snapshot.
type SnapshotStatus struct {
	BuildID     string    `json:"build_id"`
	BuildSeq    int64     `json:"build_seq"`
	Nodes       int       `json:"nodes"`
	Edges       int       `json:"edges"`
	Vectors     int       `json:"vectors"`
	PathEntries int       `json:"path_entries"`
	Provider    string    `json:"provider"`
	Quality     string    `json:"quality"`
	Accelerated bool      `json:"accelerated"`
	Overflowed  int       `json:"overflowed"`
	BuiltAt     time.Time `json:"built_at"`
}

// GetStatus reports the serving snapshot, graph dirtiness, and job queue.
func (h *Handler) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()

	dirty, err := h.graphs.IsDirty(ctx)
	if err != nil {
		return err
	}
	queueStats, err := h.jobs.QueueStats(ctx)
	if err != nil {
		return err
	}
	last, err := h.records.Latest(ctx)
	if err != nil {
		return err
	}

	resp := &StatusResponse{
		Dirty:      dirty,
		Queue:      queueStats,
		LastBuild:  last,
		ArchiveSet: h.export.Enabled(),
	}

	if snap := h.holder.Current(); snap != nil {
		resp.Serving = true
		resp.Snapshot = &SnapshotStatus{
			BuildID:     snap.ID.String(),
			BuildSeq:    snap.BuildSeq,
			Nodes:       snap.View.NodeCount(),
			Edges:       snap.View.EdgeCount(),
			Vectors:     snap.Vectors.Count(snap.Provider),
			PathEntries: snap.Paths.Size(),
			Provider:    snap.Provider,
			Quality:     string(snap.Quality),
			Accelerated: snap.Vectors.Accelerated(snap.Provider),
			Overflowed:  snap.Overflowed,
			BuiltAt:     snap.BuiltAt,
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// Rebuild enqueues a full index rebuild. Idempotent while one is pending:
// the existing job is returned instead of a second one.
func (h *Handler) Rebuild(c echo.Context) error {
	job, created, err := h.jobs.Enqueue(c.Request().Context(), TriggerManual)
	if err != nil {
		return err
	}

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	return c.JSON(status, map[string]any{
		"job":      job,
		"enqueued": created,
	})
}

// GetClassification derives the reachability report from the serving
// snapshot.
func (h *Handler) GetClassification(c echo.Context) error {
	snap := h.holder.Current()
	if snap == nil {
		return apperror.ErrSnapshotUnavailable
	}
	return c.JSON(http.StatusOK, pathindex.Classify(snap.View, snap.Paths))
}

// ListBuilds returns recent build records.
func (h *Handler) ListBuilds(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	recs, err := h.records.List(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"builds": recs})
}

// Archive exports the serving snapshot to archive storage.
func (h *Handler) Archive(c echo.Context) error {
	key, err := h.export.Export(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"archive_key": key})
}

// ArchiveDownloadURL returns a presigned link to a build's archive object.
func (h *Handler) ArchiveDownloadURL(c echo.Context) error {
	buildID, err := uuid.Parse(c.Param("buildId"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid build id")
	}

	url, err := h.export.DownloadURL(c.Request().Context(), buildID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"url":        url,
		"expires_in": int(time.Hour.Seconds()),
	})
}
