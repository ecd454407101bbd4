package monitoring

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/meridian-ai/meridian/domain/snapshot"
	"github.com/meridian-ai/meridian/pkg/apperror"
	"github.com/meridian-ai/meridian/pkg/mathutil"
)

// Handler handles HTTP requests for monitoring endpoints
type Handler struct {
	jobs *snapshot.JobService
}

// NewHandler creates a new monitoring handler
func NewHandler(jobs *snapshot.JobService) *Handler {
	return &Handler{jobs: jobs}
}

// ListIndexJobs lists recent index build jobs, newest first.
// GET /api/monitoring/index-jobs?limit=
func (h *Handler) ListIndexJobs(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return apperror.ErrBadRequest.WithMessage("limit must be an integer")
		}
		limit = mathutil.ClampInt(parsed, 1, 500)
	}

	jobs, err := h.jobs.ListJobs(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	stats, err := h.jobs.QueueStats(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"jobs":  jobs,
		"stats": stats,
		"count": len(jobs),
	})
}
