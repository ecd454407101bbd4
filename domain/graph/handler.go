package graph

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/meridian-ai/meridian/pkg/apperror"
)

// Handler handles HTTP requests for graph operations.
type Handler struct {
	svc *Service
}

// NewHandler creates a new graph handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetNode returns a single node by id.
// GET /api/nodes/:id
func (h *Handler) GetNode(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return apperror.ErrBadRequest.WithMessage("node id is required")
	}

	node, err := h.svc.GetNode(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, node)
}

// GetNeighbors returns edges adjacent to a node.
// GET /api/nodes/:id/neighbors?edge_type=&direction=
func (h *Handler) GetNeighbors(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return apperror.ErrBadRequest.WithMessage("node id is required")
	}

	direction, err := ParseDirection(c.QueryParam("direction"))
	if err != nil {
		return err
	}
	edgeType := c.QueryParam("edge_type")

	neighbors, err := h.svc.Neighbors(c.Request().Context(), id, edgeType, direction)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, NeighborsResponse{
		NodeID:    id,
		Direction: string(direction),
		EdgeType:  edgeType,
		Neighbors: neighbors,
		Count:     len(neighbors),
	})
}

// Merge runs a dedup pass over a source namespace.
// POST /api/graph/merge
func (h *Handler) Merge(c echo.Context) error {
	var req MergeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	if req.Namespace == "" {
		return apperror.ErrBadRequest.WithMessage("namespace is required")
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		return apperror.ErrBadRequest.WithMessage("threshold must be in (0, 1]")
	}

	report, err := h.svc.Merge(c.Request().Context(), req.Namespace, req.Threshold)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

// GetStats returns aggregate graph counts.
// GET /api/graph/stats
func (h *Handler) GetStats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// GetMergeLog returns recent merge decisions, newest first.
// GET /api/graph/merge-log?limit=&offset=
func (h *Handler) GetMergeLog(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return apperror.ErrBadRequest.WithMessage("limit must be a positive integer")
		}
		limit = n
	}
	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return apperror.ErrBadRequest.WithMessage("offset must be a non-negative integer")
		}
		offset = n
	}

	entries, total, err := h.svc.MergeLog(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, MergeLogResponse{
		Entries: entries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}
