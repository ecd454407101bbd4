package traversal

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/meridian-ai/meridian/pkg/apperror"
	"github.com/meridian-ai/meridian/pkg/sse"
)

// Handler handles HTTP requests for traversal operations.
type Handler struct {
	svc *Service
}

// NewHandler creates a new traversal handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Traverse runs a cross-stack traversal to completion.
// POST /api/traverse
func (h *Handler) Traverse(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	result, err := h.svc.Traverse(c.Request().Context(), req, nil)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// TraverseStream runs a traversal and streams one SSE event per hop,
// then the synthesized answer.
// GET /api/traverse/stream?query=&start_stack=&max_hops=
func (h *Handler) TraverseStream(c echo.Context) error {
	req := Request{
		Query:      c.QueryParam("query"),
		StartStack: c.QueryParam("start_stack"),
	}
	if raw := c.QueryParam("max_hops"); raw != "" {
		hops, err := strconv.Atoi(raw)
		if err != nil {
			return apperror.ErrBadRequest.WithMessage("max_hops must be an integer")
		}
		req.MaxHops = hops
	}
	if req.Query == "" {
		return apperror.ErrBadRequest.WithMessage("query parameter is required")
	}

	w := sse.NewWriter(c.Response())
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Close()

	result, err := h.svc.Traverse(c.Request().Context(), req, func(entry TraceEntry) {
		_ = w.WriteEvent(string(sse.EventHop), sse.NewHopEvent(
			entry.Hop, string(entry.State), entry.Stack, entry.EdgeType,
			entry.NodeID, entry.Name, entry.Confidence))
	})
	if err != nil {
		_ = w.WriteEvent(string(sse.EventError), sse.NewErrorEvent(err.Error()))
		_ = w.WriteEvent(string(sse.EventDone), sse.NewDoneEvent())
		return nil
	}

	_ = w.WriteEvent(string(sse.EventAnswer), sse.NewAnswerEvent(
		string(result.Outcome), result.Answer, result.Confidence, result.Hops))
	_ = w.WriteEvent(string(sse.EventDone), sse.NewDoneEvent())
	return nil
}
