package ingest

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/meridian-ai/meridian/pkg/apperror"
)

// maxBodyBytes bounds an ingestion payload. Larger corpora should be
// split into batches anyway so partial-failure reports stay readable.
const maxBodyBytes = 32 << 20

// Handler handles HTTP requests for ingestion.
type Handler struct {
	validator *Validator
	svc       *Service
}

// NewHandler creates a new ingest handler.
func NewHandler(validator *Validator, svc *Service) *Handler {
	return &Handler{validator: validator, svc: svc}
}

// Ingest validates and applies one batch.
// POST /api/ingest
func (h *Handler) Ingest(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("failed to read request body")
	}

	req, err := h.validator.Validate(raw)
	if err != nil {
		return err
	}
	if len(req.Nodes) == 0 && len(req.Edges) == 0 {
		return apperror.ErrBadRequest.WithMessage("batch must contain at least one node or edge")
	}

	report, err := h.svc.Ingest(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}
