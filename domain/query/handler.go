package query

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/meridian-ai/meridian/pkg/apperror"
)

// Handler handles HTTP requests for query operations.
type Handler struct {
	svc *Service
}

// NewHandler creates a new query handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Query runs a hybrid query against the serving snapshot.
// POST /api/query
func (h *Handler) Query(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.Query(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// GetProfiles lists the available weight profiles.
// GET /api/query/profiles
func (h *Handler) GetProfiles(c echo.Context) error {
	names := h.svc.Profiles().Names()
	profiles := make([]Profile, 0, len(names))
	for _, name := range names {
		p, _ := h.svc.Profiles().Get(name)
		profiles = append(profiles, p)
	}
	return c.JSON(http.StatusOK, map[string]any{"profiles": profiles})
}
