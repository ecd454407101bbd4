// Package apperror defines the application error type and the shared
// HTTP error envelope: {"error": {"code", "message", "details?"}}.
package apperror

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error couples an HTTP status with a stable machine-readable code. The
// Internal error is for logs only and never reaches the response body.
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error
	Details    map[string]any
}

func New(status int, code, message string) *Error {
	return &Error{HTTPStatus: status, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Internal
}

func (e *Error) clone() *Error {
	c := *e
	return &c
}

// WithInternal returns a copy carrying err for logging. The shared sentinel
// stays untouched.
func (e *Error) WithInternal(err error) *Error {
	c := e.clone()
	c.Internal = err
	return c
}

// WithMessage returns a copy with the message replaced.
func (e *Error) WithMessage(message string) *Error {
	c := e.clone()
	c.Message = message
	return c
}

// WithDetails returns a copy with response details attached.
func (e *Error) WithDetails(details map[string]any) *Error {
	c := e.clone()
	c.Details = details
	return c
}

func (e *Error) envelope() map[string]any {
	body := map[string]any{
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return map[string]any{"error": body}
}

// ToEchoError renders the error as an echo.HTTPError with the standard
// envelope.
func (e *Error) ToEchoError() *echo.HTTPError {
	return echo.NewHTTPError(e.HTTPStatus, e.envelope())
}

// ToHTTPError maps any error to a status and response body. Unknown errors
// collapse to a generic 500 so internals never leak.
func ToHTTPError(err error) (int, map[string]any) {
	if appErr, ok := err.(*Error); ok {
		return appErr.HTTPStatus, appErr.envelope()
	}
	return http.StatusInternalServerError, ErrInternal.envelope()
}

var (
	// Authentication
	ErrUnauthorized = New(http.StatusUnauthorized, "unauthorized", "Authentication required")
	ErrInvalidToken = New(http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
	ErrTokenExpired = New(http.StatusUnauthorized, "token_expired", "Token has expired")
	ErrMissingToken = New(http.StatusUnauthorized, "missing_token", "Missing authorization token")

	// Authorization
	ErrForbidden               = New(http.StatusForbidden, "forbidden", "Access denied")
	ErrInsufficientPermissions = New(http.StatusForbidden, "insufficient_permissions", "Insufficient permissions")

	// Resources
	ErrNotFound     = New(http.StatusNotFound, "not_found", "Resource not found")
	ErrNodeNotFound = New(http.StatusNotFound, "node_not_found", "Node not found")
	ErrConflict     = New(http.StatusConflict, "conflict", "Resource already exists")

	// Validation
	ErrBadRequest = New(http.StatusBadRequest, "bad_request", "Invalid request")
	ErrValidation = New(http.StatusUnprocessableEntity, "validation_error", "Validation failed")

	// Graph ingestion
	ErrDanglingReference  = New(http.StatusUnprocessableEntity, "dangling_reference", "Edge references a node that does not exist")
	ErrNamespaceCollision = New(http.StatusConflict, "namespace_collision", "Node id already claimed by a different namespace")
	ErrMergeConflict      = New(http.StatusConflict, "merge_conflict", "Merge pass conflicts with concurrent graph changes")
	ErrDimensionMismatch  = New(http.StatusUnprocessableEntity, "dimension_mismatch", "Embedding dimension does not match provider namespace")

	// Query serving
	ErrQueryParse          = New(http.StatusBadRequest, "query_parse_error", "Query could not be parsed")
	ErrSnapshotUnavailable = New(http.StatusServiceUnavailable, "snapshot_unavailable", "No serving snapshot is available yet")
	ErrBuildInProgress     = New(http.StatusConflict, "build_in_progress", "An index build is already running")

	// Server
	ErrInternal = New(http.StatusInternalServerError, "internal_error", "An internal error occurred")
	ErrDatabase = New(http.StatusInternalServerError, "database_error", "Database operation failed")
)

func NewBadRequest(message string) *Error {
	return ErrBadRequest.WithMessage(message)
}

func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}

func NewForbidden(message string) *Error {
	return ErrForbidden.WithMessage(message)
}

func NewInternal(message string, err error) *Error {
	return ErrInternal.WithMessage(message).WithInternal(err)
}
