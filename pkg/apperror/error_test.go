package apperror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	err := New(http.StatusConflict, "namespace_collision", "id already claimed")
	assert.Equal(t, "namespace_collision: id already claimed", err.Error())

	wrapped := err.WithInternal(errors.New("duplicate key"))
	assert.Equal(t, "namespace_collision: id already claimed (duplicate key)", wrapped.Error())
}

func TestUnwrapExposesInternal(t *testing.T) {
	inner := errors.New("context deadline exceeded")
	err := ErrDatabase.WithInternal(inner)

	assert.ErrorIs(t, err, inner)

	var appErr *Error
	require.ErrorAs(t, error(err), &appErr)
	assert.Equal(t, "database_error", appErr.Code)
}

func TestWithHelpersCopyNotMutate(t *testing.T) {
	base := ErrSnapshotUnavailable

	custom := base.WithMessage("rebuild still running")
	assert.Equal(t, "rebuild still running", custom.Message)
	assert.Equal(t, "No serving snapshot is available yet", base.Message)
	assert.Equal(t, base.HTTPStatus, custom.HTTPStatus)

	detailed := base.WithDetails(map[string]any{"builds_pending": 1})
	assert.Nil(t, base.Details)
	assert.Equal(t, 1, detailed.Details["builds_pending"])
}

func TestIngestionErrorCodes(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, ErrDanglingReference.HTTPStatus)
	assert.Equal(t, "dangling_reference", ErrDanglingReference.Code)

	assert.Equal(t, http.StatusConflict, ErrNamespaceCollision.HTTPStatus)
	assert.Equal(t, "namespace_collision", ErrNamespaceCollision.Code)

	assert.Equal(t, http.StatusUnprocessableEntity, ErrDimensionMismatch.HTTPStatus)
	assert.Equal(t, http.StatusConflict, ErrMergeConflict.HTTPStatus)
}

func TestServingErrorCodes(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, ErrSnapshotUnavailable.HTTPStatus)
	assert.Equal(t, http.StatusConflict, ErrBuildInProgress.HTTPStatus)
	assert.Equal(t, http.StatusNotFound, ErrNodeNotFound.HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, ErrQueryParse.HTTPStatus)
}

func TestToHTTPErrorEnvelope(t *testing.T) {
	status, body := ToHTTPError(ErrNodeNotFound.WithDetails(map[string]any{"id": "git:missing"}))
	assert.Equal(t, http.StatusNotFound, status)

	errObj := body["error"].(map[string]any)
	assert.Equal(t, "node_not_found", errObj["code"])
	assert.Equal(t, "git:missing", errObj["details"].(map[string]any)["id"])
}

func TestToHTTPErrorUnknownErrorIsInternal(t *testing.T) {
	status, body := ToHTTPError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)

	errObj := body["error"].(map[string]any)
	assert.Equal(t, "internal_error", errObj["code"])
	// The raw message must not leak.
	assert.NotContains(t, errObj["message"], "boom")
}

func TestConstructorHelpers(t *testing.T) {
	assert.Equal(t, "bad_request", NewBadRequest("query is required").Code)
	assert.Equal(t, "query is required", NewBadRequest("query is required").Message)

	nf := NewNotFound("node", "git:rebase")
	assert.Equal(t, http.StatusNotFound, nf.HTTPStatus)
	assert.Contains(t, nf.Message, "git:rebase")

	internal := NewInternal("index build failed", errors.New("disk full"))
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
	assert.ErrorContains(t, internal, "disk full")
}
