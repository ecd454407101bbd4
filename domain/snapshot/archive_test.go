package snapshot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-ai/meridian/internal/storage"
	"github.com/meridian-ai/meridian/pkg/apperror"
)

func disabledExporter(t *testing.T) *Exporter {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.NewService(&storage.Config{}, log)
	require.NoError(t, err)
	require.False(t, store.Enabled())
	return NewExporter(store, NewHolder(), nil, log)
}

func TestExportRequiresArchiveStorage(t *testing.T) {
	e := disabledExporter(t)

	_, err := e.Export(context.Background())
	require.Error(t, err)

	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.ErrBadRequest.Code, appErr.Code)
}

func TestDownloadURLRequiresArchiveStorage(t *testing.T) {
	e := disabledExporter(t)

	_, err := e.DownloadURL(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestPruneIsANoopWithoutArchiveStorage(t *testing.T) {
	e := disabledExporter(t)

	pruned, err := e.Prune(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, pruned)
}
