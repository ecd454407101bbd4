package syshealth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_OverridesLayeredOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.yaml")
	content := `
collection_interval: 10s
io_wait_critical_percent: 60
memory_warning_percent: 70
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.CollectionInterval)
	assert.Equal(t, 60.0, cfg.IOWaitCriticalPercent)
	assert.Equal(t, 70.0, cfg.MemoryWarningPercent)

	// Untouched fields keep defaults
	assert.Equal(t, 30.0, cfg.IOWaitWarningPercent)
	assert.Equal(t, 90.0, cfg.DBPoolCriticalPercent)
	assert.Equal(t, 2*time.Minute, cfg.StalenessThreshold)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/zones.yaml")
	assert.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.yaml")
	require.NoError(t, os.WriteFile(path, []byte("collection_interval: [not a duration"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_RejectsNonPositiveInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.yaml")
	require.NoError(t, os.WriteFile(path, []byte("collection_interval: 0s"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
