package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsFromEnv(t *testing.T) {
	t.Setenv("MAD_API_URL", "http://backend:3001")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://backend:3001", cfg.Backend.URL)
	assert.Equal(t, ":3000", cfg.HTTPServer.Address)
	assert.Equal(t, 10, cfg.Table.DefaultPageSize)
	assert.Equal(t, 300*time.Millisecond, cfg.Table.SearchDebounce)
	assert.Equal(t, int64(5<<20), cfg.HTTPServer.MaxUploadBytes)
	assert.Equal(t, "console_schema_migrations", cfg.Audit.MigrationsTable)
	assert.False(t, cfg.Production())
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.yaml")
	yaml := []byte("env: production\nbackend:\n  url: http://from-file:3001\ntable:\n  default_page_size: 25\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	t.Setenv("MAD_API_URL", "http://from-env:3001")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:3001", cfg.Backend.URL)
	assert.Equal(t, 25, cfg.Table.DefaultPageSize)
	assert.True(t, cfg.Production())
}

func TestLoadRejectsBadPageSize(t *testing.T) {
	t.Setenv("MAD_DEFAULT_PAGE_SIZE", "0")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
