package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retrace/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "data", cfg.Output.Dir)
	assert.Equal(t, "retrace.db", cfg.Store.SQLitePath)
	assert.False(t, cfg.Postgres.Enabled())
	assert.Equal(t, 4, cfg.Postgres.MaxConns)
	assert.Empty(t, cfg.ProfilePath)
	assert.Zero(t, cfg.Workers)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RETRACE_LOG_LEVEL", "debug")
	t.Setenv("RETRACE_OUTPUT_DIR", "/tmp/out")
	t.Setenv("RETRACE_POSTGRES_DSN", "postgres://localhost/retrace")
	t.Setenv("RETRACE_GENERATOR_WORKERS", "3")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.True(t, cfg.Postgres.Enabled())
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoad_FileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "retrace.yaml"), []byte(`
app:
  env: development
store:
  sqlite_path: runs.db
profile:
  path: profiles/pinned.cue
`), 0o644))

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "runs.db", cfg.Store.SQLitePath)
	assert.Equal(t, "profiles/pinned.cue", cfg.ProfilePath)
}

func TestLoad_EnvironmentBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644))
	t.Setenv("RETRACE_LOG_LEVEL", "error")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.App.LogLevel)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsNegativeWorkers(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RETRACE_GENERATOR_WORKERS", "-1")

	_, err := config.Load("")
	assert.Error(t, err)
}
