package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "prom.db", cfg.Database.Path)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, 5000, cfg.Query.ChunkSize)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "prom", cfg.Metrics.Namespace)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "prom.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
database:
  path: from-file.db
  driver: sqlite
cache:
  enabled: true
  ttl: 10m
log:
  level: debug
`), 0o644))

	t.Setenv("PROM_CACHE_TTL", "30s")
	t.Setenv("PROM_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.Int("chunk-size", 5000, "")
	require.NoError(t, flags.Parse([]string{"--log-level", "error"}))

	v := NewViper()
	require.NoError(t, BindFlags(v, flags))
	cfg, err := Load(v, file)
	require.NoError(t, err)

	assert.Equal(t, "from-file.db", cfg.Database.Path, "file overrides default")
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL, "env overrides file")
	assert.Equal(t, "error", cfg.Log.Level, "a set flag overrides env")
	assert.Equal(t, 5000, cfg.Query.ChunkSize, "an unset flag does not override the default")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PROM_DATABASE_DRIVER", "postgres")
	t.Setenv("PROM_QUERY_CHUNK_SIZE", "0")

	_, err := Load(NewViper(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Driver")
	assert.Contains(t, err.Error(), "ChunkSize")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}
