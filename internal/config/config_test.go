package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Limits.MaxSlides)
	assert.Equal(t, int64(50*1024*1024), cfg.Limits.MaxFileSizeBytes())
	assert.Equal(t, "memory", cfg.Session.Driver)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.True(t, cfg.Stateless())
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
limits:
  max_slides: 80
  max_file_size_mb: 10
session:
  driver: redis
  redis:
    addr: redis.internal:6379
database:
  dsn: postgres://deckvoice@localhost/deckvoice
`), 0o644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 80, cfg.Limits.MaxSlides)
	assert.Equal(t, int64(10*1024*1024), cfg.Limits.MaxFileSizeBytes())
	assert.Equal(t, "redis", cfg.Session.Driver)
	assert.Equal(t, "redis.internal:6379", cfg.Session.Redis.Addr)
	assert.False(t, cfg.Stateless())

	// Untouched sections keep defaults.
	assert.Equal(t, 4, cfg.LLM.Concurrency)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7777")
	t.Setenv("MAX_SLIDES", "12")
	t.Setenv("REDIS_URL", "redis://cache:6379")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, 12, cfg.Limits.MaxSlides)
	assert.Equal(t, "redis", cfg.Session.Driver)
	assert.Equal(t, "cache:6379", cfg.Session.Redis.Addr)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
session:
  driver: memcached
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`
limits:
  max_slides: 0
`), 0o644))

	_, err = Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
