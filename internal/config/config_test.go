package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LOG_LEVEL", "TODO_LOG_LEVEL", "TODO_ADDR", "TODO_STORE_BACKEND", "TODO_STORE_PATH",
		"TODO_STORE_DSN", "TODO_TRACING_EXPORTER", "TODO_CORS_ALLOWED_ORIGINS", "TODO_RATE_LIMIT_RPS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 40, cfg.RateLimit.Burst)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "todo.yaml")
	yaml := []byte(`
addr: ":9090"
store:
  backend: file
  path: /var/lib/todo/list.txt
tracing:
  exporter: stdout
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o644))
	t.Setenv("TODO_STORE_BACKEND", "SQLite")
	t.Setenv("TODO_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.Store.Backend, "env overrides file")
	assert.Equal(t, "/var/lib/todo/list.txt", cfg.Store.Path)
	assert.Equal(t, "stdout", cfg.Tracing.Exporter)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_LegacyLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)

	t.Setenv("TODO_LOG_LEVEL", "error")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel, "prefixed variable wins")
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)

	t.Setenv("TODO_STORE_BACKEND", "mongo")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.backend")

	t.Setenv("TODO_STORE_BACKEND", "postgres")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.dsn")

	t.Setenv("TODO_STORE_BACKEND", "memory")
	t.Setenv("TODO_TRACING_EXPORTER", "jaeger")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracing.exporter")
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", &buf)

	logger.Info("dropped")
	logger.Warn("kept", slog.String("k", "v"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
