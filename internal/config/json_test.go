package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSONConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseJSON_AllFields(t *testing.T) {
	path := writeJSONConfig(t, `{
		"storage": {"backend": "sqlite", "path": "/tmp/vault.db"},
		"crypto": {"interactive_cache_size": 7, "bulk_cache_size": 99},
		"pipeline": {"batch_yield": "15ms"},
		"app": {"clipboard_timeout": "20s"}
	}`)

	cfg, err := parseJSON(path)

	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/vault.db", cfg.Storage.Path)
	assert.Equal(t, 7, cfg.Crypto.InteractiveCacheSize)
	assert.Equal(t, 99, cfg.Crypto.BulkCacheSize)
	assert.Equal(t, 15*time.Millisecond, cfg.Pipeline.BatchYield)
	assert.Equal(t, 20*time.Second, cfg.App.ClipboardTimeout)
}

func TestParseJSON_DurationAsNumber(t *testing.T) {
	path := writeJSONConfig(t, `{"pipeline": {"batch_yield": 5000000}}`)

	cfg, err := parseJSON(path)

	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, cfg.Pipeline.BatchYield)
}

func TestParseJSON_FileNotFound(t *testing.T) {
	_, err := parseJSON(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestParseJSON_InvalidJSON(t *testing.T) {
	path := writeJSONConfig(t, `{"storage": `)
	_, err := parseJSON(path)
	require.Error(t, err)
}
