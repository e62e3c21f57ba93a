package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postboard/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "postboard.db", cfg.Storage.Database)
	assert.Equal(t, 500*time.Millisecond, cfg.Latency())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
hostname = "board.example.com"
port = 8080

[storage]
database = "/var/lib/postboard/board.db"

[backend]
latency_ms = 50
`), 0o644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "board.example.com", cfg.Server.Hostname)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/var/lib/postboard/board.db", cfg.Storage.Database)
	assert.Equal(t, 50*time.Millisecond, cfg.Latency())

	// Values not present in the file keep their defaults
	assert.Equal(t, "http://localhost:3001", cfg.Server.CorsOrigin)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := config.LoadConfig("does-not-exist.toml")
	assert.Error(t, err)
}
