package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLayersOverridesOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	const body = `
[server]
name = "test-shard"

[network]
bind_address = "127.0.0.1:9000"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-shard", cfg.Server.Name)
	assert.Equal(t, "127.0.0.1:9000", cfg.Network.BindAddress)
	// untouched defaults survive the overlay
	assert.Equal(t, 5, cfg.Admission.MaxConnectionsPerIP)
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	assert.Error(t, err)
}
