package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
host = "127.0.0.1"
port = 9000
database_path = "/var/lib/devchat.db"
jwt_secret = "s3cret"
token_ttl = "24h"
debug = true
`), 0o600))

	cfg := DefaultConfig()
	require.NoError(t, LoadConfig(path, cfg))

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, "/var/lib/devchat.db", cfg.DatabasePath)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL.Duration)
	assert.True(t, cfg.Debug)
}

func TestLoadConfig_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(`token_ttl = "soon"`), 0o600))

	assert.Error(t, LoadConfig(path, DefaultConfig()))
}

func TestWriteConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")

	cfg := DefaultConfig()
	cfg.Port = 9100
	cfg.JWTSecret = "abc"
	cfg.TokenTTL = Duration{90 * time.Minute}
	require.NoError(t, WriteConfig(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded := &Config{}
	require.NoError(t, LoadConfig(path, loaded))
	assert.Equal(t, cfg, loaded)
}

func TestAddrIPv6(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "::1"
	assert.Equal(t, "[::1]:8080", cfg.Addr())
}
