package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
theme = "nord"
log_file = "/tmp/devchat.log"
debug = true

[server]
address = "wss://chat.example.com"
`), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, LoadConfig(path, cfg))

	assert.Equal(t, "wss://chat.example.com", cfg.Server.Address)
	assert.Equal(t, "nord", cfg.Theme)
	assert.Equal(t, "/tmp/devchat.log", cfg.LogFile)
	assert.True(t, cfg.Debug)
}

func TestLoadConfig_KeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.toml")
	require.NoError(t, os.WriteFile(path, []byte(`debug = true`), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, LoadConfig(path, cfg))
	assert.Equal(t, "http://localhost:8080", cfg.Server.Address)
	assert.Equal(t, "dracula", cfg.Theme)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, LoadConfig(filepath.Join(dir, "missing.toml"), DefaultConfig()))

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte(`theme = `), 0o644))
	assert.Error(t, LoadConfig(bad, DefaultConfig()))
}

func TestPreferences(t *testing.T) {
	dir := t.TempDir()
	cm, err := NewConfigManager(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cm.Dir())

	prefs, err := cm.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, 1, prefs.Version)
	assert.Empty(t, prefs.LastEmail)

	require.NoError(t, cm.RememberEmail("a@b.com"))
	require.NoError(t, cm.RememberTheme("nord"))

	prefs, err = cm.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", prefs.LastEmail)
	assert.Equal(t, "nord", prefs.Theme)

	_, err = os.Stat(filepath.Join(dir, "preferences.json.tmp"))
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}

func TestReconnectStrategy(t *testing.T) {
	rs := &ReconnectStrategy{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2,
	}

	assert.Equal(t, 100*time.Millisecond, rs.NextDelay(0))
	assert.Equal(t, 200*time.Millisecond, rs.NextDelay(1))
	assert.Equal(t, 800*time.Millisecond, rs.NextDelay(3))
	assert.Equal(t, time.Second, rs.NextDelay(4))
	assert.Equal(t, time.Second, rs.NextDelay(5000))

	assert.True(t, rs.ShouldRetry(2))
	assert.False(t, rs.ShouldRetry(3))

	rs.MaxRetries = 0
	assert.True(t, rs.ShouldRetry(1000), "zero retries forever")
}

func TestReconnectStrategy_WaitStops(t *testing.T) {
	rs := &ReconnectStrategy{InitialDelay: time.Hour, MaxDelay: time.Hour, BackoffFactor: 2}

	stop := make(chan struct{})
	close(stop)
	assert.False(t, rs.Wait(context.Background(), stop, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, rs.Wait(ctx, make(chan struct{}), 0))

	rs.InitialDelay = time.Millisecond
	assert.True(t, rs.Wait(context.Background(), make(chan struct{}), 0))
}
