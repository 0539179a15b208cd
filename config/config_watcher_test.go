package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestConfigWatcherReload(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "koreksi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600))

	cw, err := NewConfigWatcher(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer cw.Close()

	assert.Equal(t, "info", cw.GetCurrentConfig().Logging.Level)
	updates := cw.Subscribe()

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600))

	// A truncating write can surface an intermediate empty file first.
	deadline := time.After(5 * time.Second)
	for got := ""; got != "debug"; {
		select {
		case cfg := <-updates:
			got = cfg.Logging.Level
		case <-deadline:
			t.Fatal("no config update received")
		}
	}
	assert.Equal(t, "debug", cw.GetCurrentConfig().Logging.Level)
}

func TestConfigWatcherKeepsPreviousOnInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "koreksi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8081\n"), 0o600))

	// No fsnotify goroutine: reloads are driven by hand.
	cw := &ConfigWatcher{configPath: path, logger: zaptest.NewLogger(t), done: make(chan struct{})}
	cw.currentConfig.Store(DefaultConfig())
	updates := cw.Subscribe()

	cw.handleConfigChange()
	assert.Equal(t, 8081, (<-updates).Server.Port)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: -5\n"), 0o600))
	cw.handleConfigChange()

	assert.Equal(t, 8081, cw.GetCurrentConfig().Server.Port)
}

func TestConfigWatcherInitialLoadFails(t *testing.T) {
	_, err := NewConfigWatcher(filepath.Join(t.TempDir(), "missing.yaml"), zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestConfigWatcherCloseIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "koreksi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o600))

	cw, err := NewConfigWatcher(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, cw.Close())
	require.NoError(t, cw.Close())
}
