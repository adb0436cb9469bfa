package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	got := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { got <- c })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	cfg := DefaultConfig()
	cfg.Automation.SaveRetryCount = 5
	require.NoError(t, cfg.Save(path))

	select {
	case c := <-got:
		assert.Equal(t, 5, c.Automation.SaveRetryCount)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
	assert.GreaterOrEqual(t, w.Reloads(), 1)
}

func TestWatcherIgnoresInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	got := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { got <- c })
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	bad := DefaultConfig()
	bad.Automation.TextPool = nil
	bad.Automation.SaveRetryCount = 0
	require.NoError(t, bad.Save(path))

	select {
	case <-got:
		t.Fatal("invalid config must not be delivered")
	case <-time.After(800 * time.Millisecond):
	}
	w.Stop()
	assert.Equal(t, 0, w.Reloads())
}

func TestWatcherRunStopsWithContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestWatcherStopWithoutStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	assert.NotPanics(t, w.Stop)
	assert.NotPanics(t, w.Stop, "second Stop closes an already closed watcher")
	assert.Equal(t, 0, w.Reloads())
}
