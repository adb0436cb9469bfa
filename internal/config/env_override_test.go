package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides_Automation(t *testing.T) {
	t.Run("durations and counts", func(t *testing.T) {
		t.Setenv("AUTOEVAL_AUTOMATION_DELAY_MIN", "100ms")
		t.Setenv("AUTOEVAL_AUTOMATION_DELAY_MAX", "250ms")
		t.Setenv("AUTOEVAL_AUTOMATION_SAVE_RETRY_COUNT", "3")
		t.Setenv("AUTOEVAL_AUTOMATION_QUOTA_MAX", "5")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())

		assert.Equal(t, 100*time.Millisecond, cfg.Automation.Delay.Min)
		assert.Equal(t, 250*time.Millisecond, cfg.Automation.Delay.Max)
		assert.Equal(t, 3, cfg.Automation.SaveRetryCount)
		assert.Equal(t, 5, cfg.Automation.SecondaryQuota.Max)
		assert.Equal(t, 2, cfg.Automation.SecondaryQuota.Min)
	})

	t.Run("flags and text pool", func(t *testing.T) {
		t.Setenv("AUTOEVAL_AUTOMATION_AUTO_SUBMIT", "true")
		t.Setenv("AUTOEVAL_AUTOMATION_AUTO_ADVANCE", "true")
		t.Setenv("AUTOEVAL_AUTOMATION_TEXT_POOL", "good|very good")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())

		assert.True(t, cfg.Automation.AutoSubmit)
		assert.True(t, cfg.Automation.AutoAdvanceEntities)
		assert.Equal(t, []string{"good", "very good"}, cfg.Automation.TextPool)
	})

	t.Run("unset leaves file values", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Automation.SaveRetryCount = 7
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, 7, cfg.Automation.SaveRetryCount)
	})

	t.Run("malformed value is an error", func(t *testing.T) {
		t.Setenv("AUTOEVAL_AUTOMATION_SAVE_RETRY_DELAY", "soon")
		cfg := DefaultConfig()
		assert.Error(t, cfg.applyEnvOverrides())
	})
}

func TestEnvOverrides_BrowserAndLogging(t *testing.T) {
	t.Setenv("AUTOEVAL_BROWSER_DEBUGGER_URL", "ws://127.0.0.1:9222/devtools/browser/x")
	t.Setenv("AUTOEVAL_BROWSER_HEADLESS", "true")
	t.Setenv("AUTOEVAL_BROWSER_POINTER_HOVER_MAX", "400ms")
	t.Setenv("AUTOEVAL_LOGGING_LEVEL", "debug")
	t.Setenv("AUTOEVAL_METRICS_ADDR", ":9999")

	cfg := DefaultConfig()
	require.NoError(t, cfg.applyEnvOverrides())

	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/x", cfg.Browser.DebuggerURL)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 400*time.Millisecond, cfg.Browser.Pointer.Hover.Max)
	assert.Equal(t, 150*time.Millisecond, DefaultConfig().Browser.Pointer.Hover.Max)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9999", cfg.Metrics.Addr)
}

func TestLoadFileIgnoresEnv(t *testing.T) {
	t.Setenv("AUTOEVAL_AUTOMATION_SAVE_RETRY_COUNT", "9")
	path := filepath.Join(t.TempDir(), "config.yaml")

	fromFile, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, fromFile.Automation.SaveRetryCount)

	withEnv, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, withEnv.Automation.SaveRetryCount)
}
