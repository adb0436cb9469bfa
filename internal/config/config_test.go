package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// UNIFIED CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	a := cfg.Automation
	assert.Equal(t, 1500*time.Millisecond, a.Delay.Min)
	assert.Equal(t, 4000*time.Millisecond, a.Delay.Max)
	assert.Equal(t, 0.15, a.ThinkPause.Probability)
	assert.Equal(t, 2, a.SaveRetryCount)
	assert.Equal(t, 3*time.Second, a.SaveRetryDelay)
	assert.Equal(t, IntRange{Min: 2, Max: 3}, a.SecondaryQuota)
	assert.False(t, a.AutoAdvanceEntities)
	assert.False(t, a.AutoSubmit)
	assert.Len(t, a.TextPool, 8)
	assert.Equal(t, 10, a.Readiness.MaxAttempts)
	assert.Equal(t, "#btn_xspj_bc", cfg.Selectors.SaveButton)
}

func TestDefaultTextPoolIsCopied(t *testing.T) {
	a := DefaultAutomationConfig()
	a.TextPool[0] = "changed"
	assert.NotEqual(t, "changed", DefaultTextPool[0])
}

func TestConfig_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Automation.Delay = DurationRange{Min: 200 * time.Millisecond, Max: 900 * time.Millisecond}
	cfg.Automation.AutoSubmit = true
	cfg.Automation.TextPool = []string{"fine", "good"}
	cfg.Browser.Headless = true
	require.NoError(t, cfg.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "min: 200ms")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Automation, loaded.Automation)
	assert.True(t, loaded.Browser.Headless)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Automation, cfg.Automation)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("automation:\n  save_retry_count: 4\n  delay:\n    min: 1s\n    max: 2s\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Automation.SaveRetryCount)
	assert.Equal(t, time.Second, cfg.Automation.Delay.Min)
	assert.Equal(t, 3*time.Second, cfg.Automation.SaveRetryDelay)
	assert.Len(t, cfg.Automation.TextPool, 8)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"inverted delay", "automation:\n  delay:\n    min: 5s\n    max: 1s\n"},
		{"empty pool", "automation:\n  text_pool: []\n"},
		{"probability", "automation:\n  think_pause:\n    probability: 1.5\n"},
		{"negative quota", "automation:\n  secondary_quota:\n    min: -1\n    max: 2\n"},
		{"missing selector", "selectors:\n  save_button: \"\"\n"},
		{"garbage", "automation: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoggingCategories(t *testing.T) {
	c := LoggingConfig{}
	assert.True(t, c.IsCategoryEnabled("browser"))

	c.Categories = map[string]bool{"browser": false}
	assert.False(t, c.IsCategoryEnabled("browser"))
	assert.True(t, c.IsCategoryEnabled("sequencer"))

	opts := c.Options()
	assert.Equal(t, c.Categories, opts.Categories)
}
