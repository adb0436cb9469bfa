package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssignment(t *testing.T) {
	var p AutomationPatch
	for _, kv := range []string{
		"delay_min=2s",
		"delay_max = 5s",
		"quota_max=4",
		"auto_submit=true",
		"think_probability=0.3",
		"text_pool=good | clear|",
		"continue_on_entity_error=true",
	} {
		require.NoError(t, ParseAssignment(&p, kv), kv)
	}

	require.NotNil(t, p.DelayMin)
	assert.Equal(t, 2*time.Second, *p.DelayMin)
	assert.Equal(t, 5*time.Second, *p.DelayMax)
	assert.Equal(t, 4, *p.QuotaMax)
	assert.True(t, *p.AutoSubmit)
	assert.Equal(t, 0.3, *p.ThinkProbability)
	assert.Equal(t, []string{"good", "clear"}, p.TextPool)
	assert.Nil(t, p.QuotaMin)
	require.NotNil(t, p.ContinueOnEntityError)

	cfg, err := DefaultAutomationConfig().Apply(p)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.SecondaryQuota.Max)
	assert.True(t, cfg.ContinueOnEntityError)
	assert.Equal(t, p.ContinueOnEntityError, DefaultAutomationConfig().Diff(cfg).ContinueOnEntityError)
}

func TestParseAssignmentErrors(t *testing.T) {
	tests := []string{
		"delay_min",
		"nope=1",
		"delay_min=fast",
		"quota_min=two",
		"auto_submit=maybe",
		"think_probability=high",
	}
	for _, kv := range tests {
		var p AutomationPatch
		assert.Error(t, ParseAssignment(&p, kv), kv)
		assert.True(t, p.Empty(), kv)
	}
}

func TestPatchKeysSorted(t *testing.T) {
	keys := PatchKeys()
	assert.Contains(t, keys, "quota_min")
	assert.IsIncreasing(t, keys)
}
