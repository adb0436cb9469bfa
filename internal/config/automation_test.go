package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestApplyPatch(t *testing.T) {
	base := DefaultAutomationConfig()

	tests := []struct {
		name  string
		patch AutomationPatch
		check func(t *testing.T, got AutomationConfig)
	}{
		{
			name:  "empty patch is identity",
			patch: AutomationPatch{},
			check: func(t *testing.T, got AutomationConfig) { assert.Equal(t, base, got) },
		},
		{
			name:  "quota min above max raises max",
			patch: AutomationPatch{QuotaMin: ptr(5)},
			check: func(t *testing.T, got AutomationConfig) {
				assert.Equal(t, IntRange{Min: 5, Max: 5}, got.SecondaryQuota)
			},
		},
		{
			name:  "quota max below min is held at min",
			patch: AutomationPatch{QuotaMax: ptr(1)},
			check: func(t *testing.T, got AutomationConfig) {
				assert.Equal(t, IntRange{Min: 2, Max: 2}, got.SecondaryQuota)
			},
		},
		{
			name:  "negative quota min clamps to zero",
			patch: AutomationPatch{QuotaMin: ptr(-3)},
			check: func(t *testing.T, got AutomationConfig) {
				assert.Equal(t, 0, got.SecondaryQuota.Min)
			},
		},
		{
			name:  "delay min drags max",
			patch: AutomationPatch{DelayMin: ptr(5 * time.Second)},
			check: func(t *testing.T, got AutomationConfig) {
				assert.Equal(t, DurationRange{Min: 5 * time.Second, Max: 5 * time.Second}, got.Delay)
			},
		},
		{
			name:  "toggles",
			patch: AutomationPatch{AutoSubmit: ptr(true), AutoAdvanceEntities: ptr(true)},
			check: func(t *testing.T, got AutomationConfig) {
				assert.True(t, got.AutoSubmit)
				assert.True(t, got.AutoAdvanceEntities)
			},
		},
		{
			name:  "text pool replaced",
			patch: AutomationPatch{TextPool: []string{"only"}},
			check: func(t *testing.T, got AutomationConfig) {
				assert.Equal(t, []string{"only"}, got.TextPool)
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := base.Apply(tc.patch)
			require.NoError(t, err)
			tc.check(t, got)
		})
	}
}

func TestApplyPatchDoesNotMutateReceiver(t *testing.T) {
	base := DefaultAutomationConfig()
	_, err := base.Apply(AutomationPatch{TextPool: []string{"x"}, SaveRetryCount: ptr(5)})
	require.NoError(t, err)
	assert.Equal(t, DefaultAutomationConfig(), base)
}

func TestApplyPatchRejectsInvalid(t *testing.T) {
	base := DefaultAutomationConfig()

	got, err := base.Apply(AutomationPatch{TextPool: []string{}})
	assert.Error(t, err)
	assert.Equal(t, base, got, "a rejected patch returns the receiver unchanged")

	_, err = base.Apply(AutomationPatch{SaveRetryCount: ptr(0)})
	assert.Error(t, err)

	_, err = base.Apply(AutomationPatch{ThinkProbability: ptr(-0.1)})
	assert.Error(t, err)
}

func TestDiffRoundTrip(t *testing.T) {
	a := DefaultAutomationConfig()
	b := a.Clone()
	b.Delay = DurationRange{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond}
	b.SecondaryQuota = IntRange{Min: 0, Max: 1}
	b.AutoSubmit = true
	b.TextPool = []string{"a", "b"}

	p := a.Diff(b)
	assert.False(t, p.Empty())
	assert.Nil(t, p.SaveRetryCount)

	got, err := a.Apply(p)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	assert.True(t, a.Diff(a).Empty())
}
