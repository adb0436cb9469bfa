package pacing

import (
	"testing"
	"time"

	"autoeval/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource replays fixed values; IntN clamps to n-1.
type fixedSource struct {
	f float64
	i int
}

func (s fixedSource) Float64() float64 { return s.f }
func (s fixedSource) IntN(n int) int   { return min(s.i, n-1) }

func TestNextDelayWithinBounds(t *testing.T) {
	cfg := config.DefaultAutomationConfig()
	s := NewScheduler(cfg, NewSource(42))

	for i := 0; i < 10000; i++ {
		d := s.NextDelay()
		require.GreaterOrEqual(t, d, cfg.Delay.Min)
		require.LessOrEqual(t, d, cfg.Delay.Max)
		require.Zero(t, d%time.Millisecond)
	}
}

func TestNextDelayInclusiveEnds(t *testing.T) {
	cfg := config.DefaultAutomationConfig()
	cfg.Delay = config.DurationRange{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond}

	low := NewScheduler(cfg, fixedSource{i: 0})
	assert.Equal(t, 10*time.Millisecond, low.NextDelay())

	high := NewScheduler(cfg, fixedSource{i: 1 << 30})
	assert.Equal(t, 20*time.Millisecond, high.NextDelay())
}

func TestDegenerateRange(t *testing.T) {
	cfg := config.DefaultAutomationConfig()
	cfg.Delay = config.DurationRange{Min: 7 * time.Millisecond, Max: 7 * time.Millisecond}
	s := NewScheduler(cfg, NewSource(1))
	for i := 0; i < 100; i++ {
		assert.Equal(t, 7*time.Millisecond, s.NextDelay())
	}
}

func TestMaybeThinkPause(t *testing.T) {
	cfg := config.DefaultAutomationConfig()

	t.Run("below probability pauses", func(t *testing.T) {
		s := NewScheduler(cfg, fixedSource{f: 0.1, i: 0})
		assert.Equal(t, cfg.ThinkPause.Min, s.MaybeThinkPause())
	})
	t.Run("at or above probability does not", func(t *testing.T) {
		s := NewScheduler(cfg, fixedSource{f: 0.15})
		assert.Zero(t, s.MaybeThinkPause())
	})
	t.Run("zero probability never pauses", func(t *testing.T) {
		c := cfg
		c.ThinkPause.Probability = 0
		s := NewScheduler(c, fixedSource{f: 0})
		assert.Zero(t, s.MaybeThinkPause())
	})
	t.Run("bounds over many samples", func(t *testing.T) {
		s := NewScheduler(cfg, NewSource(7))
		paused := 0
		for i := 0; i < 10000; i++ {
			d := s.MaybeThinkPause()
			if d == 0 {
				continue
			}
			paused++
			require.GreaterOrEqual(t, d, cfg.ThinkPause.Min)
			require.LessOrEqual(t, d, cfg.ThinkPause.Max)
		}
		assert.InDelta(t, 1500, paused, 300)
	})
}

func TestNewSourceDeterministicForSeed(t *testing.T) {
	a, b := NewSource(99), NewSource(99)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.IntN(1000), b.IntN(1000))
	}
}
