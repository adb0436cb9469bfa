// Package pacing produces the randomized waits that separate externally
// visible actions, so the run never settles into a fixed interval.
package pacing

import (
	"math/rand/v2"
	"sync"
	"time"

	"autoeval/internal/config"
	"autoeval/internal/logging"
)

// Source is the randomness the scheduler and allocator consume.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	Float64() float64
	IntN(n int) int
}

// NewSource returns a Source safe for concurrent use. A zero seed picks a
// random one.
func NewSource(seed uint64) Source {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// Scheduler samples delays from the pacing section of the configuration.
type Scheduler struct {
	delay config.DurationRange
	think config.ThinkPause
	rng   Source
}

// NewScheduler builds a scheduler over an immutable config snapshot.
func NewScheduler(cfg config.AutomationConfig, rng Source) *Scheduler {
	return &Scheduler{delay: cfg.Delay, think: cfg.ThinkPause, rng: rng}
}

// NextDelay returns a uniform duration in [Delay.Min, Delay.Max], inclusive,
// at millisecond granularity.
func (s *Scheduler) NextDelay() time.Duration {
	d := Uniform(s.rng, s.delay.Min, s.delay.Max)
	logging.PacingDebug("next delay %v", d)
	return d
}

// MaybeThinkPause returns a think pause with the configured probability, else 0.
func (s *Scheduler) MaybeThinkPause() time.Duration {
	if s.think.Probability <= 0 || s.rng.Float64() >= s.think.Probability {
		return 0
	}
	d := Uniform(s.rng, s.think.Min, s.think.Max)
	logging.PacingDebug("think pause %v", d)
	return d
}

// Uniform samples [min, max] inclusive in whole milliseconds. Sub-millisecond
// or inverted ranges collapse to min.
func Uniform(rng Source, min, max time.Duration) time.Duration {
	span := int((max - min) / time.Millisecond)
	if span <= 0 {
		return min
	}
	return min + time.Duration(rng.IntN(span+1))*time.Millisecond
}
