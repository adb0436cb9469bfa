// Package quota spreads an exact number of secondary labels across a list of
// items in one left-to-right pass.
//
// At each position the secondary label is chosen with probability
// need/remaining, which is sequential sampling without replacement: every
// T-subset of the N positions is equally likely and exactly T positions are
// chosen whatever the draws are, because once need == remaining the
// probability is 1.
package quota

import (
	"fmt"

	"autoeval/internal/form"
)

// Source is the randomness the allocator consumes.
type Source interface {
	Float64() float64
	IntN(n int) int
}

// SampleTarget draws T uniformly from [min, max] and clamps it to [0, n].
func SampleTarget(rng Source, min, max, n int) int {
	if max < min {
		max = min
	}
	t := min
	if span := max - min; span > 0 {
		t += rng.IntN(span + 1)
	}
	return Clamp(t, n)
}

// Clamp limits a target to [0, n].
func Clamp(t, n int) int {
	if n < 0 {
		n = 0
	}
	return max(0, min(t, n))
}

// Allocator hands out labels for N items, one call per item.
type Allocator struct {
	need      int
	remaining int
	assigned  int
	target    int
}

// NewAllocator starts an allocation of target secondaries over n items. The
// target is clamped to [0, n].
func NewAllocator(n, target int) *Allocator {
	target = Clamp(target, n)
	return &Allocator{need: target, remaining: max(n, 0), target: target}
}

// Next returns the label for the next item. Calling it more than n times
// returns Primary.
func (a *Allocator) Next(rng Source) form.Label {
	if a.remaining <= 0 {
		return form.Primary
	}
	label := form.Primary
	if a.need > 0 && (a.need >= a.remaining || rng.Float64() < float64(a.need)/float64(a.remaining)) {
		label = form.Secondary
		a.need--
		a.assigned++
	}
	a.remaining--
	return label
}

// Target is the clamped number of secondaries this allocator will hand out.
func (a *Allocator) Target() int { return a.target }

// Assigned is how many secondaries were handed out so far.
func (a *Allocator) Assigned() int { return a.assigned }

// Remaining is how many items are still to be labeled.
func (a *Allocator) Remaining() int { return a.remaining }

func (a *Allocator) String() string {
	return fmt.Sprintf("quota %d/%d, %d items left", a.assigned, a.target, a.remaining)
}

// Allocate labels n items with exactly Clamp(target, n) secondaries.
func Allocate(rng Source, n, target int) []form.Label {
	a := NewAllocator(n, target)
	labels := make([]form.Label, max(n, 0))
	for i := range labels {
		labels[i] = a.Next(rng)
	}
	return labels
}
