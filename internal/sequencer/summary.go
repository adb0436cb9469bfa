package sequencer

import (
	"fmt"
	"time"

	"autoeval/internal/control"
	"autoeval/internal/form"
)

// EntityResult is what happened to one entity.
type EntityResult struct {
	Entity    form.EntityHandle
	Items     int
	Target    int // sampled secondary quota, clamped to Items
	Secondary int // secondary labels handed out
	Set       int // items clicked
	Skipped   int // items already in the wanted state
	Errors    int // items that failed and were skipped
	Commented bool
	Saves     int
	Submitted bool
	Empty     bool // no items were discovered
	Failed    bool // abandoned after an unexpected error; the run went on
	Missing   []form.ActionKind
}

// Line renders the per-entity tally logged after each entity.
func (r EntityResult) Line() string {
	return fmt.Sprintf("%s: %d secondary, %d primary of %d items (set %d, kept %d, failed %d)",
		r.Entity, r.Secondary, r.Items-r.Secondary, r.Items, r.Set, r.Skipped, r.Errors)
}

// Summary describes a finished run.
type Summary struct {
	RunID     string
	Mode      Mode
	Outcome   control.State
	Reason    string
	StartedAt time.Time
	Duration  time.Duration
	Entities  []EntityResult
}

// ItemsSet counts clicked items across entities.
func (s Summary) ItemsSet() int {
	n := 0
	for _, e := range s.Entities {
		n += e.Set
	}
	return n
}

// ItemErrors counts failed items across entities.
func (s Summary) ItemErrors() int {
	n := 0
	for _, e := range s.Entities {
		n += e.Errors
	}
	return n
}

func (s Summary) String() string {
	return fmt.Sprintf("run %s %s: %d entities, %d items set, %d item errors in %v",
		s.RunID, s.Outcome, len(s.Entities), s.ItemsSet(), s.ItemErrors(), s.Duration.Round(time.Millisecond))
}
