package history

import "time"

// Data is the root structure stored on disk.
type Data struct {
	Version   string      `json:"version"`
	Runs      []RunRecord `json:"runs,omitempty"` // most recent last, capped
	Aggregate Stats       `json:"aggregate"`
}

// RunRecord is one finished run.
type RunRecord struct {
	RunID      string        `json:"run_id"`
	Mode       string        `json:"mode"`
	Outcome    string        `json:"outcome"`
	Reason     string        `json:"reason,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Entities   []string      `json:"entities,omitempty"`
	ItemsSet   int           `json:"items_set"`
	ItemErrors int           `json:"item_errors"`
	Secondary  int           `json:"secondary"`
}

// Stats holds counters across every recorded run.
type Stats struct {
	Total     Counts            `json:"total"`
	ByOutcome map[string]Counts `json:"by_outcome"`
	ByMode    map[string]Counts `json:"by_mode"`
}

// Counts are per-dimension sums.
type Counts struct {
	Runs       int64 `json:"runs"`
	Entities   int64 `json:"entities"`
	ItemsSet   int64 `json:"items_set"`
	ItemErrors int64 `json:"item_errors"`
	Secondary  int64 `json:"secondary"`
}

// Add folds one run into the counts.
func (c *Counts) Add(r RunRecord) {
	c.Runs++
	c.Entities += int64(len(r.Entities))
	c.ItemsSet += int64(r.ItemsSet)
	c.ItemErrors += int64(r.ItemErrors)
	c.Secondary += int64(r.Secondary)
}
