// Package history keeps a small on-disk record of finished runs and
// running totals across them.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"autoeval/internal/logging"
	"autoeval/internal/sequencer"
)

// DefaultKeep is how many run records are retained.
const DefaultKeep = 50

// Tracker records run summaries and persists them as JSON.
type Tracker struct {
	mu       sync.Mutex
	data     Data
	filePath string
	keep     int
}

// NewTracker opens (or starts) the history at path. A corrupt file is
// logged and replaced on the next save.
func NewTracker(path string) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}

	t := &Tracker{
		filePath: path,
		keep:     DefaultKeep,
		data:     Data{Version: "1.0"},
	}
	t.data.Aggregate.init()

	if err := t.Load(); err != nil {
		logging.Get(logging.CategorySequencer).Warn("ignoring unreadable history %s: %v", path, err)
		t.data = Data{Version: "1.0"}
		t.data.Aggregate.init()
	}
	return t, nil
}

func (s *Stats) init() {
	if s.ByOutcome == nil {
		s.ByOutcome = make(map[string]Counts)
	}
	if s.ByMode == nil {
		s.ByMode = make(map[string]Counts)
	}
}

// Load reads the history from disk. A missing file is not an error.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var loaded Data
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}
	loaded.Aggregate.init()
	t.data = loaded
	return nil
}

// Save writes the history to disk.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

func (t *Tracker) saveLocked() error {
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.filePath, data, 0644)
}

// Record adds a finished run and saves.
func (t *Tracker) Record(sum sequencer.Summary) error {
	rec := RunRecord{
		RunID:      sum.RunID,
		Mode:       sum.Mode.String(),
		Outcome:    string(sum.Outcome),
		Reason:     sum.Reason,
		StartedAt:  sum.StartedAt,
		Duration:   sum.Duration,
		ItemsSet:   sum.ItemsSet(),
		ItemErrors: sum.ItemErrors(),
	}
	for _, e := range sum.Entities {
		rec.Entities = append(rec.Entities, e.Entity.String())
		rec.Secondary += e.Secondary
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Runs = append(t.data.Runs, rec)
	if len(t.data.Runs) > t.keep {
		t.data.Runs = append([]RunRecord(nil), t.data.Runs[len(t.data.Runs)-t.keep:]...)
	}
	t.data.Aggregate.Total.Add(rec)
	addTo(t.data.Aggregate.ByOutcome, rec.Outcome, rec)
	addTo(t.data.Aggregate.ByMode, rec.Mode, rec)

	return t.saveLocked()
}

// Observe is a sequencer.Observer recording every terminal event.
func (t *Tracker) Observe(ev sequencer.Event) {
	if !ev.Type.Terminal() || ev.Summary == nil {
		return
	}
	if err := t.Record(*ev.Summary); err != nil {
		logging.SequencerWarn("failed to save run history: %v", err)
	}
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.data.Aggregate
	stats.ByOutcome = copyCountsMap(stats.ByOutcome)
	stats.ByMode = copyCountsMap(stats.ByMode)
	return stats
}

// Recent returns up to n of the latest runs, newest first.
func (t *Tracker) Recent(n int) []RunRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	runs := t.data.Runs
	if n <= 0 || n > len(runs) {
		n = len(runs)
	}
	out := make([]RunRecord, 0, n)
	for i := len(runs) - 1; i >= len(runs)-n; i-- {
		out = append(out, runs[i])
	}
	return out
}

func copyCountsMap(src map[string]Counts) map[string]Counts {
	if src == nil {
		return nil
	}
	dst := make(map[string]Counts, len(src))
	for key, counts := range src {
		dst[key] = counts
	}
	return dst
}

func addTo(m map[string]Counts, key string, r RunRecord) {
	entry := m[key]
	entry.Add(r)
	m[key] = entry
}
