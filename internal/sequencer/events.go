package sequencer

import (
	"time"

	"autoeval/internal/form"
)

// EventType names an engine event.
type EventType string

const (
	EventRunStarted     EventType = "run_started"
	EventRunCompleted   EventType = "run_completed"
	EventRunStopped     EventType = "run_stopped"
	EventRunFailed      EventType = "run_failed"
	EventEntityStarted  EventType = "entity_started"
	EventEntityComplete EventType = "entity_completed"
	EventItemProcessed  EventType = "item_processed"
	EventItemSkipped    EventType = "item_skipped"
	EventItemError      EventType = "item_error"
	EventWarning        EventType = "warning"
	EventDiscoveryEmpty EventType = "discovery_empty"
	EventActionMissing  EventType = "action_missing"
)

// Terminal reports whether the event ends a run.
func (t EventType) Terminal() bool {
	return t == EventRunCompleted || t == EventRunStopped || t == EventRunFailed
}

// Event is one entry of the engine's status stream.
type Event struct {
	Type      EventType
	RunID     string
	Timestamp time.Time
	Message   string
	Err       error

	Entity      form.EntityHandle
	EntityIndex int // 1-based within the run

	Item      form.Item
	ItemIndex int // 1-based within the entity
	ItemCount int
	Label     form.Label
	Action    form.ActionKind

	// Target is the entity's secondary quota; set on entity events.
	Target int

	// Result is set on entity_completed; Summary on terminal events.
	Result  *EntityResult
	Summary *Summary
}

// Observer receives every event synchronously on the run goroutine.
type Observer func(Event)

// emit delivers ev to observers, then offers it to the event channel without
// blocking. A full channel drops the event.
func (e *Engine) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	e.mu.RLock()
	observers := e.observers
	ch := e.events
	e.mu.RUnlock()

	for _, obs := range observers {
		obs(ev)
	}

	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
		// Channel full, skip
	}
}
