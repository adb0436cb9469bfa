// Package form defines the contract between the sequencing engine and whatever
// front-end renders the evaluation form: discovery of entities and items, and
// dispatch of logical actions. The engine never sees selectors or pages.
package form

import (
	"context"
	"errors"
	"fmt"
)

// ErrActionMissing is wrapped by dispatchers when the control an action needs
// (save button, comment box, option input) cannot be located.
var ErrActionMissing = errors.New("action target not found")

// Selection is the current state of one item.
type Selection int

const (
	Unselected Selection = iota
	PrimarySelected
	SecondarySelected
)

func (s Selection) String() string {
	switch s {
	case PrimarySelected:
		return "primary"
	case SecondarySelected:
		return "secondary"
	default:
		return "unselected"
	}
}

// Label is the choice the engine wants for an item.
type Label int

const (
	Primary Label = iota
	Secondary
)

func (l Label) String() string {
	if l == Secondary {
		return "secondary"
	}
	return "primary"
}

// Selection returns the item state that satisfies the label.
func (l Label) Selection() Selection {
	if l == Secondary {
		return SecondarySelected
	}
	return PrimarySelected
}

// OptionIndex is the option position used in SelectOption actions.
func (l Label) OptionIndex() int {
	return int(l)
}

// Item is one line of the active entity. Items are rediscovered each time an
// entity is entered; IDs are only meaningful within that entity.
type Item struct {
	ID       string
	Index    int
	Title    string
	Selected Selection
}

// EntityHandle references one target entity (e.g. one instructor's form).
// Ref is opaque to the engine.
type EntityHandle struct {
	Ref   string
	Label string
}

func (h EntityHandle) String() string {
	if h.Label != "" {
		return h.Label
	}
	return h.Ref
}

// Discoverer enumerates what is currently on screen.
type Discoverer interface {
	// DiscoverItems returns the items of the active entity in display order.
	// An empty slice is a reportable condition, not an error.
	DiscoverItems(ctx context.Context) ([]Item, error)
	// DiscoverUnprocessedEntities returns entities still pending; empty means done.
	DiscoverUnprocessedEntities(ctx context.Context) ([]EntityHandle, error)
	// IsDialogPresent reports whether an incidental confirmation dialog is visible.
	IsDialogPresent(ctx context.Context) (bool, error)
}

// Dispatcher performs logical actions. Effects are observed only through later
// discovery calls.
type Dispatcher interface {
	Dispatch(ctx context.Context, action Action) error
}

// Frontend is the full collaborator the engine drives.
type Frontend interface {
	Discoverer
	Dispatcher
}

// MissingError builds an ErrActionMissing for a named control.
func MissingError(kind ActionKind, what string) error {
	return fmt.Errorf("%s: %s: %w", kind, what, ErrActionMissing)
}
