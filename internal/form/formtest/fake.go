// Package formtest provides an in-memory form.Frontend for engine tests.
package formtest

import (
	"context"
	"fmt"
	"sync"

	"autoeval/internal/form"
)

// Entity is one fake entity with its items.
type Entity struct {
	Handle  form.EntityHandle
	Items   []form.Item
	Pending bool
}

// Frontend records every dispatched action and mutates its in-memory page the
// way a real form would.
type Frontend struct {
	mu       sync.Mutex
	entities []*Entity
	active   int
	dialog   bool
	actions  []form.Action

	// DialogOnSave raises a dialog after every Save.
	DialogOnSave bool
	// DialogOnConfirm raises a dialog after Confirm.
	DialogOnConfirm bool
	// CompleteOnSave marks the active entity as no longer pending after Save.
	CompleteOnSave bool
	// LoadingPolls makes DiscoverItems return nothing for this many calls after a switch.
	LoadingPolls int
	// Missing makes Dispatch fail with form.ErrActionMissing for these kinds.
	Missing map[form.ActionKind]bool
	// FailItems makes SelectOption fail for these item IDs.
	FailItems map[string]error
	// OnDispatch runs after each recorded action, outside the lock. n is 1-based.
	OnDispatch func(n int, a form.Action)

	loading int
}

// New builds a fake whose first entity is active.
func New(entities ...*Entity) *Frontend {
	return &Frontend{entities: entities}
}

// Items builds n unselected items.
func Items(n int) []form.Item {
	items := make([]form.Item, n)
	for i := range items {
		items[i] = form.Item{ID: fmt.Sprintf("item-%d", i+1), Index: i, Title: fmt.Sprintf("Item %d", i+1)}
	}
	return items
}

// SingleEntity is a convenience for one active entity of n unselected items.
func SingleEntity(n int) *Frontend {
	return New(&Entity{Handle: form.EntityHandle{Ref: "e1", Label: "Entity 1"}, Items: Items(n), Pending: true})
}

func (f *Frontend) DiscoverItems(ctx context.Context) ([]form.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loading > 0 {
		f.loading--
		return nil, nil
	}
	if f.active < 0 || f.active >= len(f.entities) {
		return nil, nil
	}
	items := make([]form.Item, len(f.entities[f.active].Items))
	copy(items, f.entities[f.active].Items)
	return items, nil
}

func (f *Frontend) DiscoverUnprocessedEntities(ctx context.Context) ([]form.EntityHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []form.EntityHandle
	for _, e := range f.entities {
		if e.Pending {
			out = append(out, e.Handle)
		}
	}
	return out, nil
}

func (f *Frontend) IsDialogPresent(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dialog, nil
}

// SetDialog forces the dialog state.
func (f *Frontend) SetDialog(present bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialog = present
}

func (f *Frontend) Dispatch(ctx context.Context, a form.Action) error {
	f.mu.Lock()
	if f.Missing[a.Kind] {
		f.mu.Unlock()
		return form.MissingError(a.Kind, "fake")
	}
	if a.Kind == form.ActionSelectOption {
		if err, ok := f.FailItems[a.Item.ID]; ok {
			f.mu.Unlock()
			return err
		}
	}
	f.actions = append(f.actions, a)
	n := len(f.actions)
	f.apply(a)
	hook := f.OnDispatch
	f.mu.Unlock()

	if hook != nil {
		hook(n, a)
	}
	return nil
}

func (f *Frontend) apply(a form.Action) {
	switch a.Kind {
	case form.ActionSelectOption:
		if e := f.activeEntity(); e != nil {
			for i := range e.Items {
				if e.Items[i].ID == a.Item.ID {
					e.Items[i].Selected = form.Label(a.Option).Selection()
				}
			}
		}
	case form.ActionSave:
		if f.DialogOnSave {
			f.dialog = true
		}
		if f.CompleteOnSave {
			if e := f.activeEntity(); e != nil {
				e.Pending = false
			}
		}
	case form.ActionConfirm:
		if f.DialogOnConfirm {
			f.dialog = true
		}
	case form.ActionDismissDialog:
		f.dialog = false
	case form.ActionSwitchEntity:
		f.active = -1
		for i, e := range f.entities {
			if e.Handle.Ref == a.Entity.Ref {
				f.active = i
			}
		}
		f.loading = f.LoadingPolls
	}
}

func (f *Frontend) activeEntity() *Entity {
	if f.active < 0 || f.active >= len(f.entities) {
		return nil
	}
	return f.entities[f.active]
}

// Actions returns a copy of every recorded action.
func (f *Frontend) Actions() []form.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]form.Action, len(f.actions))
	copy(out, f.actions)
	return out
}

// Count returns how many actions of the kind were recorded; an empty kind counts all.
func (f *Frontend) Count(kind form.ActionKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind == "" {
		return len(f.actions)
	}
	n := 0
	for _, a := range f.actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Selections returns the current selection of every item of entity i.
func (f *Frontend) Selections(i int) []form.Selection {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]form.Selection, len(f.entities[i].Items))
	for j, it := range f.entities[i].Items {
		out[j] = it.Selected
	}
	return out
}

var _ form.Frontend = (*Frontend)(nil)
