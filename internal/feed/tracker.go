package feed

import (
	"errors"
	"sync"
)

var (
	// ErrInvalidTransition is returned when an optimistic item leaves a terminal state
	// or is added twice.
	ErrInvalidTransition = errors.New("invalid optimistic item transition")
	// ErrUnknownItem is returned for a local ID the tracker has never seen.
	ErrUnknownItem = errors.New("unknown optimistic item")
)

// OptimisticState is the lifecycle of a locally submitted item.
type OptimisticState int

// Optimistic states. Confirmed and RolledBack are terminal.
const (
	OptimisticPending OptimisticState = iota
	OptimisticConfirmed
	OptimisticRolledBack
)

func (s OptimisticState) String() string {
	switch s {
	case OptimisticPending:
		return "pending"
	case OptimisticConfirmed:
		return "confirmed"
	case OptimisticRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

type optimistic struct {
	state OptimisticState
	item  Item
}

// Tracker shows a guest's own submissions before the server has acknowledged them.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*optimistic
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*optimistic)}
}

// AddPending registers item under localID.
func (t *Tracker) AddPending(localID string, item Item) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[localID]; ok {
		return ErrInvalidTransition
	}
	item.ID = localID
	t.entries[localID] = &optimistic{state: OptimisticPending, item: item}
	return nil
}

// Confirm replaces the pending item with the server's copy.
func (t *Tracker) Confirm(localID string, server Item) error {
	return t.transition(localID, OptimisticConfirmed, &server)
}

// RollBack removes the pending item from views.
func (t *Tracker) RollBack(localID string) error {
	return t.transition(localID, OptimisticRolledBack, nil)
}

func (t *Tracker) transition(localID string, to OptimisticState, server *Item) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[localID]
	if !ok {
		return ErrUnknownItem
	}
	if e.state != OptimisticPending {
		return ErrInvalidTransition
	}
	e.state = to
	if server != nil {
		e.item = *server
	}
	return nil
}

// State returns the state of localID.
func (t *Tracker) State(localID string) (OptimisticState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[localID]
	if !ok {
		return 0, false
	}
	return e.state, true
}

// View overlays pending and confirmed items on a server feed. Confirmed items
// de-duplicate against the server copy once it arrives.
func (t *Tracker) View(base []Item) []Item {
	t.mu.Lock()
	overlay := make([]Item, 0, len(t.entries))
	for _, e := range t.entries {
		if e.state != OptimisticRolledBack {
			overlay = append(overlay, e.item)
		}
	}
	t.mu.Unlock()
	return Merge(base, overlay, 0)
}
