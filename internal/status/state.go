package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/zfetch/internal/bus"
)

// State is a load phase of the home view.
type State string

const (
	Booting     State = "BOOTING"
	Loading     State = "LOADING"
	CatchingUp  State = "CATCHING_UP"
	Ready       State = "READY"
	Backfilling State = "BACKFILLING"
	Degraded    State = "DEGRADED"
	Error       State = "ERROR"
)

var validTransitions = map[State][]State{
	Booting:     {Loading, Error},
	Loading:     {CatchingUp, Ready, Degraded, Error},
	CatchingUp:  {Ready, Degraded, Error},
	Ready:       {Backfilling, Degraded, Error},
	Backfilling: {Ready, Degraded, Error},
	Degraded:    {Loading, CatchingUp, Ready, Backfilling, Error},
	Error:       {Booting},
}

// Machine tracks and enforces home-view state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	bus     *bus.Bus
}

// NewMachine creates a machine in the Booting state. b may be nil.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		since:   time.Now(),
		bus:     b,
	}
}

func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Since returns when the current state was entered.
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// Transition moves to a new state, or fails if the move is not allowed.
// Transitioning to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindHomeStatusChanged,
			Timestamp: m.since,
			Payload:   StatusChange{From: from, To: to},
		})
	}
	return nil
}

// CanInitialize reports whether an initial load may be (re)started.
func (m *Machine) CanInitialize() bool {
	s := m.Current()
	return s == Booting || s == Degraded
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
