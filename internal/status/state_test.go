package status

import (
	"testing"

	"github.com/matheus3301/zfetch/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
	if !m.CanInitialize() {
		t.Error("CanInitialize() = false in BOOTING")
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, Loading},
		{Booting, Error},
		{Loading, CatchingUp},
		{Loading, Ready},
		{Loading, Degraded},
		{CatchingUp, Ready},
		{Ready, Backfilling},
		{Backfilling, Ready},
		{Degraded, Loading},
		{Degraded, Ready},
		{Error, Booting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Ready); err == nil {
		t.Error("Transition(BOOTING -> READY) should fail")
	}
	if m.Current() != Booting {
		t.Errorf("state = %s, want BOOTING (unchanged)", m.Current())
	}
}

func TestSelfTransitionIsNoop(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("home.", 10)
	defer unsub()

	m := NewMachine(b)
	walkTo(t, m, Ready)
	for len(ch) > 0 {
		<-ch
	}

	if err := m.Transition(Ready); err != nil {
		t.Fatalf("Transition(READY -> READY) error = %v", err)
	}
	if len(ch) != 0 {
		t.Errorf("self transition published %d events, want 0", len(ch))
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("home.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Loading); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindHomeStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindHomeStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != Loading {
		t.Errorf("change = %v -> %v, want BOOTING -> LOADING", change.From, change.To)
	}
}

// TestLoadingCannotSkipToBackfilling verifies that backfill only starts once
// the home view has caught up to the newest message.
func TestLoadingCannotSkipToBackfilling(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Loading)

	if err := m.Transition(Backfilling); err == nil {
		t.Fatal("Transition(LOADING -> BACKFILLING) should fail")
	}
	if err := m.Transition(CatchingUp); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(Ready); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(Backfilling); err != nil {
		t.Fatalf("READY -> BACKFILLING: %v", err)
	}
}

// TestRecoveryFromDegraded simulates a failed catch-up that is retried:
// BOOTING → LOADING → DEGRADED → LOADING → READY
func TestRecoveryFromDegraded(t *testing.T) {
	m := NewMachine(nil)

	steps := []State{Loading, Degraded}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if !m.CanInitialize() {
		t.Fatal("CanInitialize() = false in DEGRADED")
	}
	for _, s := range []State{Loading, Ready} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.CanInitialize() {
		t.Error("CanInitialize() = true in READY")
	}
}

func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:     {},
		Loading:     {Loading},
		CatchingUp:  {Loading, CatchingUp},
		Ready:       {Loading, Ready},
		Backfilling: {Loading, Ready, Backfilling},
		Degraded:    {Loading, Degraded},
		Error:       {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
