package fetch

import (
	"sync"

	"github.com/matheus3301/zfetch/internal/bus"
)

// BusReporter turns connection errors into ui.error_* events. Only state
// changes are published, so repeated failures show the error once.
type BusReporter struct {
	bus *bus.Bus

	mu      sync.Mutex
	showing bool
	last    string
}

func NewBusReporter(b *bus.Bus) *BusReporter {
	return &BusReporter{bus: b}
}

func (r *BusReporter) ShowError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = err.Error()
	if r.showing {
		return
	}
	r.showing = true
	r.bus.Emit(bus.KindUIErrorShown, r.last)
}

func (r *BusReporter) HideError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.showing {
		return
	}
	r.showing = false
	r.bus.Emit(bus.KindUIErrorHidden, r.last)
}

// Showing reports whether an error is currently shown, and its text.
func (r *BusReporter) Showing() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.showing, r.last
}
