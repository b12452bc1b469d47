package idle

import (
	"sync"
	"time"
)

// Watcher fires a callback after a period without activity. Activity is
// reported with Touch; each quiet period after activity fires the callback
// again.
type Watcher struct {
	mu       sync.Mutex
	timeout  time.Duration
	onIdle   func()
	timer    *time.Timer
	isIdle   bool
	stopped  bool
	lastSeen time.Time
}

func New() *Watcher {
	return &Watcher{lastSeen: time.Now()}
}

// Idle registers onIdle to run after timeout of inactivity, replacing any
// earlier registration.
func (w *Watcher) Idle(timeout time.Duration, onIdle func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.timeout = timeout
	w.onIdle = onIdle
	w.isIdle = false
	w.arm()
}

// Touch records activity and restarts the countdown.
func (w *Watcher) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeen = time.Now()
	w.isIdle = false
	if w.onIdle != nil && !w.stopped {
		w.arm()
	}
}

// IsIdle reports whether the callback has fired since the last activity.
func (w *Watcher) IsIdle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isIdle
}

func (w *Watcher) LastActivity() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// Stop cancels the pending callback. The watcher cannot be re-armed.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
}

// arm must be called with mu held.
func (w *Watcher) arm() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.timeout, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	if w.stopped || w.isIdle || time.Since(w.lastSeen) < w.timeout {
		w.mu.Unlock()
		return
	}
	w.isIdle = true
	fn := w.onIdle
	w.mu.Unlock()
	if fn != nil {
		fn()
	}
}
