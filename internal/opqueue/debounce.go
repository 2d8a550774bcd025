package opqueue

import (
	"sync"
	"time"
)

// Debouncer collapses rapid repeated commands to at most one per window.
// It is applied before enqueue, so duplicate play/pause taps never reach
// the queue at all.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
	now    func() time.Time
}

// NewDebouncer creates a debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window, now: time.Now}
}

// Allow reports whether a command may pass, and if so starts a new window.
func (d *Debouncer) Allow() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if !d.last.IsZero() && now.Sub(d.last) < d.window {
		return false
	}
	d.last = now
	return true
}

// Reset clears the window so the next command passes immediately.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = time.Time{}
}
