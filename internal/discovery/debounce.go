package discovery

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of container events into one callback, fired
// interval after the first event of the burst.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	pending  int
	timer    *time.Timer
	onFlush  func(events int)
	closed   bool
}

// NewDebouncer creates a Debouncer. A zero interval flushes on every event.
func NewDebouncer(interval time.Duration, onFlush func(events int)) *Debouncer {
	return &Debouncer{
		interval: interval,
		onFlush:  onFlush,
	}
}

// Notify records an event and starts the timer if not already started.
func (d *Debouncer) Notify() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.pending++
	if d.interval <= 0 {
		d.mu.Unlock()
		d.flush()
		return
	}
	if d.timer == nil {
		d.timer = time.AfterFunc(d.interval, d.flush)
	}
	d.mu.Unlock()
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	n := d.pending
	d.pending = 0
	d.timer = nil
	closed := d.closed
	d.mu.Unlock()

	if n > 0 && !closed {
		d.onFlush(n)
	}
}

// Close stops the timer and drops pending events.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
