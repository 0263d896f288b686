// Package debounce provides a resettable idle timer for search-as-you-type:
// each keystroke re-arms the timer and the callback fires once typing stops.
package debounce

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of Trigger calls into one callback after the
// idle duration elapses.
type Debouncer struct {
	mu    sync.Mutex
	d     time.Duration
	timer *time.Timer
}

// New creates a debouncer with the given idle duration.
func New(d time.Duration) *Debouncer {
	return &Debouncer{d: d}
}

// Trigger schedules fn to run after the idle duration, replacing any
// previously scheduled callback.
func (db *Debouncer) Trigger(fn func()) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.timer != nil {
		db.timer.Stop()
	}
	db.timer = time.AfterFunc(db.d, fn)
}

// Stop cancels any pending callback.
func (db *Debouncer) Stop() {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.timer != nil {
		db.timer.Stop()
		db.timer = nil
	}
}
