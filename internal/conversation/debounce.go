package conversation

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid triggers (search-as-you-type) into one
// delayed call. Each trigger advances a generation token; the pending
// timer and any in-flight request from an older generation are
// invalidated, using the same identity-guard pattern as the Reconciler.
type Debouncer struct {
	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
}

func NewDebouncer() *Debouncer {
	return &Debouncer{}
}

// Trigger schedules fn after delay, cancelling any pending schedule.
// fn receives the generation it was scheduled under so its result can
// be checked with Valid before being applied.
func (d *Debouncer) Trigger(delay time.Duration, fn func(generation uint64)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	generation := d.generation
	d.timer = time.AfterFunc(delay, func() {
		fn(generation)
	})
}

// Valid reports whether a result produced under generation is still the
// latest; superseded results are discarded by the caller.
func (d *Debouncer) Valid(generation uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return generation == d.generation
}

// Cancel invalidates any pending schedule and all in-flight results.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.generation++
}
