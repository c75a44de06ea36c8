package conversation

import (
	"sync"
	"testing"
	"time"
)

func TestDebouncerCoalescesTriggers(t *testing.T) {
	d := NewDebouncer()
	var mu sync.Mutex
	var fired []uint64

	for i := 0; i < 5; i++ {
		d.Trigger(20*time.Millisecond, func(generation uint64) {
			mu.Lock()
			defer mu.Unlock()
			fired = append(fired, generation)
		})
	}
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 {
		t.Fatalf("fired %d times, want 1", len(fired))
	}
	if !d.Valid(fired[0]) {
		t.Fatal("latest generation reported stale")
	}
}

func TestDebouncerInvalidatesSupersededResults(t *testing.T) {
	d := NewDebouncer()
	results := make(chan uint64, 2)

	d.Trigger(time.Millisecond, func(generation uint64) {
		// Simulate a slow in-flight request superseded by a new keystroke.
		time.Sleep(20 * time.Millisecond)
		results <- generation
	})
	time.Sleep(5 * time.Millisecond)
	d.Trigger(time.Millisecond, func(generation uint64) {
		results <- generation
	})

	first := <-results
	second := <-results
	if d.Valid(first) == d.Valid(second) {
		t.Fatalf("expected exactly one valid generation: %d=%v %d=%v",
			first, d.Valid(first), second, d.Valid(second))
	}
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer()
	fired := make(chan uint64, 1)
	d.Trigger(10*time.Millisecond, func(generation uint64) {
		fired <- generation
	})
	d.Cancel()
	select {
	case generation := <-fired:
		// Timer may have fired before Stop; the generation guard still
		// rejects the result.
		if d.Valid(generation) {
			t.Fatal("cancelled generation reported valid")
		}
	case <-time.After(40 * time.Millisecond):
	}
}
