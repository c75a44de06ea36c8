// Package activity keeps the ordered progress feed for one job and
// classifies raw events into the channels the UI renders: thinking and
// progress steps, web searches, and delegated sub-tasks.
package activity

import (
	"sort"

	"chatctl/internal/types"
)

// Log is an append-only collection of activity events for one job,
// always ordered by event id. Overlapping poll responses may arrive in
// any order, so Merge deduplicates by id instead of blindly appending.
type Log struct {
	events []*types.ActivityEvent
	seen   map[int64]struct{}
	lastID int64
}

func NewLog() *Log {
	return &Log{seen: make(map[int64]struct{})}
}

// Merge folds a poll response into the log and reports how many events
// were new. Replaying an already-applied chunk is a no-op.
func (l *Log) Merge(events []*types.ActivityEvent) int {
	inserted := 0
	for _, event := range events {
		if event == nil {
			continue
		}
		if _, ok := l.seen[event.ID]; ok {
			continue
		}
		l.seen[event.ID] = struct{}{}
		l.events = append(l.events, event)
		inserted++
		if event.ID > l.lastID {
			l.lastID = event.ID
		}
	}
	if inserted > 0 {
		sort.Slice(l.events, func(i, j int) bool {
			return l.events[i].ID < l.events[j].ID
		})
	}
	return inserted
}

// Events returns the log in id order. The slice is shared; callers must
// not mutate it.
func (l *Log) Events() []*types.ActivityEvent {
	return l.events
}

// LastID is the resumption cursor for the next poll.
func (l *Log) LastID() int64 {
	return l.lastID
}

func (l *Log) Len() int {
	return len(l.events)
}
