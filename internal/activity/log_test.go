package activity

import (
	"testing"

	"chatctl/internal/types"
)

func event(id int64, typ types.ActivityType) *types.ActivityEvent {
	return &types.ActivityEvent{ID: id, Type: typ}
}

func TestLogMergeChunkingIndependent(t *testing.T) {
	all := []*types.ActivityEvent{
		event(1, types.ActivityThinkingStream),
		event(2, types.ActivityPlanning),
		event(3, types.ActivityProgressStep),
		event(4, types.ActivityRouting),
		event(5, types.ActivityThinkingStream),
	}

	chunkings := [][][]*types.ActivityEvent{
		{all},
		{all[:2], all[2:]},
		{all[:3], all[1:]},      // overlapping chunks
		{all[3:], all[:3], all}, // out-of-order arrival plus full replay
		{all[:1], all[:1], all[1:]},
	}

	for i, chunks := range chunkings {
		log := NewLog()
		for _, chunk := range chunks {
			log.Merge(chunk)
		}
		events := log.Events()
		if len(events) != len(all) {
			t.Fatalf("chunking %d: got %d events, want %d", i, len(events), len(all))
		}
		for j, event := range events {
			if event.ID != int64(j+1) {
				t.Fatalf("chunking %d: position %d has id %d", i, j, event.ID)
			}
		}
		if log.LastID() != 5 {
			t.Fatalf("chunking %d: last id %d, want 5", i, log.LastID())
		}
	}
}

func TestLogMergeReplayIsNoop(t *testing.T) {
	log := NewLog()
	chunk := []*types.ActivityEvent{event(1, types.ActivityPlanning), event(2, types.ActivityRouting)}
	if inserted := log.Merge(chunk); inserted != 2 {
		t.Fatalf("first merge inserted %d, want 2", inserted)
	}
	if inserted := log.Merge(chunk); inserted != 0 {
		t.Fatalf("replay inserted %d, want 0", inserted)
	}
	if log.Len() != 2 {
		t.Fatalf("log has %d events, want 2", log.Len())
	}
}

func TestLogMergeSkipsNil(t *testing.T) {
	log := NewLog()
	if inserted := log.Merge([]*types.ActivityEvent{nil, event(7, types.ActivityPlanning)}); inserted != 1 {
		t.Fatalf("inserted %d, want 1", inserted)
	}
	if log.LastID() != 7 {
		t.Fatalf("last id %d, want 7", log.LastID())
	}
}
