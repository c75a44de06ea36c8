package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

// NewMemoryRepository returns a Repository backed by process memory,
// used by tests and by one-shot runs that should not touch the state db.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		jobs:     &memoryJobHandleStore{handles: make(map[string]JobHandle)},
		appState: &memoryAppStateStore{},
	}
}

type memoryRepository struct {
	jobs     JobHandleStore
	appState AppStateStore
}

func (r *memoryRepository) Jobs() JobHandleStore    { return r.jobs }
func (r *memoryRepository) AppState() AppStateStore { return r.appState }
func (r *memoryRepository) Close() error            { return nil }

type memoryJobHandleStore struct {
	mu      sync.Mutex
	handles map[string]JobHandle
}

func (s *memoryJobHandleStore) Get(ctx context.Context, conversationID string) (*JobHandle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.handles[conversationID]
	if !ok {
		return nil, false, nil
	}
	copyHandle := handle
	return &copyHandle, true, nil
}

func (s *memoryJobHandleStore) Put(ctx context.Context, handle *JobHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if handle == nil || handle.ConversationID == "" || handle.JobID == "" {
		return errors.New("job handle requires conversation_id and job_id")
	}
	normalized := *handle
	if normalized.SavedAt.IsZero() {
		normalized.SavedAt = time.Now().UTC()
	}
	s.handles[normalized.ConversationID] = normalized
	return nil
}

func (s *memoryJobHandleStore) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handles[conversationID]; !ok {
		return ErrJobHandleNotFound
	}
	delete(s.handles, conversationID)
	return nil
}

func (s *memoryJobHandleStore) List(ctx context.Context) ([]*JobHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*JobHandle, 0, len(s.handles))
	for _, handle := range s.handles {
		copyHandle := handle
		out = append(out, &copyHandle)
	}
	return out, nil
}

type memoryAppStateStore struct {
	mu    sync.Mutex
	state AppState
}

func (s *memoryAppStateStore) Load(ctx context.Context) (*AppState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyState := s.state
	return &copyState, nil
}

func (s *memoryAppStateStore) Save(ctx context.Context, state *AppState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state != nil {
		s.state = *state
	}
	return nil
}
