// Package conversation holds the client-side view of chat threads and
// the reconciliation logic that keeps asynchronous fetch results from
// corrupting a conversation the user has already left.
package conversation

import (
	"sync"
	"time"

	"chatctl/internal/types"
)

// Store tracks the currently-active conversation. Several asynchronous
// operations can be outstanding at once (a poll loop, a list refresh, a
// full reload); each one captures the active id when it starts and may
// commit only if that id is still active when it completes.
type Store struct {
	mu     sync.Mutex
	active *types.Conversation
}

func NewStore() *Store {
	return &Store{}
}

// Open makes a conversation the active one, replacing whatever was
// active before. A speculative entry (optimistic insert before the
// server confirms creation) is passed here too and later replaced
// wholesale by Confirm.
func (s *Store) Open(conv *types.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = conv
}

// Confirm replaces a speculative conversation with the authoritative
// server record. Replacement is wholesale, never field-by-field.
func (s *Store) Confirm(conv *types.Conversation) bool {
	if conv == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || !s.active.Speculative {
		return false
	}
	s.active = conv
	return true
}

// Clear drops the active conversation, e.g. on "new chat".
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
}

// ActiveID returns the identity used by every reconciliation guard.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	return s.active.ID
}

// Active returns a shallow snapshot of the active conversation.
func (s *Store) Active() *types.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	copyConv := *s.active
	copyConv.Messages = append([]*types.Message(nil), s.active.Messages...)
	return &copyConv
}

// UpdateActive applies fn to the active conversation only if its id
// still matches conversationID. This is the single mutation path for
// asynchronous results; a mismatch means the fetch went stale and is
// silently dropped by the caller.
func (s *Store) UpdateActive(conversationID string, fn func(*types.Conversation)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.ID != conversationID {
		return false
	}
	fn(s.active)
	return true
}

func (s *Store) setMessages(conversationID string, messages []*types.Message, readAt *time.Time) bool {
	return s.UpdateActive(conversationID, func(conv *types.Conversation) {
		conv.Messages = messages
		conv.ReadAt = readAt
		conv.Speculative = false
	})
}
