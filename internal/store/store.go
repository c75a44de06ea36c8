// Package store persists the small amount of client state that must
// survive a restart: the active job handle per conversation, so polling
// can resume without re-submitting the task, and the last UI state.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrJobHandleNotFound = errors.New("job handle not found")
)

// JobHandle maps a conversation to its in-flight job. It is written
// when the job is created, before the first poll response, and deleted
// atomically with the transition to a terminal status.
type JobHandle struct {
	ConversationID string    `json:"conversation_id"`
	JobID          string    `json:"job_id"`
	LastActivityID int64     `json:"last_activity_id"`
	SavedAt        time.Time `json:"saved_at"`
}

// AppState is the persisted UI state.
type AppState struct {
	ActiveConversationID string `json:"active_conversation_id,omitempty"`
}

type JobHandleStore interface {
	Get(ctx context.Context, conversationID string) (*JobHandle, bool, error)
	Put(ctx context.Context, handle *JobHandle) error
	Delete(ctx context.Context, conversationID string) error
	List(ctx context.Context) ([]*JobHandle, error)
}

type AppStateStore interface {
	Load(ctx context.Context) (*AppState, error)
	Save(ctx context.Context, state *AppState) error
}

type Repository interface {
	Jobs() JobHandleStore
	AppState() AppStateStore
	Close() error
}
