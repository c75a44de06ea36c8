package client

import (
	"time"

	"chatctl/internal/types"
)

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type ChatResponse struct {
	JobID          string `json:"job_id"`
	ConversationID string `json:"conversation_id"`
}

type JobPollResponse struct {
	Status         string                 `json:"status"`
	Activities     []*types.ActivityEvent `json:"activities"`
	LastActivityID int64                  `json:"last_activity_id"`
	Question       *types.PendingQuestion `json:"question,omitempty"`
	OAuth          *types.PendingOAuth    `json:"oauth,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

type RespondRequest struct {
	Response string `json:"response"`
}

type MessagesResponse struct {
	Messages []*types.Message `json:"messages"`
	ReadAt   *time.Time       `json:"read_at,omitempty"`
}

// Poll status values reported by the backend.
const (
	PollStatusRunning        = "running"
	PollStatusAwaitingAnswer = "awaiting_answer"
	PollStatusAwaitingOAuth  = "awaiting_oauth"
	PollStatusCompleted      = "completed"
	PollStatusFailed         = "failed"
	PollStatusCancelled      = "cancelled"
)
