package types

import "time"

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Message is one chat entry. ID is client-local; DBID is assigned by the
// server once the message is persisted and is the only key used for
// dedup across reloads (array position is meaningless after a reload).
type Message struct {
	ID        string      `json:"id"`
	DBID      string      `json:"db_id,omitempty"`
	Role      MessageRole `json:"role"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
}

// Conversation is the client-side view of one chat thread. Speculative
// marks an optimistic local entry that has not been confirmed by the
// server yet; it is replaced wholesale, never merged field by field,
// once the authoritative record arrives.
type Conversation struct {
	ID              string           `json:"id"`
	Title           string           `json:"title,omitempty"`
	Messages        []*Message       `json:"messages"`
	ReadAt          *time.Time       `json:"read_at,omitempty"`
	PendingQuestion *PendingQuestion `json:"pending_question,omitempty"`
	PendingOAuth    *PendingOAuth    `json:"pending_oauth,omitempty"`
	HasActiveJob    bool             `json:"has_active_job"`
	Speculative     bool             `json:"speculative,omitempty"`
}
