package types

import "time"

type ActivityType string

const (
	ActivityThinkingStream ActivityType = "thinking_stream"
	ActivityPlanning       ActivityType = "planning"
	ActivityRouting        ActivityType = "routing"
	ActivityProgressStep   ActivityType = "progress_step"
	ActivityToolCall       ActivityType = "tool_call"
	ActivityToolResult     ActivityType = "tool_result"
)

// ActivityEvent is one incremental progress record emitted by a job. IDs
// are strictly increasing per job and double as the poll resumption
// cursor.
type ActivityEvent struct {
	ID        int64        `json:"id"`
	Type      ActivityType `json:"type"`
	ToolName  string       `json:"tool_name,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp,omitempty"`
	IsError   bool         `json:"is_error,omitempty"`
}
