package types

import "time"

type JobStatus string

const (
	JobStatusIdle           JobStatus = "idle"
	JobStatusSending        JobStatus = "sending"
	JobStatusPolling        JobStatus = "polling"
	JobStatusAwaitingAnswer JobStatus = "awaiting_answer"
	JobStatusAwaitingOAuth  JobStatus = "awaiting_oauth"
	JobStatusCancelling     JobStatus = "cancelling"
	JobStatusCompleted      JobStatus = "completed"
	JobStatusFailed         JobStatus = "failed"
)

// Terminal reports whether no further polls may be issued for a job in
// this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one long-running agent task tied to a conversation. At most one
// non-terminal Job exists per conversation.
type Job struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	Status          JobStatus `json:"status"`
	LastActivityID  int64     `json:"last_activity_id"`
	CancelRequested bool      `json:"cancel_requested"`
	CreatedAt       time.Time `json:"created_at"`
}

// PendingQuestion pauses a job until the user answers.
type PendingQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// PendingOAuth pauses a job until the user completes a provider consent
// flow out of band.
type PendingOAuth struct {
	JobID    string `json:"job_id"`
	Provider string `json:"provider"`
	AuthURL  string `json:"auth_url"`
	Reason   string `json:"reason,omitempty"`
}
