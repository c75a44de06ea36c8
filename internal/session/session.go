// Package session owns one job's lifecycle for one conversation:
// creation, incremental polling, pausing for user input or OAuth
// consent, cancellation, and termination. Sessions are explicitly
// constructed instances, never process globals, so tests can run many
// in isolation.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"chatctl/internal/activity"
	"chatctl/internal/client"
	"chatctl/internal/logging"
	"chatctl/internal/store"
	"chatctl/internal/types"
)

var (
	// ErrJobActive rejects a second send while the conversation's job
	// is still non-terminal.
	ErrJobActive = errors.New("a job is already active for this conversation")

	// ErrNotAwaitingAnswer rejects a respond outside the paused state.
	ErrNotAwaitingAnswer = errors.New("job is not awaiting an answer")

	// ErrJobTerminal rejects operations on a finished job.
	ErrJobTerminal = errors.New("job already reached a terminal state")
)

// API is the slice of the HTTP client a session drives.
type API interface {
	SendChat(ctx context.Context, req client.ChatRequest) (*client.ChatResponse, error)
	PollJob(ctx context.Context, jobID string, sinceActivityID int64) (*client.JobPollResponse, error)
	RespondJob(ctx context.Context, jobID, response string) error
	CancelJob(ctx context.Context, jobID string) error
}

// Update is a snapshot emitted on every observable change. It carries
// the full classified feed, so a dropped update never loses state.
type Update struct {
	ConversationID string
	JobID          string
	Status         types.JobStatus
	Entries        []*activity.Entry
	LastActivityID int64
	Question       *types.PendingQuestion
	OAuth          *types.PendingOAuth
	Err            error
}

type Options struct {
	PollInterval time.Duration
	RetryBudget  int
	Logger       logging.Logger
}

// Session is the per-conversation state machine. All mutation happens
// under one mutex; the poll loop is the only goroutine the session
// owns, and Cancel always outranks a racing poll result.
type Session struct {
	api            API
	jobs           store.JobHandleStore
	log            logging.Logger
	conversationID string

	pollInterval time.Duration
	retryBudget  int

	mu          sync.Mutex
	job         *types.Job
	feed        *activity.Log
	question    *types.PendingQuestion
	oauth       *types.PendingOAuth
	stopPolling context.CancelFunc

	updates chan Update
}

func New(api API, jobs store.JobHandleStore, conversationID string, opts Options) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 750 * time.Millisecond
	}
	if opts.RetryBudget <= 0 {
		opts.RetryBudget = 5
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Session{
		api:            api,
		jobs:           jobs,
		log:            opts.Logger.With(logging.F("conversation", conversationID)),
		conversationID: conversationID,
		pollInterval:   opts.PollInterval,
		retryBudget:    opts.RetryBudget,
		feed:           activity.NewLog(),
		updates:        make(chan Update, 64),
	}
}

// Updates delivers state snapshots. Sends never block; a full buffer
// drops intermediate snapshots (the next one carries the complete state
// again), but a terminal snapshot always displaces an older one.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Start submits the task and begins polling. The job handle is
// persisted before the first poll so a restart can re-attach. An
// insufficient-balance response aborts only this attempt: no handle is
// persisted and the session returns to idle.
func (s *Session) Start(ctx context.Context, message string) error {
	s.mu.Lock()
	if s.job != nil && !s.job.Status.Terminal() {
		s.mu.Unlock()
		return ErrJobActive
	}
	s.job = &types.Job{
		ConversationID: s.conversationID,
		Status:         types.JobStatusSending,
		CreatedAt:      time.Now().UTC(),
	}
	s.feed = activity.NewLog()
	s.question = nil
	s.oauth = nil
	s.mu.Unlock()
	s.emit(nil)

	resp, err := s.api.SendChat(ctx, client.ChatRequest{
		Message:        message,
		ConversationID: s.conversationID,
	})
	if err != nil {
		s.mu.Lock()
		s.job = nil
		s.mu.Unlock()
		if client.IsInsufficientBalance(err) {
			s.log.Warn("send rejected: insufficient balance")
		}
		s.emit(err)
		return err
	}

	s.mu.Lock()
	if s.job == nil || s.job.Status.Terminal() {
		s.mu.Unlock()
		return nil
	}
	s.job.ID = resp.JobID
	if resp.ConversationID != "" {
		s.job.ConversationID = resp.ConversationID
		s.conversationID = resp.ConversationID
	}
	cancelled := s.job.CancelRequested
	if !cancelled {
		s.job.Status = types.JobStatusPolling
	}
	s.mu.Unlock()

	if cancelled {
		// The user cancelled while the send was still in flight. The
		// job id exists only now, so the cancel is posted here, the
		// cancelled terminal state stands, and no polls are issued.
		if err := s.api.CancelJob(ctx, resp.JobID); err != nil {
			s.log.Warn("cancel freshly created job",
				logging.F("job", resp.JobID), logging.F("err", err))
		}
		s.finish(types.JobStatusCompleted, nil)
		return nil
	}

	if err := s.persistHandle(ctx); err != nil {
		s.log.Error("persist job handle", logging.F("err", err))
	}
	s.emit(nil)
	s.startPolling(resp.JobID, 0)
	return nil
}

// Resume re-attaches to a job persisted before a restart and continues
// polling from the saved cursor.
func (s *Session) Resume(handle *store.JobHandle) error {
	if handle == nil || handle.JobID == "" {
		return errors.New("job handle is required")
	}
	s.mu.Lock()
	if s.job != nil && !s.job.Status.Terminal() {
		s.mu.Unlock()
		return ErrJobActive
	}
	s.job = &types.Job{
		ID:             handle.JobID,
		ConversationID: handle.ConversationID,
		Status:         types.JobStatusPolling,
		LastActivityID: handle.LastActivityID,
	}
	s.feed = activity.NewLog()
	s.mu.Unlock()
	s.emit(nil)
	s.startPolling(handle.JobID, handle.LastActivityID)
	return nil
}

// Respond answers a pending question and resumes polling. An answer
// that is empty after trimming is rejected as a no-op.
func (s *Session) Respond(ctx context.Context, answer string) error {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil
	}
	s.mu.Lock()
	if s.job == nil || s.job.Status != types.JobStatusAwaitingAnswer {
		s.mu.Unlock()
		return ErrNotAwaitingAnswer
	}
	jobID := s.job.ID
	cursor := s.job.LastActivityID
	s.mu.Unlock()

	if err := s.api.RespondJob(ctx, jobID, answer); err != nil {
		s.emit(err)
		return err
	}

	s.mu.Lock()
	if s.job == nil || s.job.ID != jobID || s.job.Status.Terminal() {
		s.mu.Unlock()
		return nil
	}
	s.question = nil
	s.job.Status = types.JobStatusPolling
	s.mu.Unlock()
	s.emit(nil)
	s.startPolling(jobID, cursor)
	return nil
}

// Cancel requests cancellation of the running job. CancelRequested is
// set before the request goes out so the UI can disable duplicate
// cancels, and a successful cancel transitions to completed regardless
// of any racing poll result.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if s.job == nil || s.job.Status.Terminal() {
		s.mu.Unlock()
		return ErrJobTerminal
	}
	if s.job.CancelRequested {
		s.mu.Unlock()
		return nil
	}
	s.job.CancelRequested = true
	s.job.Status = types.JobStatusCancelling
	jobID := s.job.ID
	stop := s.stopPolling
	s.mu.Unlock()
	s.emit(nil)

	if stop != nil {
		stop()
	}
	if jobID == "" {
		// SendChat has not returned a job id yet. Start observes
		// CancelRequested once the send completes and posts the cancel
		// with the real id.
		return nil
	}
	if err := s.api.CancelJob(ctx, jobID); err != nil {
		// The poll loop was already stopped above, so reverting the
		// status must also restart it or the session wedges in a
		// Polling state nothing drives.
		s.mu.Lock()
		restart := false
		var cursor int64
		if s.job != nil && s.job.ID == jobID && !s.job.Status.Terminal() {
			s.job.CancelRequested = false
			if s.job.Status == types.JobStatusCancelling {
				s.job.Status = types.JobStatusPolling
				restart = true
				cursor = s.job.LastActivityID
			}
		}
		s.mu.Unlock()
		s.emit(err)
		if restart {
			s.startPolling(jobID, cursor)
		}
		return err
	}

	s.finish(types.JobStatusCompleted, nil)
	return nil
}

// Entries returns the classified activity feed for the current job.
func (s *Session) Entries() []*activity.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return activity.Classify(s.feed.Events())
}

// Job returns a copy of the current job, if any.
func (s *Session) Job() *types.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return nil
	}
	copyJob := *s.job
	return &copyJob
}

func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Active reports whether a non-terminal job owns this conversation,
// which disables new sends.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job != nil && !s.job.Status.Terminal()
}

// Close tears the session down when its conversation leaves view. The
// job keeps running server-side; only the poll loop stops.
func (s *Session) Close() {
	s.mu.Lock()
	stop := s.stopPolling
	s.stopPolling = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// finish moves the job to a terminal status and clears the persisted
// handle atomically with the transition.
func (s *Session) finish(status types.JobStatus, cause error) {
	s.mu.Lock()
	if s.job == nil || s.job.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.job.Status = status
	stop := s.stopPolling
	s.stopPolling = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.jobs.Delete(ctx, s.conversationID); err != nil && !errors.Is(err, store.ErrJobHandleNotFound) {
		s.log.Error("clear job handle", logging.F("err", err))
	}
	s.emit(cause)
}

func (s *Session) persistHandle(ctx context.Context) error {
	s.mu.Lock()
	handle := &store.JobHandle{
		ConversationID: s.conversationID,
		JobID:          s.job.ID,
		LastActivityID: s.job.LastActivityID,
	}
	s.mu.Unlock()
	return s.jobs.Put(ctx, handle)
}

func (s *Session) emit(err error) {
	s.mu.Lock()
	update := Update{
		ConversationID: s.conversationID,
		Status:         types.JobStatusIdle,
		Entries:        activity.Classify(s.feed.Events()),
		LastActivityID: s.feed.LastID(),
		Question:       s.question,
		OAuth:          s.oauth,
		Err:            err,
	}
	if s.job != nil {
		update.JobID = s.job.ID
		update.Status = s.job.Status
	}
	s.mu.Unlock()

	select {
	case s.updates <- update:
	default:
		// Intermediate snapshots may be dropped when the receiver lags:
		// the next one carries the full state again. A terminal
		// snapshot has no successor, so evict the oldest to make room.
		if !update.Status.Terminal() {
			return
		}
		select {
		case <-s.updates:
		default:
		}
		select {
		case s.updates <- update:
		default:
		}
	}
}
