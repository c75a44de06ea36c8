package session

import (
	"context"
	"errors"
	"time"

	"chatctl/internal/client"
	"chatctl/internal/logging"
	"chatctl/internal/types"
)

const maxBackoff = 10 * time.Second

// startPolling replaces any previous poll loop with a fresh one bound
// to its own cancel function.
func (s *Session) startPolling(jobID string, cursor int64) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	previous := s.stopPolling
	s.stopPolling = cancel
	s.mu.Unlock()
	if previous != nil {
		previous()
	}
	go s.pollLoop(ctx, jobID, cursor)
}

// pollLoop drives incremental fetches while the job is running. Each
// request carries the last-seen activity id, so payloads stay bounded
// regardless of job duration. Transient failures are absorbed with
// exponential backoff up to the retry budget; unauthorized responses
// and exhausted budgets escalate as a failed job.
func (s *Session) pollLoop(ctx context.Context, jobID string, cursor int64) {
	failures := 0
	for {
		resp, err := s.api.PollJob(ctx, jobID, cursor)
		if err != nil {
			if ctx.Err() != nil || client.IsRequestCancelled(err) {
				return
			}
			if client.IsUnauthorized(err) {
				s.log.Error("poll unauthorized; session invalid", logging.F("job", jobID))
				s.finish(types.JobStatusFailed, err)
				return
			}
			if client.IsTransient(err) {
				failures++
				if failures > s.retryBudget {
					s.log.Error("poll retry budget exhausted",
						logging.F("job", jobID), logging.F("failures", failures))
					s.finish(types.JobStatusFailed, err)
					return
				}
				s.log.Warn("poll failed, retrying",
					logging.F("job", jobID), logging.F("attempt", failures), logging.F("err", err))
				if !sleepCtx(ctx, backoffDelay(s.pollInterval, failures)) {
					return
				}
				continue
			}
			s.finish(types.JobStatusFailed, err)
			return
		}
		failures = 0
		next, done := s.applyPoll(ctx, jobID, resp)
		if done {
			return
		}
		cursor = next
		if !sleepCtx(ctx, s.pollInterval) {
			return
		}
	}
}

// applyPoll folds one poll response into session state and reports the
// advanced cursor plus whether the loop should stop. A response racing
// a cancel is discarded: the cancelled terminal state always wins.
func (s *Session) applyPoll(ctx context.Context, jobID string, resp *client.JobPollResponse) (int64, bool) {
	s.mu.Lock()
	if s.job == nil || s.job.ID != jobID || s.job.Status.Terminal() || s.job.CancelRequested {
		s.mu.Unlock()
		return 0, true
	}

	s.feed.Merge(resp.Activities)
	cursor := s.feed.LastID()
	if resp.LastActivityID > cursor {
		cursor = resp.LastActivityID
	}
	s.job.LastActivityID = cursor

	switch resp.Status {
	case client.PollStatusCompleted:
		s.mu.Unlock()
		s.finish(types.JobStatusCompleted, nil)
		return cursor, true
	case client.PollStatusCancelled:
		s.mu.Unlock()
		s.finish(types.JobStatusCompleted, nil)
		return cursor, true
	case client.PollStatusFailed:
		s.mu.Unlock()
		s.finish(types.JobStatusFailed, pollFailure(resp))
		return cursor, true
	}

	// The server stops progressing while a job waits on user input, so
	// the client must stop asking.
	if resp.Question != nil || resp.Status == client.PollStatusAwaitingAnswer {
		s.question = resp.Question
		if s.question == nil {
			s.question = &types.PendingQuestion{}
		}
		s.job.Status = types.JobStatusAwaitingAnswer
		stop := s.stopPolling
		s.stopPolling = nil
		s.mu.Unlock()
		if err := s.persistHandle(context.Background()); err != nil {
			s.log.Error("persist job handle", logging.F("err", err))
		}
		s.emit(nil)
		if stop != nil {
			stop()
		}
		return cursor, true
	}
	if resp.OAuth != nil || resp.Status == client.PollStatusAwaitingOAuth {
		s.oauth = resp.OAuth
		if s.oauth == nil {
			s.oauth = &types.PendingOAuth{JobID: jobID}
		}
		s.job.Status = types.JobStatusAwaitingOAuth
		stop := s.stopPolling
		s.stopPolling = nil
		s.mu.Unlock()
		if err := s.persistHandle(context.Background()); err != nil {
			s.log.Error("persist job handle", logging.F("err", err))
		}
		s.emit(nil)
		if stop != nil {
			stop()
		}
		return cursor, true
	}

	s.mu.Unlock()
	if err := s.persistHandle(ctx); err != nil {
		s.log.Error("persist job handle", logging.F("err", err))
	}
	s.emit(nil)
	return cursor, false
}

func pollFailure(resp *client.JobPollResponse) error {
	if resp.Error == "" {
		return errors.New("job failed")
	}
	return errors.New(resp.Error)
}

func backoffDelay(base time.Duration, failures int) time.Duration {
	delay := base
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
