package main

import (
	"context"
	"time"

	"chatctl/internal/app"
	"chatctl/internal/logging"
	"chatctl/internal/store"
)

// runChat launches the TUI. If a job handle was persisted before a
// restart, the screen re-attaches to that job instead of starting idle.
func runChat() error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	return app.Run(env.api, app.Options{
		Config: env.cfg,
		Logger: env.log,
		Jobs:   env.repo.Jobs(),
		State:  env.repo.AppState(),
		Resume: resumableHandle(env),
	})
}

// resumableHandle picks the persisted in-flight job to re-attach to,
// preferring the conversation the user last had open. Stale handles
// from long-dead runs are dropped rather than resumed.
func resumableHandle(e *env) *store.JobHandle {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	handles, err := e.repo.Jobs().List(ctx)
	if err != nil {
		e.log.Warn("list job handles", logging.F("err", err))
		return nil
	}
	if len(handles) == 0 {
		return nil
	}

	var lastActive string
	if state, err := e.repo.AppState().Load(ctx); err == nil && state != nil {
		lastActive = state.ActiveConversationID
	}

	var pick *store.JobHandle
	for _, handle := range handles {
		if handleExpired(handle) {
			if err := e.repo.Jobs().Delete(ctx, handle.ConversationID); err != nil {
				e.log.Warn("drop stale job handle", logging.F("err", err))
			}
			continue
		}
		if handle.ConversationID == lastActive {
			return handle
		}
		if pick == nil || handle.SavedAt.After(pick.SavedAt) {
			pick = handle
		}
	}
	return pick
}

const handleMaxAge = 24 * time.Hour

func handleExpired(handle *store.JobHandle) bool {
	return !handle.SavedAt.IsZero() && time.Since(handle.SavedAt) > handleMaxAge
}
