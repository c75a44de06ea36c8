package conversation

import (
	"context"
	"time"

	"chatctl/internal/client"
	"chatctl/internal/logging"
	"chatctl/internal/types"
)

// MessagesAPI is the slice of the HTTP client the reconciler uses.
type MessagesAPI interface {
	LoadMessages(ctx context.Context, conversationID string) (*client.MessagesResponse, error)
	MarkRead(ctx context.Context, conversationID string) error
}

// Reconciler commits fetch results into the store, gated by the active
// conversation identity. A stale result is routine, not an error: the
// user switched away while the fetch was in flight, and the slower
// response must not overwrite the view they are looking at now.
type Reconciler struct {
	store *Store
	api   MessagesAPI
	log   logging.Logger
}

func NewReconciler(store *Store, api MessagesAPI, log logging.Logger) *Reconciler {
	if log == nil {
		log = logging.Nop()
	}
	return &Reconciler{store: store, api: api, log: log}
}

// Reload performs a full history fetch for conversationID and commits
// it if that conversation is still active. Used on conversation open,
// job completion, fork, and external refresh; reapplying the same
// snapshot yields the same committed state.
func (r *Reconciler) Reload(ctx context.Context, conversationID string) (bool, error) {
	resp, err := r.api.LoadMessages(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return r.Commit(conversationID, resp), nil
}

// Commit applies a fetched snapshot if conversationID is still the
// active conversation. On acceptance the message list is replaced
// wholesale, deduplicated by server-assigned id, and a best-effort
// mark-read fires without blocking the caller.
func (r *Reconciler) Commit(conversationID string, resp *client.MessagesResponse) bool {
	if resp == nil {
		return false
	}
	messages := dedupByDBID(resp.Messages)
	if !r.store.setMessages(conversationID, messages, resp.ReadAt) {
		r.log.Debug("stale fetch discarded",
			logging.F("requested", conversationID),
			logging.F("active", r.store.ActiveID()))
		return false
	}
	go r.markRead(conversationID)
	return true
}

func (r *Reconciler) markRead(conversationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.api.MarkRead(ctx, conversationID); err != nil {
		r.log.Debug("mark read failed", logging.F("err", err))
	}
}

// dedupByDBID keeps the first occurrence of each server-assigned id.
// Messages not yet persisted server-side carry no db id and are keyed
// by their client-local id instead; position in the array is never an
// identity.
func dedupByDBID(messages []*types.Message) []*types.Message {
	out := make([]*types.Message, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		if message == nil {
			continue
		}
		key := message.DBID
		if key == "" {
			key = "local:" + message.ID
		}
		if key != "local:" {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, message)
	}
	return out
}
