package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatctl/internal/activity"
	"chatctl/internal/conversation"
	"chatctl/internal/logging"
	"chatctl/internal/session"
	"chatctl/internal/types"

	"github.com/spf13/cobra"
)

func newSendCommand() *cobra.Command {
	var conversationID string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "submit one message and wait for the job to finish",
		Long:  "send submits a single message without the TUI, polls the resulting job to a terminal state, and prints progress as logfmt lines. A job that pauses for a question or OAuth consent cannot be answered here; re-open the TUI to continue it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.Close()
			return runSend(env, conversationID, args[0], timeout)
		},
	}
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "continue an existing conversation")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "give up after this long")
	return cmd
}

func runSend(e *env, conversationID, message string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out := logging.New(os.Stdout, logging.Info)
	sess := session.New(e.api, e.repo.Jobs(), conversationID, session.Options{
		PollInterval: e.cfg.PollInterval(),
		RetryBudget:  e.cfg.PollRetryBudget(),
		Logger:       e.log,
	})
	defer sess.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancelCtx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelTimeout()
		if err := sess.Cancel(cancelCtx); err != nil {
			e.log.Warn("cancel on signal", logging.F("err", err))
		}
	}()

	if err := sess.Start(ctx, message); err != nil {
		return err
	}
	out.Info("job started",
		logging.F("job", sess.Job().ID),
		logging.F("conversation", sess.ConversationID()))

	final, err := streamUpdates(ctx, sess, out)
	if err != nil {
		return err
	}

	switch final.Status {
	case types.JobStatusCompleted:
		printReply(ctx, e, final.ConversationID)
		return nil
	case types.JobStatusFailed:
		if final.Err != nil {
			return final.Err
		}
		return errors.New("job failed")
	case types.JobStatusAwaitingAnswer:
		return errors.New("job paused for a question; open the TUI to answer it")
	case types.JobStatusAwaitingOAuth:
		url := ""
		if final.OAuth != nil {
			url = final.OAuth.AuthURL
		}
		return fmt.Errorf("job paused for authorization: %s", url)
	default:
		return fmt.Errorf("job stopped in state %s", final.Status)
	}
}

// streamUpdates drains session snapshots, printing each activity entry
// once, until the job lands in a state this command cannot advance.
func streamUpdates(ctx context.Context, sess *session.Session, out logging.Logger) (session.Update, error) {
	printer := newEntryPrinter(out)
	for {
		select {
		case <-ctx.Done():
			return session.Update{}, ctx.Err()
		case update, ok := <-sess.Updates():
			if !ok {
				return session.Update{}, errors.New("session closed")
			}
			printer.print(update.Entries)
			if update.Status.Terminal() ||
				update.Status == types.JobStatusAwaitingAnswer ||
				update.Status == types.JobStatusAwaitingOAuth {
				return update, nil
			}
		}
	}
}

// entryPrinter logs each feed entry once. Delegates are the special
// case: they open on the tool_call and mutate in place when the result
// arrives, so the close is logged separately from the open.
type entryPrinter struct {
	out     logging.Logger
	printed int64
	closed  map[int64]bool
}

func newEntryPrinter(out logging.Logger) *entryPrinter {
	return &entryPrinter{out: out, closed: map[int64]bool{}}
}

func (p *entryPrinter) print(entries []*activity.Entry) {
	for _, entry := range entries {
		if entry.ActivityID > p.printed {
			p.printed = entry.ActivityID
			switch entry.Kind {
			case activity.KindSearch:
				p.out.Info("search", logging.F("query", entry.Text))
			case activity.KindDelegate:
				p.out.Info("delegate started", logging.F("task", entry.Text))
			default:
				p.out.Info("progress", logging.F("step", entry.Text))
			}
		}
		if entry.Kind == activity.KindDelegate &&
			entry.Status != activity.DelegateRunning && !p.closed[entry.ActivityID] {
			p.closed[entry.ActivityID] = true
			p.out.Info("delegate finished",
				logging.F("task", entry.Text),
				logging.F("status", string(entry.Status)),
				logging.F("output", entry.Output))
		}
	}
}

func printReply(ctx context.Context, e *env, conversationID string) {
	if conversationID == "" {
		return
	}
	convs := conversation.NewStore()
	convs.Open(&types.Conversation{ID: conversationID})
	recon := conversation.NewReconciler(convs, e.api, e.log)
	if _, err := recon.Reload(ctx, conversationID); err != nil {
		e.log.Warn("load final messages", logging.F("err", err))
		return
	}
	active := convs.Active()
	if active == nil {
		return
	}
	for i := len(active.Messages) - 1; i >= 0; i-- {
		if active.Messages[i].Role == types.MessageRoleAssistant {
			fmt.Println()
			fmt.Println(active.Messages[i].Text)
			return
		}
	}
}
