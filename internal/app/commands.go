package app

import (
	"context"
	"time"

	"chatctl/internal/conversation"
	"chatctl/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

type sessionUpdateMsg session.Update

type chatStartedMsg struct {
	conversationID string
	err            error
}

type respondDoneMsg struct {
	err error
}

type cancelDoneMsg struct {
	err error
}

type reloadDoneMsg struct {
	conversationID string
	committed      bool
	err            error
}

type mentionResultsMsg struct {
	generation uint64
	query      string
	matches    []string
}

func startChatCmd(sess *session.Session, message string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := sess.Start(ctx, message)
		return chatStartedMsg{conversationID: sess.ConversationID(), err: err}
	}
}

func respondCmd(sess *session.Session, answer string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return respondDoneMsg{err: sess.Respond(ctx, answer)}
	}
}

func cancelJobCmd(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return cancelDoneMsg{err: sess.Cancel(ctx)}
	}
}

func reloadMessagesCmd(recon *conversation.Reconciler, conversationID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		committed, err := recon.Reload(ctx, conversationID)
		return reloadDoneMsg{conversationID: conversationID, committed: committed, err: err}
	}
}

func waitForUpdateCmd(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-sess.Updates()
		if !ok {
			return nil
		}
		return sessionUpdateMsg(update)
	}
}

func waitForMentionsCmd(mentions *mentionSearch) tea.Cmd {
	return func() tea.Msg {
		return <-mentions.results
	}
}
