package app

import (
	"context"
	"strings"
	"time"

	"chatctl/internal/client"
	"chatctl/internal/config"
	"chatctl/internal/conversation"
	"chatctl/internal/logging"
	"chatctl/internal/session"
	"chatctl/internal/store"
	"chatctl/internal/types"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

// API is the server surface the chat screen needs: job lifecycle plus
// message reloads plus credential teardown on a fatal 401.
type API interface {
	session.API
	conversation.MessagesAPI
	InvalidateSession() error
}

type Options struct {
	Config config.Config
	Logger logging.Logger
	Jobs   store.JobHandleStore
	State  store.AppStateStore

	// Resume re-attaches to a job persisted before a restart.
	Resume *store.JobHandle
}

type Model struct {
	api      API
	cfg      config.Config
	log      logging.Logger
	jobs     store.JobHandleStore
	appState store.AppStateStore

	conversations *conversation.Store
	recon         *conversation.Reconciler
	sess          *session.Session
	mentions      *mentionSearch

	input *ChatInput
	vp    viewport.Model
	spin  spinner.Model

	width  int
	height int
	ready  bool

	update    session.Update
	resume    *store.JobHandle
	status    string
	statusErr bool
	quitting  bool
}

func New(api API, opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	setMarkdownBackgroundDark(opts.Config.UI.Dark)

	conversations := conversation.NewStore()
	spin := spinner.New()
	spin.Spinner = spinner.Dot

	m := &Model{
		api:           api,
		cfg:           opts.Config,
		log:           opts.Logger,
		jobs:          opts.Jobs,
		appState:      opts.State,
		conversations: conversations,
		recon:         conversation.NewReconciler(conversations, api, opts.Logger),
		mentions:      newMentionSearch(conversations),
		input:         NewChatInput(80),
		spin:          spin,
		resume:        opts.Resume,
	}
	if opts.Resume != nil {
		conversations.Open(&types.Conversation{ID: opts.Resume.ConversationID, HasActiveJob: true})
		m.sess = m.newSession(opts.Resume.ConversationID)
	}
	return m
}

func Run(api API, opts Options) error {
	program := tea.NewProgram(New(api, opts), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick, waitForMentionsCmd(m.mentions)}
	switch {
	case m.resume != nil && m.sess != nil:
		if err := m.sess.Resume(m.resume); err != nil {
			m.setStatusError("resume failed: " + err.Error())
		} else {
			m.setStatusInfo("re-attached to running job")
			cmds = append(cmds, waitForUpdateCmd(m.sess))
		}
		cmds = append(cmds, reloadMessagesCmd(m.recon, m.resume.ConversationID))
	default:
		if id := m.lastActiveConversationID(); id != "" {
			m.conversations.Open(&types.Conversation{ID: id})
			m.sess = m.newSession(id)
			cmds = append(cmds, reloadMessagesCmd(m.recon, id))
		}
	}
	return tea.Batch(cmds...)
}

func (m *Model) lastActiveConversationID() string {
	if m.appState == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := m.appState.Load(ctx)
	if err != nil || state == nil {
		return ""
	}
	return state.ActiveConversationID
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m, m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case sessionUpdateMsg:
		return m, m.handleSessionUpdate(session.Update(msg))

	case chatStartedMsg:
		return m, m.handleChatStarted(msg)

	case respondDoneMsg:
		if msg.err != nil {
			m.setStatusError(requestErrorText(msg.err))
		}
		return m, nil

	case cancelDoneMsg:
		if msg.err != nil {
			m.setStatusError("cancel failed: " + requestErrorText(msg.err))
		} else {
			m.setStatusInfo("cancellation requested")
		}
		return m, nil

	case reloadDoneMsg:
		if msg.err != nil {
			m.setStatusError("reload failed: " + requestErrorText(msg.err))
		}
		m.refreshTranscript()
		return m, nil

	case mentionResultsMsg:
		m.mentions.Apply(msg)
		return m, waitForMentionsCmd(m.mentions)
	}

	var cmds []tea.Cmd
	cmds = append(cmds, m.input.Update(msg))
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleResize(msg tea.WindowSizeMsg) tea.Cmd {
	m.width = msg.Width
	m.height = msg.Height
	m.input.Resize(msg.Width)
	vpHeight := msg.Height - chromeHeight
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !m.ready {
		m.vp = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.vp.Width = msg.Width
		m.vp.Height = vpHeight
	}
	m.refreshTranscript()
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, m.shutdown()

	case "esc":
		if m.sess != nil && m.sess.Active() {
			return m, cancelJobCmd(m.sess)
		}
		m.status = ""
		return m, nil

	case "ctrl+y":
		m.copyWithStatus(m.lastAssistantText(), "last reply copied")
		return m, nil

	case "ctrl+n":
		m.startNewConversation()
		return m, nil

	case "enter":
		return m, m.submitDraft()
	}

	switch msg.String() {
	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}

	cmd := m.input.Update(msg)
	m.mentions.OnInput(m.input.Value())
	return m, cmd
}

// submitDraft routes the input line by state: an answer to a pending
// question, or a new chat message. Sending while a job is running is
// rejected here rather than surfaced as a server error.
func (m *Model) submitDraft() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	if m.update.Status == types.JobStatusAwaitingAnswer {
		m.input.Clear()
		m.mentions.reset()
		m.setStatusInfo("answer sent")
		return respondCmd(m.sess, text)
	}
	if m.jobBusy() {
		m.setStatusError("a job is still running (esc to cancel)")
		return nil
	}

	activeID := m.conversations.ActiveID()
	if activeID == "" {
		activeID = "local-" + uuid.NewString()
		m.conversations.Open(&types.Conversation{ID: activeID, Speculative: true})
	}
	m.conversations.UpdateActive(activeID, func(conv *types.Conversation) {
		conv.Messages = append(conv.Messages, &types.Message{
			ID:        uuid.NewString(),
			Role:      types.MessageRoleUser,
			Text:      text,
			CreatedAt: time.Now().UTC(),
		})
		conv.HasActiveJob = true
	})
	m.input.Clear()
	m.mentions.reset()
	m.status = ""
	m.refreshTranscript()

	if m.sess == nil {
		m.sess = m.newSession(m.sessionConversationID())
	}
	return tea.Batch(startChatCmd(m.sess, text), waitForUpdateCmd(m.sess))
}

// jobBusy reports whether a new send must be refused. The last observed
// status matters as well as the live session: a send may still be in
// flight before the session has a job to report.
func (m *Model) jobBusy() bool {
	if m.sess != nil && m.sess.Active() {
		return true
	}
	switch m.update.Status {
	case types.JobStatusSending, types.JobStatusPolling,
		types.JobStatusAwaitingOAuth, types.JobStatusCancelling:
		return true
	}
	return false
}

// sessionConversationID is empty for a speculative conversation so the
// server allocates the real id on first send.
func (m *Model) sessionConversationID() string {
	active := m.conversations.Active()
	if active == nil || active.Speculative {
		return ""
	}
	return active.ID
}

func (m *Model) handleChatStarted(msg chatStartedMsg) tea.Cmd {
	if msg.err != nil {
		m.conversations.UpdateActive(m.conversations.ActiveID(), func(conv *types.Conversation) {
			conv.HasActiveJob = false
		})
		m.setStatusError(requestErrorText(msg.err))
		return nil
	}
	if msg.conversationID != "" {
		m.confirmConversation(msg.conversationID)
	}
	m.saveAppState()
	return nil
}

// confirmConversation replaces a speculative conversation wholesale
// with the server-confirmed identity, keeping the local transcript.
func (m *Model) confirmConversation(conversationID string) {
	active := m.conversations.Active()
	if active == nil {
		m.conversations.Open(&types.Conversation{ID: conversationID, HasActiveJob: true})
		return
	}
	if active.ID == conversationID {
		return
	}
	confirmed := *active
	confirmed.ID = conversationID
	confirmed.Speculative = false
	if !m.conversations.Confirm(&confirmed) {
		m.conversations.Open(&confirmed)
	}
}

func (m *Model) handleSessionUpdate(update session.Update) tea.Cmd {
	m.update = update
	activeID := m.conversations.ActiveID()
	m.conversations.UpdateActive(activeID, func(conv *types.Conversation) {
		conv.HasActiveJob = !update.Status.Terminal()
		conv.PendingQuestion = update.Question
		conv.PendingOAuth = update.OAuth
	})

	var cmds []tea.Cmd
	switch {
	case update.Err != nil && client.IsUnauthorized(update.Err):
		if err := m.api.InvalidateSession(); err != nil {
			m.log.Error("invalidate session", logging.F("err", err))
		}
		m.setStatusError("session expired: log in again")
	case update.Err != nil && client.IsInsufficientBalance(update.Err):
		m.setStatusError("insufficient balance: top up and resend")
	case update.Err != nil:
		m.setStatusError(requestErrorText(update.Err))
	case update.Status == types.JobStatusAwaitingAnswer:
		m.setStatusInfo("the agent needs an answer")
	case update.Status == types.JobStatusAwaitingOAuth:
		m.setStatusInfo("authorization required (link below)")
	case update.Status == types.JobStatusCompleted:
		m.setStatusInfo("done")
	case update.Status == types.JobStatusFailed:
		m.setStatusError("job failed")
	}

	if update.Status.Terminal() {
		target := update.ConversationID
		if target == "" {
			target = activeID
		}
		cmds = append(cmds, reloadMessagesCmd(m.recon, target))
	}
	if m.sess != nil {
		cmds = append(cmds, waitForUpdateCmd(m.sess))
	}
	return tea.Batch(cmds...)
}

func (m *Model) startNewConversation() {
	if m.sess != nil && m.sess.Active() {
		m.setStatusError("cancel the running job before starting a new chat")
		return
	}
	if m.sess != nil {
		m.sess.Close()
		m.sess = nil
	}
	m.conversations.Clear()
	m.update = session.Update{}
	m.mentions.reset()
	m.status = ""
	m.refreshTranscript()
	m.saveAppState()
}

func (m *Model) newSession(conversationID string) *session.Session {
	return session.New(m.api, m.jobs, conversationID, session.Options{
		PollInterval: m.cfg.PollInterval(),
		RetryBudget:  m.cfg.PollRetryBudget(),
		Logger:       m.log,
	})
}

func (m *Model) shutdown() tea.Cmd {
	m.quitting = true
	if m.sess != nil {
		m.sess.Close()
	}
	m.saveAppState()
	return tea.Quit
}

func (m *Model) saveAppState() {
	if m.appState == nil {
		return
	}
	id := m.conversations.ActiveID()
	if active := m.conversations.Active(); active != nil && active.Speculative {
		id = ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.appState.Save(ctx, &store.AppState{ActiveConversationID: id}); err != nil {
		m.log.Warn("save app state", logging.F("err", err))
	}
}

func (m *Model) lastAssistantText() string {
	active := m.conversations.Active()
	if active == nil {
		return ""
	}
	for i := len(active.Messages) - 1; i >= 0; i-- {
		if active.Messages[i].Role == types.MessageRoleAssistant {
			return active.Messages[i].Text
		}
	}
	return ""
}

func (m *Model) setStatusInfo(text string) {
	m.status = text
	m.statusErr = false
}

func (m *Model) setStatusError(text string) {
	m.status = text
	m.statusErr = true
}

func requestErrorText(err error) string {
	switch {
	case err == nil:
		return ""
	case client.IsRequestCancelled(err):
		return "request cancelled"
	case client.IsTransient(err):
		return "server unavailable, will retry"
	default:
		return err.Error()
	}
}
