package app

import (
	"strings"

	"chatctl/internal/activity"
	"chatctl/internal/types"

	"github.com/charmbracelet/lipgloss"
)

// Rows reserved below the transcript: activity block, status, input.
const chromeHeight = 12

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	userLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	botLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	faintStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	activeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	linkStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Underline(true)
	mentionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("105"))
)

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading..."
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("chatctl"))
	if title := m.conversationTitle(); title != "" {
		b.WriteString(faintStyle.Render("  " + title))
	}
	b.WriteByte('\n')
	b.WriteString(m.vp.View())
	b.WriteByte('\n')
	b.WriteString(m.renderActivity())
	b.WriteString(m.renderPending())
	b.WriteString(m.renderStatus())
	b.WriteString(m.input.View())
	if matches := m.mentions.Matches(); len(matches) > 0 {
		b.WriteByte('\n')
		b.WriteString(mentionStyle.Render("@ " + strings.Join(matches, "  ")))
	}
	b.WriteByte('\n')
	b.WriteString(faintStyle.Render("enter send · esc cancel job · ctrl+y copy reply · ctrl+n new chat · ctrl+c quit"))
	return b.String()
}

func (m *Model) conversationTitle() string {
	active := m.conversations.Active()
	if active == nil {
		return ""
	}
	if active.Title != "" {
		return active.Title
	}
	if active.Speculative {
		return "(new conversation)"
	}
	return active.ID
}

// renderActivity shows the bounded tail of progress entries. Only the
// last one or two lines are marked active while the job still polls;
// older lines are history, not ongoing work.
func (m *Model) renderActivity() string {
	polling := m.update.Status == types.JobStatusPolling || m.update.Status == types.JobStatusSending
	visible := activity.Window(m.update.Entries, m.cfg.UI.ActivityWindow, polling)
	if len(visible) == 0 && !polling {
		return ""
	}
	var b strings.Builder
	for _, entry := range visible {
		line := activityLine(entry.Entry)
		if entry.Active {
			b.WriteString(activeStyle.Render(m.spin.View() + line))
		} else {
			b.WriteString(faintStyle.Render("  " + line))
		}
		b.WriteByte('\n')
	}
	if polling && len(visible) == 0 {
		b.WriteString(activeStyle.Render(m.spin.View() + "working..."))
		b.WriteByte('\n')
	}
	return b.String()
}

func activityLine(entry *activity.Entry) string {
	switch entry.Kind {
	case activity.KindSearch:
		return "searching: " + entry.Text
	case activity.KindDelegate:
		switch entry.Status {
		case activity.DelegateCompleted:
			out := entry.Output
			if out == "" {
				out = "done"
			}
			return "task " + entry.Text + ": " + out
		case activity.DelegateFailed:
			return "task " + entry.Text + " failed: " + entry.Output
		default:
			return "task " + entry.Text + "..."
		}
	default:
		return entry.Text
	}
}

func (m *Model) renderPending() string {
	var b strings.Builder
	if q := m.update.Question; q != nil && m.update.Status == types.JobStatusAwaitingAnswer {
		b.WriteString(questionStyle.Render("? " + q.Question))
		b.WriteByte('\n')
		if len(q.Options) > 0 {
			b.WriteString(faintStyle.Render("  options: " + strings.Join(q.Options, " / ")))
			b.WriteByte('\n')
		}
	}
	if o := m.update.OAuth; o != nil && m.update.Status == types.JobStatusAwaitingOAuth {
		b.WriteString(questionStyle.Render("! authorize " + o.Provider))
		b.WriteByte('\n')
		b.WriteString("  " + linkStyle.Render(o.AuthURL))
		b.WriteByte('\n')
	}
	return b.String()
}

func (m *Model) renderStatus() string {
	if m.status == "" {
		return "\n"
	}
	if m.statusErr {
		return errorStyle.Render(m.status) + "\n"
	}
	return faintStyle.Render(m.status) + "\n"
}

func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	m.vp.SetContent(m.renderTranscript())
	m.vp.GotoBottom()
}

func (m *Model) renderTranscript() string {
	active := m.conversations.Active()
	if active == nil || len(active.Messages) == 0 {
		return faintStyle.Render("  No messages yet. Type below to get started.")
	}
	width := m.vp.Width - 2
	var b strings.Builder
	for i, msg := range active.Messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch msg.Role {
		case types.MessageRoleUser:
			b.WriteString(userLabelStyle.Render("you"))
			b.WriteByte('\n')
			b.WriteString(msg.Text)
		case types.MessageRoleAssistant:
			b.WriteString(botLabelStyle.Render("agent"))
			b.WriteByte('\n')
			b.WriteString(renderMarkdown(msg.Text, width))
		default:
			b.WriteString(faintStyle.Render(msg.Text))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
