package app

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type ChatInput struct {
	input textinput.Model
}

func NewChatInput(width int) *ChatInput {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Width = inputWidth(width)
	input.Focus()
	return &ChatInput{input: input}
}

func (c *ChatInput) Resize(width int) {
	c.input.Width = inputWidth(width)
}

func (c *ChatInput) SetPlaceholder(value string) {
	c.input.Placeholder = value
}

func (c *ChatInput) Value() string {
	return c.input.Value()
}

func (c *ChatInput) Clear() {
	c.input.SetValue("")
}

func (c *ChatInput) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return cmd
}

func (c *ChatInput) View() string {
	return c.input.View()
}

func inputWidth(width int) int {
	w := width - 4
	if w < 20 {
		w = 20
	}
	return w
}
