// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/shaharia-lab/mcpchat/internal/telemetry"
	"github.com/shaharia-lab/mcpchat/internal/ui/components"
	"github.com/shaharia-lab/mcpchat/internal/util"
)

const welcomeText = `Ask a question to start a conversation.

  /help      commands and keys
  /history   open a saved conversation
  /provider  pick a provider and model`

// View renders the screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Starting..."
	}

	var body string
	switch m.state {
	case StateHistory:
		body = m.fill(m.list.View(m.theme, m.width, m.viewport.Height))
	case StateInfo:
		body = m.fill(m.theme.ListTitle.Render(m.infoTitle) + "\n" + m.infoText + "\n\n" + m.theme.Muted.Render("Esc to close"))
	default:
		body = m.overlayToasts(m.viewport.View())
	}

	input := m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, input, m.statusBar().Render(m.theme))
}

// fill pins content to the viewport height so the layout does not jump.
func (m Model) fill(content string) string {
	h := m.viewport.Height
	return lipgloss.NewStyle().Height(h).MaxHeight(h).Render(content)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("mcpchat")
	subject := m.snapshot.Title()
	if subject == "" {
		subject = "new conversation"
	}
	room := m.width - lipgloss.Width(title) - 6
	if room < 0 {
		room = 0
	}
	meta := m.theme.HeaderMeta.Render(util.TruncateWidth(util.SingleLine(subject), room))
	return m.theme.Header.Width(m.width).Render(title + "  " + meta)
}

func (m Model) statusBar() components.StatusBar {
	bar := components.StatusBar{
		Mode:           m.reducer.Mode(),
		Provider:       m.template.Provider,
		Model:          m.template.ModelID,
		Tools:          len(m.template.Tools),
		Busy:           m.submitting || m.loading,
		Spinner:        m.spinner.View(),
		ConversationID: m.snapshot.ConversationID,
		Width:          m.width,
	}
	if m.usage != nil {
		bar.Usage = m.usage.Current()
	}
	if m.sink != nil {
		bar.Malformed = m.sink.Count(telemetry.EventFrameMalformed)
	}
	return bar
}

// renderTranscript renders every entry. The answer still streaming is
// shown as plain text; finished answers go through markdown when enabled.
func (m Model) renderTranscript() string {
	if m.snapshot.IsEmpty() {
		return m.theme.Welcome.Render(welcomeText)
	}

	bodyWidth := m.viewport.Width - 3
	if bodyWidth < 10 {
		bodyWidth = 10
	}

	var b strings.Builder
	n := m.snapshot.Len()
	for i := 0; i < n; i++ {
		e := m.snapshot.At(i)
		live := m.submitting && i == n-1 && !e.IsUser

		if e.IsUser {
			b.WriteString(m.theme.UserLabel.Render("You"))
			b.WriteString("\n")
			b.WriteString(m.theme.UserBody.Width(bodyWidth).Render(e.Content))
		} else {
			b.WriteString(m.theme.AssistantLabel.Render("Assistant"))
			b.WriteString("\n")
			switch {
			case e.Content == "" && live:
				b.WriteString(m.theme.Placeholder.Render("waiting for answer..."))
			case e.Content == "":
				b.WriteString(m.theme.Placeholder.Render("(empty answer)"))
			case m.renderMarkdown && !live:
				b.WriteString(m.theme.AssistantBody.Render(m.markdown.render(e.Content)))
			default:
				b.WriteString(m.theme.AssistantBody.Width(bodyWidth).Render(e.Content))
			}
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// overlayToasts draws the toast stack over the bottom rows of view.
func (m Model) overlayToasts(view string) string {
	toasts := m.toasts.Toasts()
	if len(toasts) == 0 {
		return view
	}
	stack := strings.Split(components.RenderToastStack(m.theme, toasts, m.width), "\n")
	lines := strings.Split(view, "\n")
	if len(stack) > len(lines) {
		stack = stack[len(stack)-len(lines):]
	}
	copy(lines[len(lines)-len(stack):], stack)
	return strings.Join(lines, "\n")
}
