// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
	"github.com/shaharia-lab/mcpchat/internal/storage"
	"github.com/shaharia-lab/mcpchat/internal/telemetry"
	"github.com/shaharia-lab/mcpchat/internal/transcript"
	"github.com/shaharia-lab/mcpchat/internal/ui/components"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

type slashCommand struct {
	usage string
	desc  string
}

var slashCommands = []slashCommand{
	{"/new", "start a new conversation (alias /clear)"},
	{"/stream [on|off]", "toggle streaming answers"},
	{"/provider [NAME [MODEL] | off]", "pick the provider and model, or list them"},
	{"/tool NAME", "select or deselect a tool"},
	{"/tools", "list tools and the current selection"},
	{"/history [local]", "browse saved conversations"},
	{"/load [local] ID", "open a saved conversation"},
	{"/usage", "show session usage"},
	{"/help", "show this help"},
	{"/quit", "exit"},
}

// parseCommand splits "/name arg arg" into a lower-case name and args.
func parseCommand(input string) (string, []string) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(input), "/"))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

func (m Model) runCommand(input string) (tea.Model, tea.Cmd) {
	name, args := parseCommand(input)
	switch name {
	case "new", "clear":
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, tea.Batch(m.resetCmd(), streamTickCmd(m.buffer.Interval()))

	case "stream":
		return m.setStreaming(args)

	case "provider", "providers":
		if len(args) == 0 {
			return m, m.providersCmd("", "")
		}
		if strings.EqualFold(args[0], "off") {
			m.template.Provider = ""
			m.template.ModelID = ""
			m.applyTemplate()
			m.toasts.Notify(transcript.LevelInfo, "Using the backend default provider")
			return m, nil
		}
		modelID := ""
		if len(args) > 1 {
			modelID = args[1]
		}
		return m, m.providersCmd(args[0], modelID)

	case "tool":
		if len(args) == 0 {
			m.toasts.Notify(transcript.LevelWarning, "Usage: /tool NAME")
			return m, nil
		}
		return m, m.toolsCmd(args[0])

	case "tools":
		return m, m.toolsCmd("")

	case "history":
		local := len(args) > 0 && strings.EqualFold(args[0], "local")
		if local && m.store == nil {
			m.toasts.Notify(transcript.LevelWarning, "Local history is not enabled")
			return m, nil
		}
		if !local && m.backend == nil {
			m.toasts.Notify(transcript.LevelWarning, "No backend configured")
			return m, nil
		}
		return m, m.listConversationsCmd(local)

	case "load":
		local := len(args) > 1 && strings.EqualFold(args[0], "local")
		if local {
			args = args[1:]
		}
		if len(args) != 1 {
			m.toasts.Notify(transcript.LevelWarning, "Usage: /load [local] ID")
			return m, nil
		}
		return m.loadConversation(args[0], local)

	case "usage":
		m.showInfo("Usage", m.usageText())
		return m, nil

	case "help":
		m.showInfo("Help", m.helpText())
		return m, nil

	case "quit", "exit":
		return m.quit()
	}

	m.toasts.Notify(transcript.LevelWarning, fmt.Sprintf("Unknown command %q. Type /help", "/"+name))
	return m, nil
}

func (m *Model) showInfo(title, text string) {
	m.infoTitle = title
	m.infoText = text
	m.state = StateInfo
}

// setStreaming switches between streaming and single-shot exchanges. It
// takes effect on the next question.
func (m Model) setStreaming(args []string) (tea.Model, tea.Cmd) {
	on := m.reducer.Mode() != transcript.ModeStreaming
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "on":
			on = true
		case "off":
			on = false
		default:
			m.toasts.Notify(transcript.LevelWarning, "Usage: /stream [on|off]")
			return m, nil
		}
	}
	if on {
		m.reducer.SetMode(transcript.ModeStreaming)
		m.toasts.Notify(transcript.LevelInfo, "Streaming on")
	} else {
		m.reducer.SetMode(transcript.ModeSync)
		m.toasts.Notify(transcript.LevelInfo, "Streaming off")
	}
	m.applyTemplate()
	return m, nil
}

// =============================================================================
// CATALOGS
// =============================================================================

func (m Model) providersCmd(provider, modelID string) tea.Cmd {
	if m.backend == nil {
		return func() tea.Msg {
			return providersMsg{provider: provider, model: modelID, err: errNoBackend}
		}
	}
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		providers, err := backend.ListProviders(ctx)
		return providersMsg{providers: providers, provider: provider, model: modelID, err: err}
	}
}

func (m Model) handleProviders(msg providersMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.toasts.Notify(transcript.LevelError, "Could not load providers: "+msg.err.Error())
		return m, nil
	}
	if msg.provider == "" {
		m.showInfo("Providers", m.providersText(msg.providers))
		return m, nil
	}

	info, ok := findProvider(msg.providers, msg.provider)
	if !ok {
		m.toasts.Notify(transcript.LevelWarning, fmt.Sprintf("Unknown provider %q. Available: %s", msg.provider, providerNames(msg.providers)))
		return m, nil
	}
	modelID := msg.model
	if modelID == "" && len(info.Models) > 0 {
		modelID = info.Models[0]
	}
	if modelID != "" && !info.HasModel(modelID) {
		m.toasts.Notify(transcript.LevelWarning, fmt.Sprintf("%s has no model %q. Available: %s", info.Name, modelID, strings.Join(info.Models, ", ")))
		return m, nil
	}

	m.template.Provider = info.Name
	m.template.ModelID = modelID
	m.applyTemplate()
	m.toasts.Notify(transcript.LevelInfo, "Using "+targetName(info.Name, modelID))
	return m, nil
}

func (m Model) providersText(providers []chatapi.ProviderInfo) string {
	if len(providers) == 0 {
		return "The backend offers no providers."
	}
	var b strings.Builder
	for _, p := range providers {
		marker := "  "
		if p.Name == m.template.Provider {
			marker = "* "
		}
		fmt.Fprintf(&b, "%s%s\n", marker, p.Name)
		for _, id := range p.Models {
			sel := "    "
			if p.Name == m.template.Provider && id == m.template.ModelID {
				sel = "  * "
			}
			fmt.Fprintf(&b, "%s%s\n", sel, id)
		}
	}
	b.WriteString("\n/provider NAME [MODEL] selects, /provider off clears")
	return b.String()
}

func findProvider(providers []chatapi.ProviderInfo, name string) (chatapi.ProviderInfo, bool) {
	for _, p := range providers {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return chatapi.ProviderInfo{}, false
}

func providerNames(providers []chatapi.ProviderInfo) string {
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}

func targetName(provider, modelID string) string {
	if modelID == "" {
		return provider
	}
	return provider + "/" + modelID
}

func (m Model) toolsCmd(toggle string) tea.Cmd {
	if m.backend == nil {
		return func() tea.Msg { return toolsMsg{toggle: toggle, err: errNoBackend} }
	}
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		tools, err := backend.ListTools(ctx)
		return toolsMsg{tools: tools, toggle: toggle, err: err}
	}
}

func (m Model) handleTools(msg toolsMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.toasts.Notify(transcript.LevelError, "Could not load tools: "+msg.err.Error())
		return m, nil
	}
	if msg.toggle == "" {
		m.showInfo("Tools", m.toolsText(msg.tools))
		return m, nil
	}

	name := ""
	for _, t := range msg.tools {
		if strings.EqualFold(t.Name, msg.toggle) {
			name = t.Name
			break
		}
	}
	if name == "" {
		m.toasts.Notify(transcript.LevelWarning, fmt.Sprintf("Unknown tool %q. Type /tools to list them", msg.toggle))
		return m, nil
	}

	var on bool
	m.template, on = m.template.ToggleTool(name)
	m.applyTemplate()
	if on {
		m.toasts.Notify(transcript.LevelInfo, "Tool selected: "+name)
	} else {
		m.toasts.Notify(transcript.LevelInfo, "Tool deselected: "+name)
	}
	return m, nil
}

func (m Model) toolsText(tools []chatapi.ToolInfo) string {
	if len(tools) == 0 {
		return "The backend offers no tools."
	}
	var b strings.Builder
	for _, t := range tools {
		box := "[ ]"
		if m.template.HasTool(t.Name) {
			box = "[x]"
		}
		fmt.Fprintf(&b, "%s %s", box, t.Name)
		if t.Description != "" {
			fmt.Fprintf(&b, "  %s", t.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n/tool NAME toggles a tool")
	return b.String()
}

// =============================================================================
// INFO PANELS
// =============================================================================

func (m Model) usageText() string {
	var b strings.Builder
	if m.usage != nil {
		u := m.usage.Current()
		fmt.Fprintf(&b, "Session      %s\n", u.ID)
		fmt.Fprintf(&b, "Exchanges    %d (%d streamed)\n", u.Exchanges, u.Streamed)
		fmt.Fprintf(&b, "Tokens in    %d\n", u.InputTokens)
		fmt.Fprintf(&b, "Tokens out   %d\n", u.OutputTokens)
		b.WriteString("Streamed answers report no token counts.\n")
	} else {
		b.WriteString("Usage tracking is off.\n")
	}
	if m.sink != nil {
		fmt.Fprintf(&b, "Malformed frames skipped   %d\n", m.sink.Count(telemetry.EventFrameMalformed))
		fmt.Fprintf(&b, "Identity conflicts ignored %d\n", m.sink.Count(telemetry.EventIdentityConflict))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) helpText() string {
	var b strings.Builder
	b.WriteString("Commands\n")
	for _, c := range slashCommands {
		fmt.Fprintf(&b, "  %-32s %s\n", c.usage, c.desc)
	}
	b.WriteString("\nKeys\n")
	for _, group := range m.keys.FullHelp() {
		b.WriteString("  " + renderBindings(group, "  |  ") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// =============================================================================
// LIST ITEMS
// =============================================================================

func remoteItems(convs []chatapi.ConversationSummary) []components.ListItem {
	sorted := append([]chatapi.ConversationSummary(nil), convs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	items := make([]components.ListItem, 0, len(sorted))
	for _, c := range sorted {
		meta := ""
		if !c.CreatedAt.IsZero() {
			meta = c.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		items = append(items, components.ListItem{ID: c.ID, Title: c.Title, Meta: meta})
	}
	return items
}

func localItems(metas []storage.ConversationMeta) []components.ListItem {
	items := make([]components.ListItem, 0, len(metas))
	for _, c := range metas {
		items = append(items, components.ListItem{
			ID:    c.ID,
			Title: c.Title,
			Meta:  fmt.Sprintf("%d msgs, %s", c.MessageCount, c.UpdatedAt.Local().Format("2006-01-02 15:04")),
		})
	}
	return items
}
