// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
	"github.com/shaharia-lab/mcpchat/internal/config"
	"github.com/shaharia-lab/mcpchat/internal/storage"
	"github.com/shaharia-lab/mcpchat/internal/telemetry"
	"github.com/shaharia-lab/mcpchat/internal/transcript"
	"github.com/shaharia-lab/mcpchat/internal/ui/components"
	"github.com/shaharia-lab/mcpchat/internal/ui/styles"
)

// =============================================================================
// STATE
// =============================================================================

// State is the screen the chat view is showing.
type State int

const (
	// StateChat shows the transcript and input line.
	StateChat State = iota
	// StateHistory shows the conversation picker.
	StateHistory
	// StateInfo shows a read-only panel such as /help or /tools.
	StateInfo
)

// chromeHeight is the rows used by header, input box and status bar.
const chromeHeight = 5

var errNoBackend = errors.New("no backend configured")

// Backend is the part of the chat API the view calls directly. Exchanges
// and history loads go through the reducer.
type Backend interface {
	ListConversations(ctx context.Context) ([]chatapi.ConversationSummary, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	ListProviders(ctx context.Context) ([]chatapi.ProviderInfo, error)
	ListTools(ctx context.Context) ([]chatapi.ToolInfo, error)
}

// Options wires a Model. Reducer is required. Pass the same Toasts value
// as the reducer's Notifier so exchange failures show up as toasts.
type Options struct {
	Reducer *transcript.Reducer
	Backend Backend
	Store   *storage.ConversationStore
	Toasts  *components.ToastManager
	Usage   *telemetry.UsageTracker
	Sink    *telemetry.RecordingSink
	Config  *config.Config
	Theme   *styles.Theme
	Logger  logrus.FieldLogger

	// Context bounds every request the view starts. Defaults to Background.
	Context context.Context
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat screen.
//
// Model is passed by value, so everything shared with goroutines (reducer,
// buffer, toasts, renderer) is held by pointer.
type Model struct {
	ctx     context.Context
	reducer *transcript.Reducer
	backend Backend
	store   *storage.ConversationStore
	toasts  *components.ToastManager
	usage   *telemetry.UsageTracker
	sink    *telemetry.RecordingSink
	logger  logrus.FieldLogger
	cfg     *config.Config
	theme   *styles.Theme
	keys    KeyMap

	buffer         *StreamingBuffer
	markdown       *markdownRenderer
	renderMarkdown bool

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	state      State
	snapshot   transcript.Transcript
	submitting bool
	loading    bool

	template   chatapi.Template
	streamHint chatapi.StreamingHint

	list      *components.ConversationList
	listLocal bool
	infoTitle string
	infoText  string

	width    int
	height   int
	ready    bool
	quitting bool
}

// New creates the chat model and subscribes it to the reducer.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(cfg.UI.Theme)
	}
	toasts := opts.Toasts
	if toasts == nil {
		toasts = components.NewToastManager(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask something, or /help"
	ti.CharLimit = 8192
	ti.PromptStyle = theme.InputPrompt
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	buffer := NewStreamingBuffer(cfg.UI.MaxFPS)
	opts.Reducer.OnChange(buffer.Write)

	m := Model{
		ctx:            ctx,
		reducer:        opts.Reducer,
		backend:        opts.Backend,
		store:          opts.Store,
		toasts:         toasts,
		usage:          opts.Usage,
		sink:           opts.Sink,
		logger:         logger,
		cfg:            cfg,
		theme:          theme,
		keys:           DefaultKeyMap(),
		buffer:         buffer,
		markdown:       newMarkdownRenderer(theme.GlamourStyle(), 76),
		renderMarkdown: cfg.UI.RenderMarkdown,
		input:          ti,
		viewport:       vp,
		spinner:        sp,
		state:          StateChat,
		snapshot:       opts.Reducer.Snapshot(),
		template:       cfg.PayloadTemplate(),
		streamHint:     hintFor(cfg),
	}

	mode := transcript.ModeSync
	if cfg.Streaming.Enabled {
		mode = transcript.ModeStreaming
	}
	m.reducer.SetMode(mode)
	m.applyTemplate()
	m.refresh()
	return m
}

func hintFor(cfg *config.Config) chatapi.StreamingHint {
	return chatapi.StreamingHint{ChunkSize: cfg.Streaming.ChunkSize, DelayMs: cfg.Streaming.DelayMs}
}

// applyTemplate hands the reducer a snapshot of the current request
// settings. The hint travels only in streaming mode.
func (m *Model) applyTemplate() {
	if m.reducer.Mode() == transcript.ModeStreaming {
		h := m.streamHint
		m.template.Hint = &h
	} else {
		m.template.Hint = nil
	}
	m.reducer.SetPayloadBuilder(m.template.Builder())
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts cursor blink and toast expiry.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, components.ToastTickCmd())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamTickMsg:
		return m.handleStreamTick()

	case submitDoneMsg:
		return m.handleSubmitDone(msg)

	case resetDoneMsg:
		m.loading = false
		m.flush()
		m.toasts.Notify(transcript.LevelInfo, "Started a new conversation")
		return m, nil

	case historyLoadedMsg:
		return m.handleHistoryLoaded(msg)

	case conversationsMsg:
		return m.handleConversations(msg)

	case conversationDeletedMsg:
		return m.handleConversationDeleted(msg)

	case providersMsg:
		return m.handleProviders(msg)

	case toolsMsg:
		return m.handleTools(msg)

	case ConfigReloadedMsg:
		return m.handleConfigReloaded(msg)

	case components.ToastTickMsg:
		m.toasts.Expire(msg.Time)
		return m, components.ToastTickCmd()

	case spinner.TickMsg:
		if !m.submitting && !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.ready = true

	vpHeight := msg.Height - chromeHeight
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = msg.Width
	m.viewport.Height = vpHeight
	m.input.Width = msg.Width - 8
	m.markdown.setWidth(msg.Width - 4)
	m.refresh()
	return m, nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m.quit()
	}
	if key.Matches(msg, m.keys.Interrupt) {
		if m.submitting {
			m.reducer.Cancel()
			return m, nil
		}
		return m.quit()
	}

	switch m.state {
	case StateHistory:
		return m.handleHistoryKey(msg)
	case StateInfo:
		if key.Matches(msg, m.keys.Cancel, m.keys.Submit) {
			m.state = StateChat
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		if m.submitting {
			m.reducer.Cancel()
		}
		return m, nil
	case key.Matches(msg, m.keys.DismissToast):
		m.toasts.DismissNewest()
		return m, nil
	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.LineUp(1)
		return m, nil
	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.LineDown(1)
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		if strings.HasPrefix(text, "/") {
			return m.runCommand(text)
		}
		return m.submit(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.state = StateChat
	case key.Matches(msg, m.keys.ScrollUp):
		m.list.Up()
	case key.Matches(msg, m.keys.ScrollDown):
		m.list.Down()
	case key.Matches(msg, m.keys.Open):
		item, ok := m.list.Selected()
		if !ok {
			return m, nil
		}
		m.state = StateChat
		return m.loadConversation(item.ID, m.listLocal)
	case key.Matches(msg, m.keys.Delete):
		item, ok := m.list.Selected()
		if !ok {
			return m, nil
		}
		return m, m.deleteConversationCmd(item.ID, m.listLocal)
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.reducer.Cancel()
	return m, tea.Quit
}

// =============================================================================
// EXCHANGES
// =============================================================================

// submit runs one exchange in a command goroutine. The reducer publishes
// snapshots into the buffer and the tick loop renders them.
func (m Model) submit(question string) (tea.Model, tea.Cmd) {
	if m.submitting || m.loading {
		m.toasts.Notify(transcript.LevelWarning, "An answer is still in progress. Press Esc to cancel it.")
		return m, nil
	}
	m.submitting = true
	r, ctx := m.reducer, m.ctx
	run := func() tea.Msg {
		return submitDoneMsg{err: r.Submit(ctx, question)}
	}
	return m, tea.Batch(run, streamTickCmd(m.buffer.Interval()), m.spinner.Tick)
}

func (m Model) handleStreamTick() (tea.Model, tea.Cmd) {
	if t, ok := m.buffer.Flush(); ok {
		m.setSnapshot(t)
	}
	if m.submitting || m.loading {
		return m, streamTickCmd(m.buffer.Interval())
	}
	return m, nil
}

func (m Model) handleSubmitDone(msg submitDoneMsg) (tea.Model, tea.Cmd) {
	m.submitting = false
	m.flush()

	switch {
	case msg.err == nil:
	case chatapi.IsCancelled(msg.err):
		m.toasts.Notify(transcript.LevelInfo, "Answer cancelled")
	case errors.Is(msg.err, transcript.ErrBusy):
		m.toasts.Notify(transcript.LevelWarning, msg.err.Error())
	default:
		// The reducer already told the Notifier.
		m.logger.WithError(msg.err).Debug("SUBMIT_FAILED")
	}
	return m, nil
}

// flush renders whatever the reducer published last.
func (m *Model) flush() {
	if t, ok := m.buffer.ForceFlush(); ok {
		m.setSnapshot(t)
	} else {
		m.refresh()
	}
}

func (m *Model) setSnapshot(t transcript.Transcript) {
	m.snapshot = t
	m.refresh()
}

// refresh re-renders the transcript, following the bottom if the user was
// already there.
func (m *Model) refresh() {
	follow := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// HISTORY
// =============================================================================

func (m Model) resetCmd() tea.Cmd {
	r := m.reducer
	return func() tea.Msg {
		r.Reset()
		return resetDoneMsg{}
	}
}

func (m Model) loadConversation(id string, local bool) (tea.Model, tea.Cmd) {
	if local && m.store == nil {
		m.toasts.Notify(transcript.LevelWarning, "Local history is not enabled")
		return m, nil
	}
	m.loading = true
	r, ctx, store := m.reducer, m.ctx, m.store
	load := func() tea.Msg {
		if !local {
			return historyLoadedMsg{id: id, err: r.LoadHistory(ctx, id)}
		}
		conv, err := store.Load(id)
		if err != nil {
			return historyLoadedMsg{id: id, local: true, err: err}
		}
		r.Replace(conv.ID, conv.Entries())
		return historyLoadedMsg{id: id, local: true}
	}
	return m, tea.Batch(load, streamTickCmd(m.buffer.Interval()), m.spinner.Tick)
}

func (m Model) handleHistoryLoaded(msg historyLoadedMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	m.flush()
	if msg.err != nil {
		// Remote load failures were already reported by the reducer.
		if msg.local || errors.Is(msg.err, transcript.ErrNoHistorySource) {
			m.toasts.Notify(transcript.LevelError, "Could not load conversation: "+msg.err.Error())
		}
		return m, nil
	}
	m.logger.WithField("conversation", msg.id).Debug("CONVERSATION_OPENED")
	return m, nil
}

func (m Model) listConversationsCmd(local bool) tea.Cmd {
	ctx, backend, store := m.ctx, m.backend, m.store
	return func() tea.Msg {
		if local {
			metas, err := store.List()
			if err != nil {
				return conversationsMsg{local: true, err: err}
			}
			return conversationsMsg{local: true, items: localItems(metas)}
		}
		convs, err := backend.ListConversations(ctx)
		if err != nil {
			return conversationsMsg{err: err}
		}
		return conversationsMsg{items: remoteItems(convs)}
	}
}

func (m Model) handleConversations(msg conversationsMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.toasts.Notify(transcript.LevelError, "Could not list conversations: "+msg.err.Error())
		return m, nil
	}
	title := "Conversations"
	if msg.local {
		title = "Local conversations"
	}
	m.list = components.NewConversationList(title, msg.items)
	m.listLocal = msg.local
	m.state = StateHistory
	return m, nil
}

func (m Model) deleteConversationCmd(id string, local bool) tea.Cmd {
	ctx, backend, store := m.ctx, m.backend, m.store
	return func() tea.Msg {
		var err error
		if local {
			err = store.Delete(id)
		} else {
			err = backend.DeleteConversation(ctx, id)
		}
		return conversationDeletedMsg{id: id, local: local, err: err}
	}
}

func (m Model) handleConversationDeleted(msg conversationDeletedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.toasts.Notify(transcript.LevelError, "Could not delete conversation: "+msg.err.Error())
		return m, nil
	}
	if m.list != nil && m.listLocal == msg.local {
		m.list.Remove(msg.id)
	}
	m.toasts.Notify(transcript.LevelInfo, "Conversation deleted")
	return m, nil
}

// =============================================================================
// CONFIG
// =============================================================================

// handleConfigReloaded applies new model settings, cadence and display
// options. Provider, tool and mode choices made in this session are kept.
func (m Model) handleConfigReloaded(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	if msg.Config == nil {
		return m, nil
	}
	m.cfg = msg.Config
	m.template.Settings = msg.Config.ModelSettings()
	m.streamHint = hintFor(msg.Config)
	m.applyTemplate()
	m.buffer.SetMaxFPS(msg.Config.UI.MaxFPS)
	m.renderMarkdown = msg.Config.UI.RenderMarkdown
	m.refresh()
	m.toasts.Notify(transcript.LevelInfo, "Configuration reloaded")
	return m, nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the current screen.
func (m Model) State() State { return m.state }

// Snapshot returns the transcript last rendered.
func (m Model) Snapshot() transcript.Transcript { return m.snapshot }

// Submitting reports whether an exchange is running.
func (m Model) Submitting() bool { return m.submitting }

// Template returns a copy of the request settings for new questions.
func (m Model) Template() chatapi.Template { return m.template.Clone() }

// Toasts returns the toast manager.
func (m Model) Toasts() *components.ToastManager { return m.toasts }
