// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/sirupsen/logrus"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
	"github.com/shaharia-lab/mcpchat/internal/config"
	"github.com/shaharia-lab/mcpchat/internal/storage"
	"github.com/shaharia-lab/mcpchat/internal/telemetry"
	"github.com/shaharia-lab/mcpchat/internal/transcript"
	"github.com/shaharia-lab/mcpchat/internal/ui/styles"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// LoadConfig loads the file named by --config, or the default locations,
// and applies flag overrides. A broken default file produces a warning on
// warn and a default config; a broken --config file is an error.
func LoadConfig(args Args, warn io.Writer) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
		if err != nil {
			return nil, &ConfigError{Path: args.ConfigPath, Err: err}
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return nil, &ConfigError{Err: err}
		}
		if err != nil && warn != nil {
			fmt.Fprintf(warn, "%s %v (using defaults)\n", WarningStyle.Render(styles.StatusIndicators.Warning), err)
		}
	}

	ApplyFlags(cfg, args)
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Path: args.ConfigPath, Err: err}
	}
	return cfg, nil
}

// ApplyFlags copies global flag values over cfg.
func ApplyFlags(cfg *config.Config, args Args) {
	if args.Backend != "" {
		cfg.Backend.URL = args.Backend
	}
	if args.Token != "" {
		cfg.Backend.Token = args.Token
	}
	if args.Provider != "" {
		cfg.Model.Provider = args.Provider
	}
	if args.Model != "" {
		cfg.Model.ModelID = args.Model
	}
	if args.LogLevel != "" {
		cfg.Log.Level = args.LogLevel
	}
}

// =============================================================================
// APP
// =============================================================================

// App holds what the line-oriented commands share.
type App struct {
	Config *config.Config
	Client *chatapi.Client
	// Store is nil when the local cache could not be opened.
	Store  *storage.ConversationStore
	Sink   *telemetry.RecordingSink
	Usage  *telemetry.UsageTracker
	Logger *logrus.Logger

	// In supplies the question for ask when none is given. Nil when
	// stdin is a terminal.
	In  io.Reader
	Out io.Writer
	Err io.Writer

	JSON  bool
	Quiet bool
	// Markdown renders finished answers with glamour.
	Markdown bool

	mdOnce sync.Once
	md     *glamour.TermRenderer
}

// NewApp wires a client, cache and telemetry from cfg. Logs go to errOut.
func NewApp(cfg *config.Config, args Args, in io.Reader, out, errOut io.Writer) *App {
	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format, errOut)
	if args.Quiet || args.JSON {
		logger.SetLevel(logrus.ErrorLevel)
	}
	sink := telemetry.NewRecordingSink(telemetry.NewLogSink(logger))

	cc := cfg.ClientConfig()
	cc.Sink = sink
	cc.Logger = logger

	app := &App{
		Config:   cfg,
		Client:   chatapi.NewClientWithConfig(cc),
		Sink:     sink,
		Logger:   logger,
		In:       in,
		Out:      out,
		Err:      errOut,
		JSON:     args.JSON,
		Quiet:    args.Quiet,
		Markdown: cfg.UI.RenderMarkdown && !args.JSON && IsStdoutTTY(),
	}

	if dir, err := cfg.StorageDir(); err == nil {
		store, err := storage.NewConversationStore(dir, cfg.Storage.MaxConversations)
		if err != nil {
			logger.WithError(err).Warn("TRANSCRIPT_CACHE_UNAVAILABLE")
		} else {
			app.Store = store
		}
	}
	app.Usage = newUsageTracker(cfg, logger)
	return app
}

// newUsageTracker persists sessions under the usage directory, or keeps
// them in memory when it cannot be created.
func newUsageTracker(cfg *config.Config, logger logrus.FieldLogger) *telemetry.UsageTracker {
	if dir, err := cfg.UsageDir(); err == nil {
		usage, err := telemetry.NewUsageTracker(dir)
		if err == nil {
			return usage
		}
		logger.WithError(err).Warn("USAGE_STORAGE_UNAVAILABLE")
	}
	usage, _ := telemetry.NewUsageTracker("")
	return usage
}

// Close saves the usage session.
func (a *App) Close() error {
	if a.Usage == nil {
		return nil
	}
	return a.Usage.EndSession()
}

// newReducer builds a reducer for one command. When notify is false
// failures are only returned, for commands that print the error on exit.
func (a *App) newReducer(mode transcript.Mode, notify bool) (*transcript.Reducer, chatapi.Template) {
	tpl := a.template(mode)
	opts := transcript.Options{
		Exchanger: a.Client,
		History:   a.Client,
		Sink:      a.Sink,
		Logger:    a.Logger,
		Usage:     a.Usage,
		Mode:      mode,
		Payload:   tpl.Builder(),
	}
	if a.Store != nil {
		opts.Archiver = a.Store
	}
	if notify {
		opts.Notifier = a
	}
	return transcript.NewReducer(opts), tpl
}

// template returns the configured request settings for mode.
func (a *App) template(mode transcript.Mode) chatapi.Template {
	tpl := a.Config.PayloadTemplate()
	if mode == transcript.ModeSync {
		tpl.Hint = nil
	}
	return tpl
}

// Notify implements transcript.Notifier by printing to Err. Info messages
// are suppressed in quiet mode.
func (a *App) Notify(level transcript.Level, message string) {
	switch level {
	case transcript.LevelError:
		fmt.Fprintln(a.Err, ErrorStyle.Render(styles.StatusIndicators.Error)+" "+message)
	case transcript.LevelWarning:
		fmt.Fprintln(a.Err, WarningStyle.Render(styles.StatusIndicators.Warning)+" "+message)
	default:
		if !a.Quiet {
			fmt.Fprintln(a.Err, DimStyle.Render(styles.StatusIndicators.Info+" "+message))
		}
	}
}

// info prints a secondary line to Err unless quiet.
func (a *App) info(format string, args ...any) {
	if a.Quiet || a.JSON {
		return
	}
	fmt.Fprintln(a.Err, DimStyle.Render(fmt.Sprintf(format, args...)))
}

// renderAnswer formats a finished answer for the terminal.
func (a *App) renderAnswer(text string) string {
	if !a.Markdown {
		return text
	}
	a.mdOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(GetTerminalWidth()-4),
		)
		if err == nil {
			a.md = r
		}
	})
	if a.md == nil {
		return text
	}
	out, err := a.md.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter writes the growth of the streaming answer to w as
// snapshots arrive. It prints only between start and finish, so snapshots
// from history loads are ignored.
type streamPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	active  bool
	printed int
}

func newStreamPrinter(w io.Writer) *streamPrinter {
	return &streamPrinter{w: w}
}

// observe is a reducer OnChange listener.
func (p *streamPrinter) observe(t transcript.Transcript) {
	last, ok := t.Last()
	if !ok || last.IsUser {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active && len(last.Content) > p.printed {
		io.WriteString(p.w, last.Content[p.printed:])
		p.printed = len(last.Content)
	}
}

// start begins a new answer.
func (p *streamPrinter) start() {
	p.mu.Lock()
	p.active = true
	p.printed = 0
	p.mu.Unlock()
}

// finish stops printing and terminates the answer line. It reports
// whether anything was printed.
func (p *streamPrinter) finish() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	if p.printed == 0 {
		return false
	}
	io.WriteString(p.w, "\n")
	return true
}
