// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
	"github.com/shaharia-lab/mcpchat/internal/config"
	"github.com/shaharia-lab/mcpchat/internal/transcript"
)

// =============================================================================
// INPUT
// =============================================================================

// lineReader is the part of liner the REPL uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// historyFile returns where REPL input history is kept.
func historyFile() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chat_history")
}

// HandleChat runs the interactive line chat. Up/down recall earlier input;
// Ctrl+C cancels a running answer, or exits at the prompt.
func HandleChat(ctx context.Context, app *App, args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	path := historyFile()
	if f, err := os.Open(path); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return
		}
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	return runChat(ctx, app, args, line)
}

// RequiresTTY returns an error if stdin is not a terminal.
func RequiresTTY(operation string) error {
	if !IsTTY() {
		return &UsageError{Command: operation, Message: "stdin is not a terminal; use mcpchat ask for scripted input"}
	}
	return nil
}

// =============================================================================
// REPL
// =============================================================================

// chatSession is the REPL state around one reducer.
type chatSession struct {
	app     *App
	r       *transcript.Reducer
	tpl     chatapi.Template
	hint    *chatapi.StreamingHint
	printer *streamPrinter

	// interrupt derives the context of one exchange. It defaults to
	// cancelling on SIGINT.
	interrupt func(context.Context) (context.Context, context.CancelFunc)
}

func newChatSession(app *App, args Args) *chatSession {
	mode := transcript.ModeStreaming
	if args.NoStream || !app.Config.Streaming.Enabled {
		mode = transcript.ModeSync
	}
	r, tpl := app.newReducer(mode, true)
	s := &chatSession{
		app:     app,
		r:       r,
		tpl:     tpl,
		hint: &chatapi.StreamingHint{
			ChunkSize: app.Config.Streaming.ChunkSize,
			DelayMs:   app.Config.Streaming.DelayMs,
		},
		printer: newStreamPrinter(app.Out),
		interrupt: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
	r.OnChange(s.printer.observe)
	return s
}

func runChat(ctx context.Context, app *App, args Args, in lineReader) error {
	s := newChatSession(app, args)
	if args.Conversation != "" {
		s.load(ctx, args.Conversation)
	}
	if !app.Quiet {
		s.printWelcome()
	}

	prompt := "mcpchat> "
	if ColorsEnabled() {
		prompt = PromptStyle.Render("mcpchat>") + " "
	}

	for {
		input, err := in.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(app.Out)
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		in.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := s.command(ctx, input); quit {
				return nil
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}
		s.ask(ctx, input)
	}
}

// ask runs one exchange. Failures were already reported by the reducer.
func (s *chatSession) ask(ctx context.Context, question string) {
	exCtx, stop := s.interrupt(ctx)
	defer stop()

	live := s.r.Mode() == transcript.ModeStreaming
	if live {
		s.printer.start()
	}
	err := s.r.Submit(exCtx, question)
	if live {
		s.printer.finish()
	}

	switch {
	case err == nil:
		if !live {
			if last, ok := s.r.Snapshot().Last(); ok && !last.IsUser {
				fmt.Fprintln(s.app.Out, s.app.renderAnswer(last.Content))
			}
		}
	case chatapi.IsCancelled(err):
		s.app.Notify(transcript.LevelInfo, "Answer cancelled")
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// command runs a slash command and reports whether the REPL should exit.
func (s *chatSession) command(ctx context.Context, input string) bool {
	fields := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(fields) == 0 {
		return false
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "quit", "exit", "q":
		return true

	case "new", "clear":
		s.r.Reset()
		s.app.Notify(transcript.LevelInfo, "Started a new conversation")

	case "stream":
		s.setStreaming(args)

	case "provider":
		s.setProvider(ctx, args)

	case "tool":
		if len(args) == 0 {
			s.app.Notify(transcript.LevelWarning, "Usage: /tool NAME")
			break
		}
		s.toggleTool(ctx, args[0])

	case "history":
		convs, err := s.app.Client.ListConversations(ctx)
		if err != nil {
			s.app.Notify(transcript.LevelError, "Could not list conversations: "+err.Error())
			break
		}
		printConversationList(s.app.Out, convs)

	case "load":
		if len(args) != 1 {
			s.app.Notify(transcript.LevelWarning, "Usage: /load ID")
			break
		}
		s.load(ctx, args[0])

	case "id":
		if id := s.r.Snapshot().ConversationID; id != "" {
			fmt.Fprintln(s.app.Out, id)
		} else {
			fmt.Fprintln(s.app.Out, "(no conversation yet)")
		}

	case "usage":
		s.printUsage()

	case "help", "?":
		printChatHelp(s.app.Out)

	default:
		s.app.Notify(transcript.LevelWarning, fmt.Sprintf("Unknown command %q. Type /help", "/"+name))
	}
	return false
}

func (s *chatSession) load(ctx context.Context, id string) {
	if err := s.r.LoadHistory(ctx, id); err != nil {
		// Remote failures were reported by the reducer.
		return
	}
	snap := s.r.Snapshot()
	s.app.Notify(transcript.LevelInfo, fmt.Sprintf("Loaded conversation %s (%d messages)", snap.ConversationID, snap.Len()))
	if last, ok := snap.Last(); ok && !last.IsUser {
		fmt.Fprintln(s.app.Out, s.app.renderAnswer(last.Content))
	}
}

// apply hands the reducer the current request settings.
func (s *chatSession) apply() {
	if s.r.Mode() == transcript.ModeStreaming {
		s.tpl.Hint = s.hint
	} else {
		s.tpl.Hint = nil
	}
	s.r.SetPayloadBuilder(s.tpl.Builder())
}

func (s *chatSession) setStreaming(args []string) {
	on := s.r.Mode() != transcript.ModeStreaming
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "on":
			on = true
		case "off":
			on = false
		default:
			s.app.Notify(transcript.LevelWarning, "Usage: /stream [on|off]")
			return
		}
	}
	if on {
		s.r.SetMode(transcript.ModeStreaming)
		s.app.Notify(transcript.LevelInfo, "Streaming on")
	} else {
		s.r.SetMode(transcript.ModeSync)
		s.app.Notify(transcript.LevelInfo, "Streaming off")
	}
	s.apply()
}

func (s *chatSession) setProvider(ctx context.Context, args []string) {
	if len(args) == 0 {
		providers, err := s.app.Client.ListProviders(ctx)
		if err != nil {
			s.app.Notify(transcript.LevelError, "Could not load providers: "+err.Error())
			return
		}
		printProviders(s.app.Out, providers, s.tpl.Provider, s.tpl.ModelID)
		return
	}
	if strings.EqualFold(args[0], "off") {
		s.tpl.Provider, s.tpl.ModelID = "", ""
		s.apply()
		s.app.Notify(transcript.LevelInfo, "Using the backend default provider")
		return
	}

	providers, err := s.app.Client.ListProviders(ctx)
	if err != nil {
		s.app.Notify(transcript.LevelError, "Could not load providers: "+err.Error())
		return
	}
	var info *chatapi.ProviderInfo
	for i := range providers {
		if strings.EqualFold(providers[i].Name, args[0]) {
			info = &providers[i]
			break
		}
	}
	if info == nil {
		s.app.Notify(transcript.LevelWarning, fmt.Sprintf("Unknown provider %q", args[0]))
		return
	}
	modelID := ""
	if len(args) > 1 {
		modelID = args[1]
	} else if len(info.Models) > 0 {
		modelID = info.Models[0]
	}
	if modelID != "" && !info.HasModel(modelID) {
		s.app.Notify(transcript.LevelWarning, fmt.Sprintf("%s has no model %q. Available: %s", info.Name, modelID, strings.Join(info.Models, ", ")))
		return
	}

	s.tpl.Provider, s.tpl.ModelID = info.Name, modelID
	s.apply()
	s.app.Notify(transcript.LevelInfo, "Using "+info.Name+"/"+modelID)
}

func (s *chatSession) toggleTool(ctx context.Context, name string) {
	tools, err := s.app.Client.ListTools(ctx)
	if err != nil {
		s.app.Notify(transcript.LevelError, "Could not load tools: "+err.Error())
		return
	}
	found := ""
	for _, t := range tools {
		if strings.EqualFold(t.Name, name) {
			found = t.Name
			break
		}
	}
	if found == "" {
		s.app.Notify(transcript.LevelWarning, fmt.Sprintf("Unknown tool %q", name))
		return
	}

	var on bool
	s.tpl, on = s.tpl.ToggleTool(found)
	s.apply()
	if on {
		s.app.Notify(transcript.LevelInfo, "Tool selected: "+found)
	} else {
		s.app.Notify(transcript.LevelInfo, "Tool deselected: "+found)
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

func (s *chatSession) printWelcome() {
	w := s.app.Out
	fmt.Fprintln(w, TitleStyle.Render("mcpchat")+" "+DimStyle.Render(s.app.Config.Backend.URL))
	mode := "streaming"
	if s.r.Mode() == transcript.ModeSync {
		mode = "single response"
	}
	fmt.Fprintln(w, DimStyle.Render("Mode: "+mode+". Type /help for commands, Ctrl+D to exit."))
	fmt.Fprintln(w)
}

func (s *chatSession) printUsage() {
	if s.app.Usage == nil {
		fmt.Fprintln(s.app.Out, "Usage tracking is off.")
		return
	}
	u := s.app.Usage.Current()
	fmt.Fprintf(s.app.Out, "%s%d (%d streamed)\n", LabelStyle.Render("Exchanges"), u.Exchanges, u.Streamed)
	fmt.Fprintf(s.app.Out, "%s%d\n", LabelStyle.Render("Tokens in"), u.InputTokens)
	fmt.Fprintf(s.app.Out, "%s%d\n", LabelStyle.Render("Tokens out"), u.OutputTokens)
}

func printChatHelp(w io.Writer) {
	fmt.Fprintln(w, TitleStyle.Render("Commands"))
	for _, c := range [][2]string{
		{"/new", "start a new conversation"},
		{"/stream [on|off]", "toggle streaming answers"},
		{"/provider [NAME [MODEL] | off]", "pick or list providers"},
		{"/tool NAME", "select or deselect a tool"},
		{"/history", "list backend conversations"},
		{"/load ID", "continue a conversation"},
		{"/id", "print the conversation ID"},
		{"/usage", "show session usage"},
		{"/quit", "exit"},
	} {
		fmt.Fprintf(w, "  %-32s %s\n", c[0], DimStyle.Render(c[1]))
	}
	fmt.Fprintln(w, DimStyle.Render("Ctrl+C cancels a running answer."))
}
