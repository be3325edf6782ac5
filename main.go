// mcpchat - a terminal client for streaming chat backends.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
	"github.com/shaharia-lab/mcpchat/internal/cli"
	"github.com/shaharia-lab/mcpchat/internal/config"
	"github.com/shaharia-lab/mcpchat/internal/storage"
	"github.com/shaharia-lab/mcpchat/internal/telemetry"
	"github.com/shaharia-lab/mcpchat/internal/transcript"
	"github.com/shaharia-lab/mcpchat/internal/ui/chat"
	"github.com/shaharia-lab/mcpchat/internal/ui/components"
	"github.com/shaharia-lab/mcpchat/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cmd, args, err := cli.Parse(argv)
	if err != nil {
		printError(err)
		fmt.Fprintln(os.Stderr, "Run 'mcpchat help' for usage.")
		return cli.ExitCode(err)
	}

	switch cmd {
	case cli.CmdHelp:
		cli.PrintUsage(os.Stdout)
		return cli.ExitSuccess
	case cli.CmdVersion:
		if args.JSON {
			if err := cli.NewJSONResponse("version", cli.CurrentVersion()).Print(os.Stdout); err != nil {
				return cli.ExitGeneralError
			}
			return cli.ExitSuccess
		}
		cli.PrintVersion(os.Stdout)
		return cli.ExitSuccess
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd == cli.CmdMockServer {
		logger := telemetry.NewLogger(orDefault(args.LogLevel, "info"), "text", os.Stderr)
		return exit(cli.HandleMockServer(ctx, args, logger), args.JSON)
	}

	cfg, err := cli.LoadConfig(args, os.Stderr)
	if err != nil {
		printError(err)
		return cli.ExitCode(err)
	}

	if cmd == cli.CmdTUI {
		return exit(runTUI(ctx, cfg, args), false)
	}

	var in io.Reader
	if !cli.IsTTY() {
		in = os.Stdin
	}
	app := cli.NewApp(cfg, args, in, os.Stdout, os.Stderr)
	defer app.Close()

	switch cmd {
	case cli.CmdAsk:
		err = cli.HandleAsk(ctx, app, args)
	case cli.CmdChat:
		// The REPL handles Ctrl+C itself.
		stop()
		err = cli.HandleChat(context.Background(), app, args)
	case cli.CmdHistory:
		err = cli.HandleHistory(ctx, app, args)
	case cli.CmdProviders:
		err = cli.HandleProviders(ctx, app, args)
	case cli.CmdTools:
		err = cli.HandleTools(ctx, app, args)
	case cli.CmdUsage:
		err = cli.HandleUsage(ctx, app, args)
	}
	return exit(err, args.JSON)
}

// exit prints err unless it was already printed as JSON and returns the
// exit code.
func exit(err error, jsonPrinted bool) int {
	if err == nil {
		return cli.ExitSuccess
	}
	if !jsonPrinted {
		printError(err)
	}
	return cli.ExitCode(err)
}

func printError(err error) {
	if chatapi.IsCancelled(err) {
		fmt.Fprintln(os.Stderr, cli.DimStyle.Render("cancelled"))
		return
	}
	fmt.Fprintln(os.Stderr, cli.ErrorStyle.Render(styles.StatusIndicators.Error+" Error:")+" "+err.Error())
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// =============================================================================
// TUI
// =============================================================================

// runTUI starts the full-screen chat. Logs go to the log file so they do
// not tear the screen.
func runTUI(ctx context.Context, cfg *config.Config, args cli.Args) error {
	logPath, err := cfg.LogFile()
	if err != nil {
		logPath = ""
	}
	logOut, closeLog, err := telemetry.OpenLogFile(logPath)
	if err != nil {
		logOut, closeLog = io.Discard, func() error { return nil }
	}
	defer closeLog()
	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format, logOut)

	sink := telemetry.NewRecordingSink(telemetry.NewLogSink(logger))
	cc := cfg.ClientConfig()
	cc.Sink = sink
	cc.Logger = logger
	client := chatapi.NewClientWithConfig(cc)

	usageDir, err := cfg.UsageDir()
	if err != nil {
		usageDir = ""
	}
	usage, err := telemetry.NewUsageTracker(usageDir)
	if err != nil {
		logger.WithError(err).Warn("USAGE_STORAGE_UNAVAILABLE")
		usage, _ = telemetry.NewUsageTracker("")
	}
	defer func() {
		if err := usage.EndSession(); err != nil {
			logger.WithError(err).Warn("USAGE_SAVE_FAILED")
		}
	}()
	toasts := components.NewToastManager(components.DefaultMaxToasts)

	opts := transcript.Options{
		Exchanger: client,
		History:   client,
		Notifier:  toasts,
		Sink:      sink,
		Logger:    logger,
		Usage:     usage,
	}
	var store *storage.ConversationStore
	if dir, err := cfg.StorageDir(); err == nil {
		store, err = storage.NewConversationStore(dir, cfg.Storage.MaxConversations)
		if err != nil {
			logger.WithError(err).Warn("TRANSCRIPT_CACHE_UNAVAILABLE")
			store = nil
		} else {
			opts.Archiver = store
		}
	}
	reducer := transcript.NewReducer(opts)

	m := chat.New(chat.Options{
		Reducer: reducer,
		Backend: client,
		Store:   store,
		Toasts:  toasts,
		Usage:   usage,
		Sink:    sink,
		Config:  cfg,
		Theme:   styles.NewTheme(cfg.UI.Theme),
		Logger:  logger,
		Context: ctx,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	watchConfig(ctx, p, args, logger)

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// watchConfig forwards config file edits to the running program. Flag
// overrides are reapplied to every reload.
func watchConfig(ctx context.Context, p *tea.Program, args cli.Args, logger logrus.FieldLogger) {
	path := args.ConfigPath
	if path == "" {
		var err error
		if path, err = config.ConfigPathTOML(); err != nil {
			return
		}
	}
	if _, err := os.Stat(path); err != nil {
		return
	}

	w, err := config.NewWatcher(path, func(cfg *config.Config) {
		cli.ApplyFlags(cfg, args)
		if err := cfg.Validate(); err != nil {
			logger.WithError(err).Warn("CONFIG_RELOAD_REJECTED")
			return
		}
		p.Send(chat.ConfigReloadedMsg{Config: cfg})
	})
	if err != nil {
		logger.WithError(err).Warn("CONFIG_WATCH_FAILED")
		return
	}
	w.OnError = func(err error) {
		logger.WithError(err).Warn("CONFIG_RELOAD_FAILED")
	}
	if err := w.Start(ctx); err != nil {
		logger.WithError(err).Warn("CONFIG_WATCH_FAILED")
	}
}
