// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

// =============================================================================
// PARSING
// =============================================================================

// Parse parses argv (without the program name) into a command and its
// arguments. Global flags are accepted before and after the command name.
func Parse(argv []string) (Command, Args, error) {
	var args Args
	var showVersion bool

	global := newFlagSet("mcpchat")
	global.SetInterspersed(false)
	addGlobalFlags(global, &args)
	global.BoolVarP(&showVersion, "version", "v", false, "print version")
	if err := global.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return CmdHelp, args, nil
		}
		return CmdHelp, args, &UsageError{Message: err.Error()}
	}
	if showVersion {
		return CmdVersion, args, nil
	}

	rest := global.Args()
	if len(rest) == 0 {
		return CmdTUI, args, nil
	}

	cmd, ok := lookupCommand(rest[0])
	if !ok {
		return CmdHelp, args, &UsageError{Message: "unknown command " + quote(rest[0])}
	}
	if cmd == CmdHelp {
		return CmdHelp, args, nil
	}

	fs := newFlagSet(cmd.String())
	addGlobalFlags(fs, &args)
	switch cmd {
	case CmdAsk, CmdChat:
		fs.BoolVar(&args.NoStream, "no-stream", false, "wait for the whole answer")
		fs.StringVar(&args.Conversation, "conversation", "", "continue conversation ID")
	case CmdHistory:
		fs.BoolVar(&args.Local, "local", false, "use the local transcript cache")
	case CmdUsage:
		fs.IntVar(&args.Days, "days", 7, "how many days back to report")
	case CmdMockServer:
		fs.StringVar(&args.Addr, "addr", "", "listen address")
		fs.StringVar(&args.ServerToken, "require-token", "", "required bearer token")
		fs.IntVar(&args.ChunkSize, "chunk-size", 0, "runes per frame without a hint")
		fs.StringSliceVar(&args.Faults, "fault", nil, "fault to inject")
	}
	if err := fs.Parse(rest[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return CmdHelp, args, nil
		}
		return cmd, args, &UsageError{Command: cmd.String(), Message: err.Error()}
	}
	args.Raw = fs.Args()

	if err := bindPositional(cmd, &args); err != nil {
		return cmd, args, err
	}
	return cmd, args, nil
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	return fs
}

// addGlobalFlags registers the global flags on fs. Current values in args
// become the defaults so a second parse does not clobber the first.
func addGlobalFlags(fs *pflag.FlagSet, args *Args) {
	fs.StringVar(&args.ConfigPath, "config", args.ConfigPath, "config file")
	fs.StringVar(&args.Backend, "backend", args.Backend, "backend URL")
	fs.StringVar(&args.Token, "token", args.Token, "bearer token")
	fs.StringVar(&args.Provider, "provider", args.Provider, "provider name")
	fs.StringVar(&args.Model, "model", args.Model, "model ID")
	fs.StringVar(&args.LogLevel, "log-level", args.LogLevel, "log level")
	fs.BoolVar(&args.JSON, "json", args.JSON, "print JSON")
	fs.BoolVarP(&args.Quiet, "quiet", "q", args.Quiet, "only print answers and errors")
}

func lookupCommand(name string) (Command, bool) {
	switch strings.ToLower(name) {
	case "tui":
		return CmdTUI, true
	case "ask", "a":
		return CmdAsk, true
	case "chat", "c":
		return CmdChat, true
	case "history", "hist":
		return CmdHistory, true
	case "providers", "provider":
		return CmdProviders, true
	case "tools", "tool":
		return CmdTools, true
	case "mock-server", "serve":
		return CmdMockServer, true
	case "usage":
		return CmdUsage, true
	case "version":
		return CmdVersion, true
	case "help":
		return CmdHelp, true
	}
	return CmdHelp, false
}

// bindPositional moves positional arguments into named fields.
func bindPositional(cmd Command, args *Args) error {
	switch cmd {
	case CmdAsk:
		args.Query = strings.TrimSpace(strings.Join(args.Raw, " "))

	case CmdHistory:
		args.Subcommand = "list"
		if len(args.Raw) > 0 {
			args.Subcommand = strings.ToLower(args.Raw[0])
		}
		switch args.Subcommand {
		case "list", "ls":
			args.Subcommand = "list"
		case "show", "delete", "rm", "export":
			if args.Subcommand == "rm" {
				args.Subcommand = "delete"
			}
			if len(args.Raw) < 2 {
				return &UsageError{Command: "history " + args.Subcommand, Message: "conversation ID required", Example: "mcpchat history " + args.Subcommand + " <id>"}
			}
			args.ID = args.Raw[1]
		case "search", "find":
			args.Subcommand = "search"
			args.Query = strings.TrimSpace(strings.Join(args.Raw[1:], " "))
			if args.Query == "" {
				return &UsageError{Command: "history search", Message: "search text required", Example: "mcpchat history search kubernetes"}
			}
		default:
			return &UsageError{Command: "history", Message: "unknown subcommand " + quote(args.Subcommand), Example: "mcpchat history list|show ID|delete ID|export ID|search TEXT"}
		}

	case CmdUsage:
		if args.Days <= 0 {
			return &UsageError{Command: "usage", Message: "--days must be positive"}
		}
	}
	return nil
}

func quote(s string) string {
	return "\"" + s + "\""
}
