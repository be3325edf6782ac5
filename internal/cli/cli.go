// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdHistory
	CmdProviders
	CmdTools
	CmdMockServer
	CmdUsage
	CmdVersion
	CmdHelp
)

var commandNames = map[Command]string{
	CmdTUI:        "tui",
	CmdAsk:        "ask",
	CmdChat:       "chat",
	CmdHistory:    "history",
	CmdProviders:  "providers",
	CmdTools:      "tools",
	CmdMockServer: "mock-server",
	CmdUsage:      "usage",
	CmdVersion:    "version",
	CmdHelp:       "help",
}

// String returns the command name as typed on the command line.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Backend    string
	Token      string
	Provider   string
	Model      string
	LogLevel   string
	JSON       bool
	Quiet      bool

	// ask / chat
	NoStream     bool
	Conversation string
	Query        string

	// history
	Subcommand string
	ID         string
	Local      bool

	// usage
	Days int

	// mock-server
	Addr        string
	ServerToken string
	ChunkSize   int
	Faults      []string

	// Raw holds positional arguments after the command name.
	Raw []string
}

const usageText = `mcpchat - streaming chat client for MCP chat backends

Usage:
  mcpchat                          Start the TUI (default)
  mcpchat ask [flags] "question"   Ask one question
  mcpchat chat [flags]             Interactive line chat
  mcpchat history list [--local]   List conversations
  mcpchat history show ID [--local]
  mcpchat history delete ID [--local]
  mcpchat history export ID        Print a cached conversation as Markdown
  mcpchat history search TEXT      Search the local transcript cache
  mcpchat providers                List providers and models
  mcpchat tools                    List tools
  mcpchat usage [--days N]         Summarize recorded sessions
  mcpchat mock-server [--addr A]   Run the reference backend
  mcpchat version

Ask / chat flags:
  --no-stream          Wait for the whole answer instead of streaming it
  --conversation ID    Continue an existing conversation

Mock server flags:
  --addr ADDR          Listen address (default 127.0.0.1:8081)
  --require-token T    Require this bearer token
  --chunk-size N       Runes per frame when the client sends no hint
  --fault NAME         Inject a fault: malformed, omit-done, trailing

Global flags:
  --config PATH        Config file (default ~/.mcpchat/config.toml)
  --backend URL        Backend URL
  --token TOKEN        Bearer token
  --provider NAME      Provider to request
  --model ID           Model to request
  --log-level LEVEL    debug, info, warn or error
  --json               Print JSON
  -q, --quiet          Only print answers and errors

Environment:
  MCPCHAT_BACKEND_URL, MCPCHAT_TOKEN, MCPCHAT_PROVIDER, MCPCHAT_MODEL,
  MCPCHAT_LOG_LEVEL, MCPCHAT_STREAM, NO_COLOR

Version: %s
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "mcpchat version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// VersionInfo is the --json form of the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	Go        string `json:"go"`
}

// CurrentVersion returns the build's version information.
func CurrentVersion() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		Go:        runtime.Version(),
	}
}
