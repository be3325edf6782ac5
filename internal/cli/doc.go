// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the mcpchat command line.
//
// # Commands
//
//	mcpchat                         Start the TUI (default)
//	mcpchat ask "question"          Ask one question and print the answer
//	mcpchat chat                    Line-oriented chat with input history
//	mcpchat history list|show|delete
//	mcpchat providers | tools       Show the backend catalogs
//	mcpchat mock-server             Run the reference backend
//	mcpchat version
//
// Global flags (--config, --backend, --token, --provider, --model,
// --log-level, --json, --quiet) are accepted before or after the command
// name and override the loaded configuration.
//
// # Output
//
// Answers go to stdout. Errors and notifications go to stderr so output
// can be piped. With --json every command prints one JSONResponse object.
// Colors are disabled when stdout is not a terminal or NO_COLOR is set.
package cli
