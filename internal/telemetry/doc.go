// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides logging, diagnostics, and usage accounting for
// mcpchat.
//
// # Key Types
//
//   - Sink: receives parse failures and protocol anomalies from a stream
//   - LogSink: Sink backed by a logrus logger
//   - UsageTracker: per-session token counts reported by the backend
//
// # Usage
//
// Build a logger and route stream diagnostics through it:
//
//	logger := telemetry.NewLogger("info", "text", os.Stderr)
//	sink := telemetry.NewLogSink(logger)
//	sink.ReportParseFailure(frame, err)
//
// # Privacy
//
// Nothing here leaves the machine. Frame text is truncated before logging
// and question text is never stored by UsageTracker.
package telemetry
