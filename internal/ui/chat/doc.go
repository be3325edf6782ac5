// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat is the Bubble Tea chat screen.

The model never folds stream events itself. A transcript.Reducer owns the
conversation; the model runs Reducer.Submit inside a tea.Cmd and renders
whatever snapshots the reducer publishes:

	reducer.OnChange -> StreamingBuffer.Write    (Submit goroutine)
	StreamTickMsg    -> StreamingBuffer.Flush    (Update, capped at max_fps)
	submitDoneMsg    -> StreamingBuffer.ForceFlush

Reset, LoadHistory and Replace also run in commands, since they wait for a
running exchange to unwind. Nothing calls tea.Program.Send from a reducer
listener, so a slow UI can never block the stream.

Lines starting with "/" are commands; see /help.
*/
package chat
