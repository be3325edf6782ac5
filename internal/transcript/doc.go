// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript owns the ordered message list of one conversation.
//
// Transcript values are immutable snapshots: every change builds a new
// entry slice, so a snapshot handed to a renderer never changes under it.
// The fold functions (AppendUser, AppendPlaceholder, ApplyContent,
// AppendAssistant) are pure and can be tested without I/O.
//
// Reducer drives the folds from a chat exchange. It allows one exchange in
// flight at a time, adopts the conversation identity from the first
// exchange that reports one, and cancels the running exchange before
// Reset or LoadHistory replace the transcript.
//
//	r := transcript.NewReducer(transcript.Options{Exchanger: client})
//	r.OnChange(func(t transcript.Transcript) { render(t) })
//	if err := r.Submit(ctx, "hello"); err != nil { ... }
package transcript
