// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage keeps a local JSON copy of finished conversations.
//
// ConversationStore satisfies transcript.Archiver, so the reducer can save a
// snapshot after every completed exchange, and transcript.HistorySource, so
// a conversation can be reopened without the backend.
//
// # Usage
//
//	store, err := storage.NewConversationStore(dir, 200)
//	reducer := transcript.NewReducer(transcript.Options{Archiver: store, ...})
//
//	metas, err := store.List()
//	conv, err := store.LoadHistory(ctx, metas[0].ID)
//
// # Storage Location
//
// Conversations are stored as <id>.json under ~/.mcpchat/conversations by
// default, written atomically with 0600 permissions.
package storage
