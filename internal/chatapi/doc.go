// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chatapi is the HTTP client for the chat backend.
//
// It issues streaming and single-shot exchanges, loads and lists stored
// conversations, and reads the provider and tool catalogs.
//
// # Streaming
//
// OpenStream reads the conversation identity from a response header before
// touching the body, then decodes newline-delimited JSON frames and calls
// the handlers in arrival order:
//
//	err := client.OpenStream(ctx, payload, chatapi.StreamHandlers{
//	    OnIdentity: func(id string) { conversationID = id },
//	    OnContent:  func(text string) { answer.WriteString(text) },
//	})
//
// Cancelling ctx stops reading promptly and OpenStream returns a
// *CancelledError. No handler runs after that.
//
// # Authentication
//
// A TokenSource is asked for a bearer credential on every request. The
// client never caches it.
package chatapi
