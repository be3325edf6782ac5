// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import "time"

// =============================================================================
// EXCHANGE TYPES
// =============================================================================

// StreamHandlers receive the events of one streaming exchange. Calls are
// made from the goroutine running OpenStream, strictly in order and never
// overlapping. Any handler may be nil.
type StreamHandlers struct {
	// OnIdentity is called at most once, before any OnContent, when the
	// response carries a conversation identity header.
	OnIdentity func(conversationID string)
	// OnContent is called for each content fragment.
	OnContent func(text string)
	// OnDone is called when the backend sends an explicit done marker.
	OnDone func()
}

// Usage is the token accounting returned by single-shot exchanges.
type Usage struct {
	InputTokens  int `json:"input_token"`
	OutputTokens int `json:"output_token"`
}

// SyncResponse is the result of SendOnce.
type SyncResponse struct {
	ConversationID string `json:"chat_uuid"`
	Answer         string `json:"answer"`
	Usage
}

// =============================================================================
// HISTORY TYPES
// =============================================================================

// HistoryMessage is one stored message.
type HistoryMessage struct {
	Text   string `json:"Text"`
	IsUser bool   `json:"IsUser"`
}

// Conversation is a stored conversation with its messages in order.
type Conversation struct {
	ID       string           `json:"uuid"`
	Messages []HistoryMessage `json:"messages"`
}

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	ID        string    `json:"uuid"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// CATALOG TYPES
// =============================================================================

// ProviderInfo is one LLM provider and the models it offers.
type ProviderInfo struct {
	Name   string   `json:"name"`
	Models []string `json:"models"`
}

// HasModel reports whether the provider offers model id.
func (p ProviderInfo) HasModel(id string) bool {
	for _, m := range p.Models {
		if m == id {
			return true
		}
	}
	return false
}

// ProvidersResponse is the body of the provider catalog endpoint.
type ProvidersResponse struct {
	Providers []ProviderInfo `json:"providers"`
}

// ToolInfo is one tool the backend can call.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorBody is the JSON error shape the backend uses for failures.
type ErrorBody struct {
	Error string `json:"error"`
}
