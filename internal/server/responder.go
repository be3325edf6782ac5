// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
)

// Request is what a Responder sees of one question.
type Request struct {
	ConversationID string
	Question       string
	// History excludes the current question.
	History  []chatapi.HistoryMessage
	Settings chatapi.ModelSettings
	Provider chatapi.ProviderSelection
	Tools    []string
}

// Responder produces the full answer to a question. The server takes care
// of framing it for streaming clients.
type Responder interface {
	Respond(ctx context.Context, req Request) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, req Request) (string, error)

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// EchoResponder answers by repeating the question, noting the selected
// provider and tools.
type EchoResponder struct{}

// Respond implements Responder.
func (EchoResponder) Respond(_ context.Context, req Request) (string, error) {
	var sb strings.Builder
	if req.Provider.Provider != "" {
		fmt.Fprintf(&sb, "[%s/%s] ", req.Provider.Provider, req.Provider.ModelID)
	}
	sb.WriteString("You said: ")
	sb.WriteString(req.Question)
	if len(req.Tools) > 0 {
		sb.WriteString("\n\nTools available: ")
		sb.WriteString(strings.Join(req.Tools, ", "))
	}
	if turns := len(req.History) / 2; turns > 0 {
		fmt.Fprintf(&sb, "\n\n(%d earlier exchange(s) in this conversation)", turns)
	}
	return sb.String(), nil
}
