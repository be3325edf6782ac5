// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// MODEL SETTINGS
// =============================================================================

// ModelSettings are the generation parameters sent with every question.
type ModelSettings struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
	TopP        float64 `json:"topP"`
	TopK        int     `json:"topK"`
}

// DefaultModelSettings returns the settings used when none are configured.
func DefaultModelSettings() ModelSettings {
	return ModelSettings{
		Temperature: 0.5,
		MaxTokens:   2000,
		TopP:        0.5,
		TopK:        50,
	}
}

// ProviderSelection targets a specific provider and model.
type ProviderSelection struct {
	Provider string `json:"provider"`
	ModelID  string `json:"modelId"`
}

// StreamingHint asks the backend for a streaming cadence. Advisory only.
type StreamingHint struct {
	ChunkSize int `json:"chunk_size"`
	DelayMs   int `json:"delay_ms"`
}

// =============================================================================
// PAYLOAD
// =============================================================================

// Payload describes one question and its generation configuration.
//
// A Payload is immutable: the With* methods return modified copies and the
// accessors return copies of slice and pointer fields. The zero Payload is
// not valid; build one with NewPayload.
type Payload struct {
	question       string
	tools          []string
	settings       ModelSettings
	conversationID string
	provider       *ProviderSelection
	hint           *StreamingHint
}

// NewPayload creates a payload for question with default model settings.
func NewPayload(question string) Payload {
	return Payload{
		question: question,
		settings: DefaultModelSettings(),
	}
}

// WithTools returns a copy selecting the given tools. Duplicates and blank
// names are dropped; first occurrence order is kept.
func (p Payload) WithTools(tools ...string) Payload {
	seen := make(map[string]struct{}, len(tools))
	out := make([]string, 0, len(tools))
	for _, t := range tools {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	p.tools = out
	return p
}

// WithModelSettings returns a copy with the given settings.
func (p Payload) WithModelSettings(s ModelSettings) Payload {
	p.settings = s
	return p
}

// WithConversation returns a copy continuing conversation id. An empty id
// starts a new conversation.
func (p Payload) WithConversation(id string) Payload {
	p.conversationID = id
	return p
}

// WithProvider returns a copy targeting provider/model. Empty provider
// clears the selection.
func (p Payload) WithProvider(provider, modelID string) Payload {
	if provider == "" {
		p.provider = nil
		return p
	}
	p.provider = &ProviderSelection{Provider: provider, ModelID: modelID}
	return p
}

// WithStreamingHint returns a copy carrying a cadence hint. A nil hint
// removes it.
func (p Payload) WithStreamingHint(h *StreamingHint) Payload {
	if h == nil {
		p.hint = nil
		return p
	}
	cp := *h
	p.hint = &cp
	return p
}

// Question returns the question text.
func (p Payload) Question() string { return p.question }

// Tools returns the selected tool names.
func (p Payload) Tools() []string {
	out := make([]string, len(p.tools))
	copy(out, p.tools)
	return out
}

// ModelSettings returns the generation parameters.
func (p Payload) ModelSettings() ModelSettings { return p.settings }

// ConversationID returns the continued conversation, or "" for a new one.
func (p Payload) ConversationID() string { return p.conversationID }

// Provider returns the provider selection, if any.
func (p Payload) Provider() (ProviderSelection, bool) {
	if p.provider == nil {
		return ProviderSelection{}, false
	}
	return *p.provider, true
}

// StreamingHint returns the cadence hint, if any.
func (p Payload) StreamingHint() (StreamingHint, bool) {
	if p.hint == nil {
		return StreamingHint{}, false
	}
	return *p.hint, true
}

// Validate reports ErrEmptyQuestion for a blank question.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.question) == "" {
		return ErrEmptyQuestion
	}
	return nil
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

// wirePayload is the JSON request body. Unset optionals are omitted.
type wirePayload struct {
	Question       string             `json:"question"`
	SelectedTools  []string           `json:"selectedTools"`
	ModelSettings  ModelSettings      `json:"modelSettings"`
	ChatUUID       string             `json:"chat_uuid,omitempty"`
	LLMProvider    *ProviderSelection `json:"llmProvider,omitempty"`
	StreamSettings *StreamingHint     `json:"stream_settings,omitempty"`
}

// MarshalJSON encodes the request body.
func (p Payload) MarshalJSON() ([]byte, error) {
	tools := p.tools
	if tools == nil {
		tools = []string{}
	}
	return json.Marshal(wirePayload{
		Question:       p.question,
		SelectedTools:  tools,
		ModelSettings:  p.settings,
		ChatUUID:       p.conversationID,
		LLMProvider:    p.provider,
		StreamSettings: p.hint,
	})
}

// UnmarshalJSON decodes a request body. Missing model settings keep the
// defaults.
func (p *Payload) UnmarshalJSON(data []byte) error {
	w := wirePayload{ModelSettings: DefaultModelSettings()}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	np := NewPayload(w.Question).
		WithTools(w.SelectedTools...).
		WithModelSettings(w.ModelSettings).
		WithConversation(w.ChatUUID).
		WithStreamingHint(w.StreamSettings)
	if w.LLMProvider != nil {
		np = np.WithProvider(w.LLMProvider.Provider, w.LLMProvider.ModelID)
	}
	*p = np
	return nil
}
