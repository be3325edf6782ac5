// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPayload_Defaults(t *testing.T) {
	p := NewPayload("hello")

	require.Equal(t, "hello", p.Question())
	require.Empty(t, p.Tools())
	require.Equal(t, DefaultModelSettings(), p.ModelSettings())
	require.Empty(t, p.ConversationID())
	_, ok := p.Provider()
	require.False(t, ok)
	_, ok = p.StreamingHint()
	require.False(t, ok)
}

func TestPayload_BuildersDoNotMutate(t *testing.T) {
	base := NewPayload("q")
	withConv := base.WithConversation("X")
	withProv := withConv.WithProvider("Anthropic", "claude")

	require.Empty(t, base.ConversationID())
	require.Equal(t, "X", withConv.ConversationID())
	_, ok := withConv.Provider()
	require.False(t, ok)

	prov, ok := withProv.Provider()
	require.True(t, ok)
	require.Equal(t, ProviderSelection{Provider: "Anthropic", ModelID: "claude"}, prov)
}

func TestPayload_ToolsAreASet(t *testing.T) {
	p := NewPayload("q").WithTools("search", "", "fetch", "search", "  fetch ")
	require.Equal(t, []string{"search", "fetch"}, p.Tools())

	tools := p.Tools()
	tools[0] = "mutated"
	require.Equal(t, "search", p.Tools()[0])
}

func TestPayload_StreamingHintCopied(t *testing.T) {
	hint := &StreamingHint{ChunkSize: 1, DelayMs: 10}
	p := NewPayload("q").WithStreamingHint(hint)
	hint.ChunkSize = 99

	got, ok := p.StreamingHint()
	require.True(t, ok)
	require.Equal(t, 1, got.ChunkSize)

	_, ok = p.WithStreamingHint(nil).StreamingHint()
	require.False(t, ok)
}

func TestPayload_Validate(t *testing.T) {
	require.NoError(t, NewPayload("hi").Validate())
	require.ErrorIs(t, NewPayload("").Validate(), ErrEmptyQuestion)
	require.ErrorIs(t, NewPayload(" \n\t").Validate(), ErrEmptyQuestion)
}

func TestPayload_MarshalOmitsUnsetOptionals(t *testing.T) {
	data, err := json.Marshal(NewPayload("hi"))
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))

	require.Equal(t, "hi", wire["question"])
	require.Equal(t, []any{}, wire["selectedTools"])
	require.Contains(t, wire, "modelSettings")
	require.NotContains(t, wire, "chat_uuid")
	require.NotContains(t, wire, "llmProvider")
	require.NotContains(t, wire, "stream_settings")
}

func TestPayload_MarshalFull(t *testing.T) {
	p := NewPayload("hi").
		WithTools("search").
		WithModelSettings(ModelSettings{Temperature: 0.2, MaxTokens: 100, TopP: 0.9, TopK: 5}).
		WithConversation("conv-1").
		WithProvider("OpenAI", "gpt-4o").
		WithStreamingHint(&StreamingHint{ChunkSize: 2, DelayMs: 20})

	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"question": "hi",
		"selectedTools": ["search"],
		"modelSettings": {"temperature": 0.2, "maxTokens": 100, "topP": 0.9, "topK": 5},
		"chat_uuid": "conv-1",
		"llmProvider": {"provider": "OpenAI", "modelId": "gpt-4o"},
		"stream_settings": {"chunk_size": 2, "delay_ms": 20}
	}`, string(data))
}

func TestPayload_UnmarshalKeepsDefaultSettings(t *testing.T) {
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(`{"question":"q","chat_uuid":"c"}`), &p))

	require.Equal(t, "q", p.Question())
	require.Equal(t, "c", p.ConversationID())
	require.Equal(t, DefaultModelSettings(), p.ModelSettings())
}
