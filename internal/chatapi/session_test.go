// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/mcpchat/internal/stream"
	"github.com/shaharia-lab/mcpchat/internal/telemetry"
)

// recorder captures handler calls in order.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	chunks []string
}

func (r *recorder) handlers() StreamHandlers {
	return StreamHandlers{
		OnIdentity: func(id string) { r.add("identity:" + id) },
		OnContent: func(text string) {
			r.add("content:" + text)
			r.mu.Lock()
			r.chunks = append(r.chunks, text)
			r.mu.Unlock()
		},
		OnDone: func() { r.add("done") },
	}
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// ndjsonHandler writes each part with a flush in between so fragments
// arrive in separate reads.
func ndjsonHandler(identity string, parts ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity != "" {
			w.Header().Set(DefaultIdentityHeader, identity)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, p := range parts {
			_, _ = w.Write([]byte(p))
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestOpenStream_OrderAndIdentity(t *testing.T) {
	client := newTestClient(t, ndjsonHandler("conv-9",
		`{"content":"Hel`, `lo"}`+"\n",
		`{"content":", world"}`+"\n",
		`{"content":"","done":true}`+"\n",
	))

	rec := &recorder{}
	err := client.OpenStream(context.Background(), NewPayload("hi"), rec.handlers())
	require.NoError(t, err)
	require.Equal(t, []string{
		"identity:conv-9",
		"content:Hello",
		"content:, world",
		"done",
	}, rec.Calls())
}

func TestOpenStream_RequestShape(t *testing.T) {
	var path, accept string
	var body map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, accept = r.URL.Path, r.Header.Get("Accept")
		_ = json.NewDecoder(r.Body).Decode(&body)
	}))

	p := NewPayload("hi").WithStreamingHint(&StreamingHint{ChunkSize: 1, DelayMs: 10})
	require.NoError(t, client.OpenStream(context.Background(), p, StreamHandlers{}))
	require.Equal(t, "/conversations/stream", path)
	require.Equal(t, "application/x-ndjson", accept)
	require.Contains(t, body, "stream_settings")
}

func TestOpenStream_IdentityWithEmptyBody(t *testing.T) {
	client := newTestClient(t, ndjsonHandler("conv-1"))

	rec := &recorder{}
	require.NoError(t, client.OpenStream(context.Background(), NewPayload("hi"), rec.handlers()))
	require.Equal(t, []string{"identity:conv-1"}, rec.Calls())
}

func TestOpenStream_CustomIdentityHeader(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Conversation", "c-2")
		_, _ = w.Write([]byte(`{"content":"x"}` + "\n"))
	}), func(cfg *ClientConfig) { cfg.IdentityHeader = "X-Conversation" })

	rec := &recorder{}
	require.NoError(t, client.OpenStream(context.Background(), NewPayload("hi"), rec.handlers()))
	require.Equal(t, []string{"identity:c-2", "content:x"}, rec.Calls())
}

func TestOpenStream_MalformedFrameReported(t *testing.T) {
	sink := telemetry.NewRecordingSink(nil)
	client := newTestClient(t, ndjsonHandler("",
		`{"content":"A"}`+"\n",
		"not-json\n",
		`{"content":"B"}`+"\n",
	), func(cfg *ClientConfig) { cfg.Sink = sink })

	rec := &recorder{}
	require.NoError(t, client.OpenStream(context.Background(), NewPayload("hi"), rec.handlers()))
	require.Equal(t, []string{"content:A", "content:B"}, rec.Calls())

	reports := sink.Reports()
	require.Len(t, reports, 1)
	require.Equal(t, "not-json", reports[0].Frame)
}

func TestOpenStream_StopsAtDone(t *testing.T) {
	client := newTestClient(t, ndjsonHandler("",
		`{"content":"x"}`+"\n"+`{"content":"","done":true}`+"\n"+`{"content":"after"}`+"\n",
	))

	rec := &recorder{}
	require.NoError(t, client.OpenStream(context.Background(), NewPayload("hi"), rec.handlers()))
	require.Equal(t, []string{"content:x", "done"}, rec.Calls())
}

func TestOpenStream_ImplicitCompletion(t *testing.T) {
	client := newTestClient(t, ndjsonHandler("", `{"content":"partial"}`))

	rec := &recorder{}
	require.NoError(t, client.OpenStream(context.Background(), NewPayload("hi"), rec.handlers()))
	require.Equal(t, []string{"content:partial"}, rec.Calls())
}

func TestOpenStream_StatusError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(DefaultIdentityHeader, "should-not-be-seen")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))

	rec := &recorder{}
	err := client.OpenStream(context.Background(), NewPayload("hi"), rec.handlers())
	require.True(t, IsRequestError(err))
	require.Equal(t, http.StatusUnauthorized, StatusCode(err))
	require.Empty(t, rec.Calls())
}

func TestOpenStream_CancelMidStream(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(DefaultIdentityHeader, "conv-1")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"content":"first"}` + "\n" + `{"content":"sec`))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		_, _ = w.Write([]byte(`ond"}` + "\n"))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	h := rec.handlers()
	onContent := h.OnContent
	h.OnContent = func(text string) {
		onContent(text)
		cancel()
	}

	start := time.Now()
	err := client.OpenStream(ctx, NewPayload("hi"), h)
	require.True(t, IsCancelled(err), "got %v", err)
	require.False(t, IsRequestError(err))
	require.Less(t, time.Since(start), 3*time.Second, "cancel must stop reading promptly")
	require.Equal(t, []string{"identity:conv-1", "content:first"}, rec.Calls())
}

func TestDispatch_NothingFiresOnceCancelled(t *testing.T) {
	rec := &recorder{}
	h := rec.handlers()

	require.True(t, dispatch(context.Background(), h, stream.Event{Kind: stream.EventContent, Text: "a"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, dispatch(ctx, h, stream.Event{Kind: stream.EventContent, Text: "b"}))
	require.False(t, dispatch(ctx, h, stream.Event{Kind: stream.EventDone}))

	require.Equal(t, []string{"content:a"}, rec.Calls())
}

func TestOpenStream_CancelledBeforeStart(t *testing.T) {
	client := newTestClient(t, ndjsonHandler("c", `{"content":"x"}`+"\n"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	err := client.OpenStream(ctx, NewPayload("hi"), rec.handlers())
	require.True(t, errors.Is(err, ErrCancelled), "got %v", err)
	require.Empty(t, rec.Calls())
}

func TestOpenStream_InterruptedBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"content":"a"}` + "\n"))
	}))

	rec := &recorder{}
	err := client.OpenStream(context.Background(), NewPayload("hi"), rec.handlers())

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr), "got %v", err)
	require.Equal(t, KindNetwork, reqErr.Kind)
	require.Equal(t, []string{"content:a"}, rec.Calls())
}

func TestOpenStream_LargeAnswerManyFrames(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		sb.WriteString(`{"content":"ab"}` + "\n")
	}
	client := newTestClient(t, ndjsonHandler("", sb.String()))

	var got strings.Builder
	err := client.OpenStream(context.Background(), NewPayload("hi"), StreamHandlers{
		OnContent: func(text string) { got.WriteString(text) },
	})
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("ab", 500), got.String())
}
