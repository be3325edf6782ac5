// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
	"github.com/shaharia-lab/mcpchat/internal/config"
	"github.com/shaharia-lab/mcpchat/internal/server"
	"github.com/shaharia-lab/mcpchat/internal/storage"
	"github.com/shaharia-lab/mcpchat/internal/transcript"
)

// =============================================================================
// HELPERS
// =============================================================================

type testEnv struct {
	app    *App
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newTestEnv(t *testing.T, srvCfg server.Config, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	ts := httptest.NewServer(server.New(srvCfg).Handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.Backend.URL = ts.URL
	cfg.Storage.Dir = t.TempDir()
	cfg.Streaming.DelayMs = 0
	for _, fn := range mutate {
		fn(cfg)
	}

	var out, errOut bytes.Buffer
	app := NewApp(cfg, Args{}, nil, &out, &errOut)
	app.Markdown = false
	return &testEnv{app: app, out: &out, errOut: &errOut}
}

func decodeJSON(t *testing.T, r io.Reader) (JSONResponse, map[string]any) {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.NewDecoder(r).Decode(&resp))
	data, _ := resp.Data.(map[string]any)
	return resp, data
}

// askSync asks over a single-shot exchange and returns the conversation ID.
func askSync(t *testing.T, env *testEnv, question string) string {
	t.Helper()
	env.app.JSON = true
	defer func() { env.app.JSON = false }()

	var buf bytes.Buffer
	out := env.app.Out
	env.app.Out = &buf
	defer func() { env.app.Out = out }()

	require.NoError(t, HandleAsk(context.Background(), env.app, Args{Query: question, NoStream: true}))
	_, data := decodeJSON(t, &buf)
	id, _ := data["conversation_id"].(string)
	require.NotEmpty(t, id)
	return id
}

// =============================================================================
// PARSING
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		cmd  Command
		check func(t *testing.T, a Args)
	}{
		{
			name: "no args starts the TUI",
			argv: nil,
			cmd:  CmdTUI,
		},
		{
			name: "global flags before the command",
			argv: []string{"--backend", "http://example.test", "--json", "ask", "hello", "world"},
			cmd:  CmdAsk,
			check: func(t *testing.T, a Args) {
				require.Equal(t, "http://example.test", a.Backend)
				require.True(t, a.JSON)
				require.Equal(t, "hello world", a.Query)
			},
		},
		{
			name: "global and command flags after the command",
			argv: []string{"ask", "why", "--no-stream", "--model", "gpt-4o", "--conversation=abc", "now"},
			cmd:  CmdAsk,
			check: func(t *testing.T, a Args) {
				require.True(t, a.NoStream)
				require.Equal(t, "gpt-4o", a.Model)
				require.Equal(t, "abc", a.Conversation)
				require.Equal(t, "why now", a.Query)
			},
		},
		{
			name: "first parse survives the second",
			argv: []string{"--provider", "OpenAI", "-q", "chat"},
			cmd:  CmdChat,
			check: func(t *testing.T, a Args) {
				require.Equal(t, "OpenAI", a.Provider)
				require.True(t, a.Quiet)
			},
		},
		{
			name: "history defaults to list",
			argv: []string{"history"},
			cmd:  CmdHistory,
			check: func(t *testing.T, a Args) {
				require.Equal(t, "list", a.Subcommand)
			},
		},
		{
			name: "history show local",
			argv: []string{"history", "show", "abc", "--local"},
			cmd:  CmdHistory,
			check: func(t *testing.T, a Args) {
				require.Equal(t, "show", a.Subcommand)
				require.Equal(t, "abc", a.ID)
				require.True(t, a.Local)
			},
		},
		{
			name: "history rm is delete",
			argv: []string{"hist", "rm", "abc"},
			cmd:  CmdHistory,
			check: func(t *testing.T, a Args) {
				require.Equal(t, "delete", a.Subcommand)
			},
		},
		{
			name: "mock server flags",
			argv: []string{"mock-server", "--addr", ":9999", "--fault", "malformed,omit-done", "--chunk-size", "3"},
			cmd:  CmdMockServer,
			check: func(t *testing.T, a Args) {
				require.Equal(t, ":9999", a.Addr)
				require.Equal(t, []string{"malformed", "omit-done"}, a.Faults)
				require.Equal(t, 3, a.ChunkSize)
			},
		},
		{
			name: "history search joins words",
			argv: []string{"history", "search", "rate", "limits"},
			cmd:  CmdHistory,
			check: func(t *testing.T, a Args) {
				require.Equal(t, "search", a.Subcommand)
				require.Equal(t, "rate limits", a.Query)
			},
		},
		{
			name: "history export",
			argv: []string{"history", "export", "abc"},
			cmd:  CmdHistory,
			check: func(t *testing.T, a Args) {
				require.Equal(t, "export", a.Subcommand)
				require.Equal(t, "abc", a.ID)
			},
		},
		{
			name: "usage defaults to a week",
			argv: []string{"usage"},
			cmd:  CmdUsage,
			check: func(t *testing.T, a Args) {
				require.Equal(t, 7, a.Days)
			},
		},
		{
			name: "usage days",
			argv: []string{"usage", "--days", "30"},
			cmd:  CmdUsage,
			check: func(t *testing.T, a Args) {
				require.Equal(t, 30, a.Days)
			},
		},
		{name: "version flag", argv: []string{"-v"}, cmd: CmdVersion},
		{name: "version command", argv: []string{"version"}, cmd: CmdVersion},
		{name: "help flag", argv: []string{"--help"}, cmd: CmdHelp},
		{name: "help command", argv: []string{"help"}, cmd: CmdHelp},
		{name: "catalogs", argv: []string{"providers"}, cmd: CmdProviders},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd, args, err := Parse(tc.argv)
			require.NoError(t, err)
			require.Equal(t, tc.cmd, cmd)
			if tc.check != nil {
				tc.check(t, args)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, argv := range [][]string{
		{"frobnicate"},
		{"history", "show"},
		{"history", "purge"},
		{"history", "search"},
		{"history", "export"},
		{"usage", "--days", "0"},
		{"ask", "--no-such-flag"},
		{"--no-such-flag"},
	} {
		_, _, err := Parse(argv)
		require.Error(t, err, argv)
		require.Equal(t, ExitUsageError, ExitCode(err), argv)
	}
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_StreamsAnswer(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())

	require.NoError(t, HandleAsk(context.Background(), env.app, Args{Query: "hello"}))

	require.Equal(t, "You said: hello\n", env.out.String())
	require.Contains(t, env.errOut.String(), "continue with --conversation")
}

func TestAsk_SyncJSON(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())
	env.app.JSON = true

	require.NoError(t, HandleAsk(context.Background(), env.app, Args{Query: "count my words", NoStream: true}))

	resp, data := decodeJSON(t, env.out)
	require.True(t, resp.Success)
	require.Equal(t, "ask", resp.Command)
	require.Equal(t, "You said: count my words", data["answer"])
	require.Equal(t, false, data["streamed"])
	require.EqualValues(t, 3, data["input_tokens"])
	require.NotEmpty(t, data["conversation_id"])
}

func TestAsk_StreamingDisabledInConfig(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig(), func(c *config.Config) {
		c.Streaming.Enabled = false
	})

	require.NoError(t, HandleAsk(context.Background(), env.app, Args{Query: "hi"}))
	require.Equal(t, "You said: hi\n", env.out.String())
	require.Equal(t, 0, env.app.Usage.Current().Streamed)
}

func TestAsk_QuestionFromStdin(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())
	env.app.In = strings.NewReader("  piped question \n")

	require.NoError(t, HandleAsk(context.Background(), env.app, Args{}))
	require.Equal(t, "You said: piped question\n", env.out.String())
}

func TestAsk_NoQuestion(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())

	err := HandleAsk(context.Background(), env.app, Args{})
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
	require.Equal(t, ExitUsageError, ExitCode(err))
}

func TestAsk_ContinuesConversation(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())
	id := askSync(t, env, "first")

	require.NoError(t, HandleAsk(context.Background(), env.app, Args{Query: "second", Conversation: id, NoStream: true}))
	require.Contains(t, env.out.String(), "(1 earlier exchange(s) in this conversation)")
}

func TestAsk_UnknownConversation(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())

	err := HandleAsk(context.Background(), env.app, Args{Query: "hi", Conversation: "missing"})
	require.Error(t, err)
	var loadErr *transcript.HistoryLoadError
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, ExitNotFoundError, ExitCode(err))
	require.Empty(t, env.out.String())
}

func TestAsk_MalformedFrameSkipped(t *testing.T) {
	srv := server.DefaultConfig()
	srv.Faults.MalformedFrame = true
	env := newTestEnv(t, srv)

	require.NoError(t, HandleAsk(context.Background(), env.app, Args{Query: "robust"}))
	require.Equal(t, "You said: robust\n", env.out.String())
	require.Contains(t, env.errOut.String(), "1 malformed frame(s) skipped")
}

func TestAsk_BackendFailure(t *testing.T) {
	srv := server.DefaultConfig()
	srv.Responder = server.ResponderFunc(func(context.Context, server.Request) (string, error) {
		return "", errors.New("boom")
	})
	env := newTestEnv(t, srv)
	env.app.JSON = true

	err := HandleAsk(context.Background(), env.app, Args{Query: "hi"})
	require.Error(t, err)
	require.Equal(t, 502, chatapi.StatusCode(err))
	require.Equal(t, ExitGeneralError, ExitCode(err))

	resp, _ := decodeJSON(t, env.out)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
}

func TestAsk_AuthFailure(t *testing.T) {
	srv := server.DefaultConfig()
	srv.Token = "right"
	env := newTestEnv(t, srv, func(c *config.Config) {
		c.Backend.Token = "wrong"
	})

	err := HandleAsk(context.Background(), env.app, Args{Query: "hi"})
	require.Equal(t, ExitAuthError, ExitCode(err))
}

func TestAsk_Cancelled(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := HandleAsk(ctx, env.app, Args{Query: "hi"})
	require.True(t, chatapi.IsCancelled(err))
	require.Equal(t, ExitCancelled, ExitCode(err))
}

// =============================================================================
// CHAT REPL
// =============================================================================

type scriptedInput struct {
	lines   []string
	history []string
}

func (s *scriptedInput) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedInput) AppendHistory(item string) {
	s.history = append(s.history, item)
}

func TestChat_Exchanges(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())
	in := &scriptedInput{lines: []string{"hello", "", "/stream off", "again", "/quit", "never sent"}}

	require.NoError(t, runChat(context.Background(), env.app, Args{}, in))

	out := env.out.String()
	require.Contains(t, out, "You said: hello\n")
	require.Contains(t, out, "You said: again")
	require.Contains(t, out, "(1 earlier exchange(s) in this conversation)")
	require.NotContains(t, out, "never sent")
	require.Equal(t, []string{"hello", "/stream off", "again", "/quit"}, in.history)
	require.Contains(t, env.errOut.String(), "Streaming off")
}

func TestChat_ProviderAndTools(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())
	in := &scriptedInput{lines: []string{
		"/provider openai gpt-4o",
		"/tool SEARCH",
		"ping",
		"/provider mistral",
		"/provider OpenAI gpt-9",
		"/tool teleport",
	}}

	require.NoError(t, runChat(context.Background(), env.app, Args{NoStream: true}, in))

	require.Contains(t, env.out.String(), "[OpenAI/gpt-4o] You said: ping\n\nTools available: search")
	errOut := env.errOut.String()
	require.Contains(t, errOut, "Using OpenAI/gpt-4o")
	require.Contains(t, errOut, "Tool selected: search")
	require.Contains(t, errOut, `Unknown provider "mistral"`)
	require.Contains(t, errOut, `OpenAI has no model "gpt-9"`)
	require.Contains(t, errOut, `Unknown tool "teleport"`)
}

func TestChat_CommandsAndFailures(t *testing.T) {
	srv := server.DefaultConfig()
	srv.Responder = server.ResponderFunc(func(_ context.Context, req server.Request) (string, error) {
		if req.Question == "fail" {
			return "", errors.New("boom")
		}
		return "ok", nil
	})
	env := newTestEnv(t, srv)
	in := &scriptedInput{lines: []string{"/id", "fail", "works", "/usage", "/history", "/bogus", "/help", "/new", "/id"}}

	require.NoError(t, runChat(context.Background(), env.app, Args{}, in))

	out := env.out.String()
	require.Contains(t, out, "(no conversation yet)")
	require.Contains(t, out, "ok\n")
	require.Contains(t, out, "works", "history lists the conversation")
	require.Contains(t, out, "/provider [NAME [MODEL] | off]")
	require.Equal(t, 2, strings.Count(out, "(no conversation yet)"), "/new clears the identity")

	errOut := env.errOut.String()
	require.Contains(t, errOut, "The server rejected the request")
	require.Contains(t, errOut, `Unknown command "/bogus"`)
	require.Contains(t, errOut, "Started a new conversation")
}

func TestChat_LoadAtStart(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())
	id := askSync(t, env, "remember this")

	in := &scriptedInput{lines: []string{"/id"}}
	require.NoError(t, runChat(context.Background(), env.app, Args{Conversation: id}, in))

	out := env.out.String()
	require.Contains(t, out, "You said: remember this")
	require.Contains(t, out, id)
	require.Contains(t, env.errOut.String(), "Loaded conversation "+id+" (2 messages)")
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistory_Remote(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())
	id := askSync(t, env, "a question worth keeping")
	ctx := context.Background()

	require.NoError(t, HandleHistory(ctx, env.app, Args{Subcommand: "list"}))
	require.Contains(t, env.out.String(), id)
	require.Contains(t, env.out.String(), "a question worth keeping")

	env.out.Reset()
	require.NoError(t, HandleHistory(ctx, env.app, Args{Subcommand: "show", ID: id}))
	require.Contains(t, env.out.String(), "You said: a question worth keeping")

	env.out.Reset()
	require.NoError(t, HandleHistory(ctx, env.app, Args{Subcommand: "delete", ID: id}))
	require.Contains(t, env.out.String(), "Deleted conversation "+id)

	err := HandleHistory(ctx, env.app, Args{Subcommand: "show", ID: id})
	require.Equal(t, ExitNotFoundError, ExitCode(err))
}

func TestHistory_Local(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())
	id := askSync(t, env, "cached locally")
	ctx := context.Background()

	require.NoError(t, HandleHistory(ctx, env.app, Args{Subcommand: "list", Local: true}))
	require.Contains(t, env.out.String(), id)

	env.out.Reset()
	env.app.JSON = true
	require.NoError(t, HandleHistory(ctx, env.app, Args{Subcommand: "show", ID: id, Local: true}))
	resp, data := decodeJSON(t, env.out)
	require.True(t, resp.Success)
	require.Equal(t, true, data["local"])
	require.Len(t, data["messages"], 2)
	env.app.JSON = false

	require.NoError(t, HandleHistory(ctx, env.app, Args{Subcommand: "delete", ID: id, Local: true}))
	err := HandleHistory(ctx, env.app, Args{Subcommand: "show", ID: id, Local: true})
	require.ErrorIs(t, err, storage.ErrConversationNotFound)
	require.Equal(t, ExitNotFoundError, ExitCode(err))
}

func TestHistory_LocalWithoutStore(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())
	env.app.Store = nil
	err := HandleHistory(context.Background(), env.app, Args{Subcommand: "list", Local: true})
	require.ErrorIs(t, err, errNoStore)
}

func TestHistory_SearchAndExport(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())
	id := askSync(t, env, "tell me about kubernetes")
	askSync(t, env, "something else")
	ctx := context.Background()

	require.NoError(t, HandleHistory(ctx, env.app, Args{Subcommand: "search", Query: "KUBERNETES"}))
	require.Contains(t, env.out.String(), id)
	require.NotContains(t, env.out.String(), "something else")

	env.out.Reset()
	require.NoError(t, HandleHistory(ctx, env.app, Args{Subcommand: "search", Query: "nothing like this"}))
	require.Contains(t, env.out.String(), "No cached conversations match")

	env.out.Reset()
	require.NoError(t, HandleHistory(ctx, env.app, Args{Subcommand: "export", ID: id}))
	md := env.out.String()
	require.Contains(t, md, "# tell me about kubernetes")
	require.Contains(t, md, "**User**:\n\ntell me about kubernetes")
	require.Contains(t, md, "**Assistant**:\n\nYou said: tell me about kubernetes")

	err := HandleHistory(ctx, env.app, Args{Subcommand: "export", ID: "missing"})
	require.Equal(t, ExitNotFoundError, ExitCode(err))
}

// =============================================================================
// USAGE
// =============================================================================

func TestUsage_ReportsSavedSessions(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())
	askSync(t, env, "one two three")
	require.NoError(t, env.app.Close())

	env.app.JSON = true
	require.NoError(t, HandleUsage(context.Background(), env.app, Args{Days: 1}))
	var resp struct {
		Success bool        `json:"success"`
		Data    UsageReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Len(t, resp.Data.Sessions, 1)
	require.Equal(t, 1, resp.Data.Exchanges)
	require.Equal(t, 3, resp.Data.InputTokens)
}

func TestUsage_Empty(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())
	require.NoError(t, HandleUsage(context.Background(), env.app, Args{Days: 2}))
	require.Contains(t, env.out.String(), "No sessions recorded in the last 2 day(s).")
}

// =============================================================================
// CATALOGS
// =============================================================================

func TestProviders(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig(), func(c *config.Config) {
		c.Model.Provider = "OpenAI"
		c.Model.ModelID = "gpt-4o-mini"
	})

	require.NoError(t, HandleProviders(context.Background(), env.app, Args{}))
	out := env.out.String()
	require.Contains(t, out, "Anthropic")
	require.Contains(t, out, "  * gpt-4o-mini")
	require.Contains(t, out, "    claude-3-5-haiku")
}

func TestTools(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig(), func(c *config.Config) {
		c.Tools.Selected = []string{"search"}
	})

	require.NoError(t, HandleTools(context.Background(), env.app, Args{}))
	out := env.out.String()
	require.Contains(t, out, "[x] search")
	require.Contains(t, out, "[ ] fetch")
}

func TestToolsJSON(t *testing.T) {
	env := newTestEnv(t, server.DefaultConfig())
	env.app.JSON = true

	require.NoError(t, HandleTools(context.Background(), env.app, Args{}))
	var resp struct {
		Success bool               `json:"success"`
		Data    []chatapi.ToolInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Len(t, resp.Data, 2)
}

// =============================================================================
// MISC
// =============================================================================

func TestMockServerConfig(t *testing.T) {
	cfg, err := MockServerConfig(Args{Addr: ":9000", ServerToken: "t", ChunkSize: 2, Faults: []string{"malformed", "Trailing"}}, nil)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Addr)
	require.Equal(t, "t", cfg.Token)
	require.Equal(t, 2, cfg.ChunkSize)
	require.True(t, cfg.Faults.MalformedFrame)
	require.True(t, cfg.Faults.TrailingAfterDone)
	require.False(t, cfg.Faults.OmitDone)

	_, err = MockServerConfig(Args{Faults: []string{"explode"}}, nil)
	require.Equal(t, ExitUsageError, ExitCode(err))
}

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	ApplyFlags(cfg, Args{Backend: "http://other:1", Token: "tok", Provider: "OpenAI", Model: "gpt-4o", LogLevel: "debug"})
	require.Equal(t, "http://other:1", cfg.Backend.URL)
	require.Equal(t, "tok", cfg.Backend.Token)
	require.Equal(t, "OpenAI", cfg.Model.Provider)
	require.Equal(t, "gpt-4o", cfg.Model.ModelID)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{errors.New("x"), ExitGeneralError},
		{&UsageError{Message: "x"}, ExitUsageError},
		{&ConfigError{Err: errors.New("x")}, ExitConfigError},
		{&chatapi.CancelledError{}, ExitCancelled},
		{&chatapi.RequestError{Kind: chatapi.KindNetwork}, ExitNetworkError},
		{&chatapi.RequestError{Kind: chatapi.KindStatus, StatusCode: 401}, ExitAuthError},
		{&chatapi.RequestError{Kind: chatapi.KindStatus, StatusCode: 404}, ExitNotFoundError},
		{&chatapi.RequestError{Kind: chatapi.KindStatus, StatusCode: 500}, ExitGeneralError},
		{&transcript.HistoryLoadError{Cause: &chatapi.RequestError{StatusCode: 404}}, ExitNotFoundError},
		{storage.ErrConversationNotFound, ExitNotFoundError},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, ExitCode(tc.err), "%v", tc.err)
	}
}

func TestStreamPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newStreamPrinter(&buf)

	answered := transcript.New("c", []transcript.Entry{{Content: "q", IsUser: true}, {Content: "old answer"}})
	p.observe(answered)
	require.Empty(t, buf.String(), "snapshots outside an answer are ignored")

	p.start()
	p.observe(transcript.New("c", []transcript.Entry{{Content: "q2", IsUser: true}, {Content: ""}}))
	p.observe(transcript.New("c", []transcript.Entry{{Content: "q2", IsUser: true}, {Content: "Hel"}}))
	p.observe(transcript.New("c", []transcript.Entry{{Content: "q2", IsUser: true}, {Content: "Hello"}}))
	require.True(t, p.finish())
	require.Equal(t, "Hello\n", buf.String())

	p.start()
	require.False(t, p.finish())
}

func TestJSONResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONErrorResponse("ask", errors.New("nope")).Print(&buf))
	resp, _ := decodeJSON(t, &buf)
	require.False(t, resp.Success)
	require.Equal(t, "nope", *resp.Error)
	require.NotEmpty(t, resp.Timestamp)
}

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	PrintVersion(&buf)
	require.Contains(t, buf.String(), "mcpchat version "+Version)
	require.Equal(t, Version, CurrentVersion().Version)
}
