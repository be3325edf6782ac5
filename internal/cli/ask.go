// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shaharia-lab/mcpchat/internal/telemetry"
	"github.com/shaharia-lab/mcpchat/internal/transcript"
)

// maxStdinQuestion bounds a question read from stdin.
const maxStdinQuestion = 1 << 20

// AskResult is the --json output of ask.
type AskResult struct {
	ConversationID  string `json:"conversation_id"`
	Question        string `json:"question"`
	Answer          string `json:"answer"`
	Streamed        bool   `json:"streamed"`
	InputTokens     int    `json:"input_tokens,omitempty"`
	OutputTokens    int    `json:"output_tokens,omitempty"`
	MalformedFrames int    `json:"malformed_frames,omitempty"`
	DurationMs      int64  `json:"duration_ms"`
}

// HandleAsk asks one question and prints the answer. Streamed answers are
// printed as they arrive unless --json is set. Cancelling ctx aborts the
// exchange and returns a cancellation error.
func HandleAsk(ctx context.Context, app *App, args Args) error {
	if app.JSON {
		return outputJSON(app.Out, CmdAsk.String(), func() (any, error) {
			return ask(ctx, app, args)
		})
	}
	_, err := ask(ctx, app, args)
	return err
}

func ask(ctx context.Context, app *App, args Args) (*AskResult, error) {
	question, err := askQuestion(app, args)
	if err != nil {
		return nil, err
	}

	mode := transcript.ModeStreaming
	if args.NoStream || !app.Config.Streaming.Enabled {
		mode = transcript.ModeSync
	}
	r, _ := app.newReducer(mode, false)

	if args.Conversation != "" {
		if err := r.LoadHistory(ctx, args.Conversation); err != nil {
			return nil, err
		}
	}

	live := mode == transcript.ModeStreaming && !app.JSON
	printer := newStreamPrinter(app.Out)
	if live {
		r.OnChange(printer.observe)
		printer.start()
	}

	started := time.Now()
	err = r.Submit(ctx, question)
	if live {
		printer.finish()
	}
	if err != nil {
		return nil, err
	}

	snap := r.Snapshot()
	answer := ""
	if last, ok := snap.Last(); ok && !last.IsUser {
		answer = last.Content
	}
	if !live && !app.JSON {
		fmt.Fprintln(app.Out, app.renderAnswer(answer))
	}

	res := &AskResult{
		ConversationID:  snap.ConversationID,
		Question:        question,
		Answer:          answer,
		Streamed:        mode == transcript.ModeStreaming,
		MalformedFrames: app.Sink.Count(telemetry.EventFrameMalformed),
		DurationMs:      time.Since(started).Milliseconds(),
	}
	if app.Usage != nil {
		u := app.Usage.Current()
		res.InputTokens = u.InputTokens
		res.OutputTokens = u.OutputTokens
	}

	if res.MalformedFrames > 0 {
		app.info("%d malformed frame(s) skipped", res.MalformedFrames)
	}
	if res.ConversationID != "" {
		app.info("conversation %s  (continue with --conversation %s)", res.ConversationID, res.ConversationID)
	}
	return res, nil
}

// askQuestion returns the question from the arguments, or from stdin when
// none was given and stdin is not a terminal.
func askQuestion(app *App, args Args) (string, error) {
	if q := strings.TrimSpace(args.Query); q != "" {
		return q, nil
	}
	if app.In != nil {
		data, err := io.ReadAll(io.LimitReader(app.In, maxStdinQuestion))
		if err != nil {
			return "", fmt.Errorf("read question from stdin: %w", err)
		}
		if q := strings.TrimSpace(string(data)); q != "" {
			return q, nil
		}
	}
	return "", &UsageError{Command: "ask", Message: "question required", Example: `mcpchat ask "What is MCP?"`}
}
