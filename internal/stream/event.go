// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	// EventContent carries a text fragment to append to the answer.
	EventContent EventKind = iota
	// EventDone marks the end of the answer; nothing after it is read.
	EventDone
	// EventMalformed is a frame that did not decode. Decoder never returns it.
	EventMalformed
)

// String returns the event kind name for logs.
func (k EventKind) String() string {
	switch k {
	case EventContent:
		return "content"
	case EventDone:
		return "done"
	case EventMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Event is one decoded frame.
type Event struct {
	Kind EventKind
	Text string // content fragment, empty for EventDone
	Raw  string // the frame as received
}

// ContentEvent builds an EventContent.
func ContentEvent(text string) Event {
	return Event{Kind: EventContent, Text: text}
}

// DoneEvent builds an EventDone.
func DoneEvent() Event {
	return Event{Kind: EventDone}
}

// =============================================================================
// PARSE ERRORS
// =============================================================================

// Errors wrapped by ParseError.
var (
	ErrNotObject      = errors.New("frame is not a JSON object")
	ErrMissingContent = errors.New("frame has no content field")
)

// ParseError describes a frame that could not be turned into an Event.
type ParseError struct {
	Frame string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed frame %q: %v", truncateFrame(e.Frame, 80), e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

func truncateFrame(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// =============================================================================
// CHUNK PARSER
// =============================================================================

// wireChunk is the on-the-wire shape of one frame:
//
//	{"content":"Hello"}
//	{"content":"","done":true}
type wireChunk struct {
	Content *string `json:"content"`
	Done    bool    `json:"done"`
}

// ParseFrame decodes a single frame. Each frame is independent; there is no
// cross-frame state.
//
// A frame with "done": true yields EventDone. Any content carried alongside
// the done flag is ignored, matching the backend's terminal frame which
// always carries an empty string. On failure the returned Event has kind
// EventMalformed and the error is a *ParseError.
func ParseFrame(frame string) (Event, error) {
	trimmed := strings.TrimSpace(frame)
	if !strings.HasPrefix(trimmed, "{") {
		return malformed(frame, ErrNotObject)
	}

	var chunk wireChunk
	if err := json.Unmarshal([]byte(trimmed), &chunk); err != nil {
		return malformed(frame, err)
	}

	if chunk.Done {
		return Event{Kind: EventDone, Raw: frame}, nil
	}
	if chunk.Content == nil {
		return malformed(frame, ErrMissingContent)
	}
	return Event{Kind: EventContent, Text: *chunk.Content, Raw: frame}, nil
}

func malformed(frame string, cause error) (Event, error) {
	return Event{Kind: EventMalformed, Raw: frame}, &ParseError{Frame: frame, Cause: cause}
}
