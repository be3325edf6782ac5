// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the newline-delimited JSON body of a streaming
// chat response into typed events.
//
// The package has three layers, each usable on its own:
//
//   - FrameDecoder: push-style splitter that turns arbitrary text fragments
//     into complete, non-blank lines ("frames"), carrying a partial line
//     across calls.
//   - ParseFrame: decodes one frame into an Event (content fragment or done
//     marker). Frames that do not decode yield a *ParseError.
//   - Decoder: pull-style reader over an io.Reader that combines the two,
//     skips malformed frames (reporting them through a hook) and stops at
//     the first done marker without consuming the rest of the body.
//
// # Usage
//
//	dec := stream.NewDecoder(resp.Body)
//	dec.OnMalformed = func(frame string, err error) { sink.ReportParseFailure(frame, err) }
//	for {
//	    ev, err := dec.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(ev.Text)
//	}
package stream
