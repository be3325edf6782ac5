// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"io"
)

// =============================================================================
// DECODER
// =============================================================================

// Decoder reads Events from a streaming response body.
//
// Malformed frames are dropped and handed to OnMalformed; they never end the
// stream. After the first EventDone, Next returns io.EOF without touching
// the underlying reader again.
type Decoder struct {
	frames *FrameReader

	// OnMalformed, if set, is called for every frame that fails to parse.
	OnMalformed func(frame string, err error)

	sawDone   bool
	finished  bool
	malformed int
	events    int
}

// NewDecoder creates a decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{frames: NewFrameReader(r)}
}

// Next returns the next content or done event. It returns io.EOF when the
// stream is over, whether by an explicit done marker or end of input.
func (d *Decoder) Next() (Event, error) {
	if d.finished {
		return Event{}, io.EOF
	}

	for {
		frame, err := d.frames.Next()
		if err != nil {
			d.finished = true
			return Event{}, err
		}

		ev, perr := ParseFrame(frame)
		if perr != nil {
			d.malformed++
			if d.OnMalformed != nil {
				d.OnMalformed(frame, perr)
			}
			continue
		}

		d.events++
		if ev.Kind == EventDone {
			d.sawDone = true
			d.finished = true
			d.frames.Discard()
		}
		return ev, nil
	}
}

// Discard abandons the stream, dropping buffered partial frames.
func (d *Decoder) Discard() {
	d.finished = true
	d.frames.Discard()
}

// SawDone reports whether the stream ended with an explicit done marker.
func (d *Decoder) SawDone() bool {
	return d.sawDone
}

// MalformedCount returns how many frames were dropped.
func (d *Decoder) MalformedCount() int {
	return d.malformed
}

// EventCount returns how many events were returned.
func (d *Decoder) EventCount() int {
	return d.events
}
