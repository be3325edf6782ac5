// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"io"
	"strings"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// MaxFrameSize bounds a single buffered frame (1MB). A peer that never sends
// a newline cannot grow the carry-over buffer without limit.
const MaxFrameSize = 1 << 20

// readChunkSize is how much FrameReader asks the underlying reader for per call.
const readChunkSize = 4096

// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("stream: frame exceeds maximum size")

// =============================================================================
// FRAME DECODER
// =============================================================================

// FrameDecoder splits incrementally arriving text into newline-terminated
// frames. The last, possibly incomplete line is kept until its newline
// arrives or Flush is called. Blank lines are never emitted.
//
// A FrameDecoder is not safe for concurrent use.
type FrameDecoder struct {
	carry strings.Builder
}

// NewFrameDecoder creates an empty decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Feed appends a fragment and returns every frame completed by it, in the
// order their delimiters appeared.
func (d *FrameDecoder) Feed(fragment string) []string {
	var frames []string
	for {
		idx := strings.IndexByte(fragment, '\n')
		if idx < 0 {
			d.carry.WriteString(fragment)
			return frames
		}

		var line string
		if d.carry.Len() > 0 {
			d.carry.WriteString(fragment[:idx])
			line = d.carry.String()
			d.carry.Reset()
		} else {
			line = fragment[:idx]
		}
		fragment = fragment[idx+1:]

		if frame, ok := normalizeFrame(line); ok {
			frames = append(frames, frame)
		}
	}
}

// Flush returns the buffered remainder as a final frame at end of input.
// It reports false when nothing but whitespace was pending.
func (d *FrameDecoder) Flush() (string, bool) {
	line := d.carry.String()
	d.carry.Reset()
	return normalizeFrame(line)
}

// Reset discards any buffered partial frame.
func (d *FrameDecoder) Reset() {
	d.carry.Reset()
}

// Pending returns the number of buffered bytes not yet part of a frame.
func (d *FrameDecoder) Pending() int {
	return d.carry.Len()
}

// normalizeFrame strips a CRLF remainder and filters blank lines.
func normalizeFrame(line string) (string, bool) {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	return line, true
}

// =============================================================================
// FRAME READER
// =============================================================================

// FrameReader is a lazy, finite, non-restartable sequence of frames read
// from an io.Reader. Frames split across reads are reassembled.
type FrameReader struct {
	r       io.Reader
	dec     *FrameDecoder
	queue   []string
	buf     []byte
	done    bool
	lastErr error
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{
		r:   r,
		dec: NewFrameDecoder(),
		buf: make([]byte, readChunkSize),
	}
}

// Next returns the next frame. It returns io.EOF once the underlying reader
// is exhausted and the final partial line (if any) has been returned; every
// later call returns io.EOF again. Read errors other than io.EOF are
// returned as-is and also end the sequence.
func (fr *FrameReader) Next() (string, error) {
	for {
		if len(fr.queue) > 0 {
			frame := fr.queue[0]
			fr.queue = fr.queue[1:]
			return frame, nil
		}
		if fr.done {
			return "", fr.lastErr
		}

		n, err := fr.r.Read(fr.buf)
		if n > 0 {
			fr.queue = fr.dec.Feed(string(fr.buf[:n]))
			if fr.dec.Pending() > MaxFrameSize {
				fr.finish(ErrFrameTooLarge)
				continue
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if frame, ok := fr.dec.Flush(); ok {
					fr.queue = append(fr.queue, frame)
				}
				fr.finish(io.EOF)
				continue
			}
			fr.finish(err)
		}
	}
}

// Discard drops queued frames and buffered partial content. Later calls to
// Next return io.EOF without reading.
func (fr *FrameReader) Discard() {
	fr.queue = nil
	fr.dec.Reset()
	fr.finish(io.EOF)
}

func (fr *FrameReader) finish(err error) {
	fr.done = true
	fr.dec.Reset()
	if fr.lastErr == nil {
		fr.lastErr = err
	}
}
