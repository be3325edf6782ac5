// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/shaharia-lab/mcpchat/internal/transcript"
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// Frame rate bounds for transcript re-renders.
const (
	DefaultMaxFPS = 30
	MaxMaxFPS     = 60
)

// StreamingBuffer sits between the reducer and the Bubble Tea loop.
//
// The reducer publishes a snapshot for every content chunk, on whatever
// goroutine is running Submit. The buffer keeps only the newest one and the
// UI pulls it on a tick, so a fast stream costs one render per frame rather
// than one per chunk. The limiter caps renders even if ticks bunch up.
type StreamingBuffer struct {
	mu      sync.Mutex
	latest  transcript.Transcript
	dirty   bool
	writes  int
	maxFPS  int
	limiter *rate.Limiter
}

// NewStreamingBuffer creates a buffer rendering at most maxFPS times per
// second. Values outside 1..MaxMaxFPS use DefaultMaxFPS.
func NewStreamingBuffer(maxFPS int) *StreamingBuffer {
	maxFPS = clampFPS(maxFPS)
	return &StreamingBuffer{
		maxFPS:  maxFPS,
		limiter: rate.NewLimiter(rate.Limit(maxFPS), 1),
	}
}

func clampFPS(fps int) int {
	if fps <= 0 || fps > MaxMaxFPS {
		return DefaultMaxFPS
	}
	return fps
}

// Write stores a snapshot. It is registered as a reducer OnChange listener
// and must not block.
func (sb *StreamingBuffer) Write(t transcript.Transcript) {
	sb.mu.Lock()
	sb.latest = t
	sb.dirty = true
	sb.writes++
	sb.mu.Unlock()
}

// Flush returns the newest snapshot if one arrived since the last flush and
// the frame budget allows a render.
func (sb *StreamingBuffer) Flush() (transcript.Transcript, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if !sb.dirty || !sb.limiter.Allow() {
		return transcript.Transcript{}, false
	}
	return sb.takeLocked(), true
}

// ForceFlush returns the newest unseen snapshot regardless of the frame
// budget. Use it when an exchange ends so the final state is never held back.
func (sb *StreamingBuffer) ForceFlush() (transcript.Transcript, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if !sb.dirty {
		return transcript.Transcript{}, false
	}
	return sb.takeLocked(), true
}

func (sb *StreamingBuffer) takeLocked() transcript.Transcript {
	sb.dirty = false
	sb.writes = 0
	return sb.latest
}

// Pending returns how many snapshots were written since the last flush.
func (sb *StreamingBuffer) Pending() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.writes
}

// SetMaxFPS changes the frame cap. Out of range values use DefaultMaxFPS.
func (sb *StreamingBuffer) SetMaxFPS(fps int) {
	fps = clampFPS(fps)
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.maxFPS = fps
	sb.limiter.SetLimit(rate.Limit(fps))
}

// Interval is the tick period matching the frame cap.
func (sb *StreamingBuffer) Interval() time.Duration {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return time.Second / time.Duration(sb.maxFPS)
}

// streamTickCmd schedules the next buffer poll.
func streamTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
