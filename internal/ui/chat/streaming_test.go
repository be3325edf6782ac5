// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/mcpchat/internal/transcript"
)

func snapshotWith(text string) transcript.Transcript {
	return transcript.New("c1", []transcript.Entry{{Content: text}})
}

func TestStreamingBuffer_KeepsNewestSnapshot(t *testing.T) {
	sb := NewStreamingBuffer(30)

	_, ok := sb.Flush()
	require.False(t, ok, "nothing written yet")

	sb.Write(snapshotWith("a"))
	sb.Write(snapshotWith("ab"))
	sb.Write(snapshotWith("abc"))
	require.Equal(t, 3, sb.Pending())

	got, ok := sb.Flush()
	require.True(t, ok)
	require.Equal(t, "abc", got.At(0).Content)
	require.Zero(t, sb.Pending())

	_, ok = sb.Flush()
	require.False(t, ok, "already flushed")
}

func TestStreamingBuffer_FrameCap(t *testing.T) {
	sb := NewStreamingBuffer(1)

	sb.Write(snapshotWith("a"))
	_, ok := sb.Flush()
	require.True(t, ok)

	sb.Write(snapshotWith("ab"))
	_, ok = sb.Flush()
	require.False(t, ok, "second frame inside one second is held back")

	got, ok := sb.ForceFlush()
	require.True(t, ok)
	require.Equal(t, "ab", got.At(0).Content)

	_, ok = sb.ForceFlush()
	require.False(t, ok)
}

func TestStreamingBuffer_SetMaxFPS(t *testing.T) {
	sb := NewStreamingBuffer(0)
	require.Equal(t, time.Second/DefaultMaxFPS, sb.Interval())

	sb.SetMaxFPS(10)
	require.Equal(t, 100*time.Millisecond, sb.Interval())

	sb.SetMaxFPS(500)
	require.Equal(t, time.Second/DefaultMaxFPS, sb.Interval())
}

func TestStreamingBuffer_ConcurrentWrites(t *testing.T) {
	sb := NewStreamingBuffer(60)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sb.Write(snapshotWith("x"))
				sb.Flush()
			}
		}()
	}
	wg.Wait()
	sb.ForceFlush()
	require.Zero(t, sb.Pending())
}
