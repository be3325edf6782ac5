// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFolds_StreamingSequence(t *testing.T) {
	tr := AppendUser(Transcript{}, "hi")
	tr = AppendPlaceholder(tr)
	tr = ApplyContent(tr, "Hel")
	tr = ApplyContent(tr, "lo")

	require.Equal(t, []Entry{
		{Content: "hi", IsUser: true},
		{Content: "Hello"},
	}, tr.Entries())
}

func TestApplyContent_NeverTouchesUserEntry(t *testing.T) {
	tr := AppendUser(Transcript{}, "question")
	tr = ApplyContent(tr, "answer")

	require.Equal(t, 2, tr.Len())
	require.Equal(t, Entry{Content: "question", IsUser: true}, tr.At(0))
	require.Equal(t, Entry{Content: "answer"}, tr.At(1))
}

func TestApplyContent_EmptyTranscript(t *testing.T) {
	tr := ApplyContent(Transcript{}, "x")
	require.Equal(t, []Entry{{Content: "x"}}, tr.Entries())
}

func TestFolds_CopyOnWrite(t *testing.T) {
	before := AppendPlaceholder(AppendUser(Transcript{}, "hi"))
	after := ApplyContent(before, "more")

	require.Equal(t, "", before.At(1).Content, "earlier snapshot must not change")
	require.Equal(t, "more", after.At(1).Content)

	entries := after.Entries()
	entries[0].Content = "mutated"
	require.Equal(t, "hi", after.At(0).Content)
}

func TestFolds_AppendDoesNotShareBacking(t *testing.T) {
	base := AppendUser(Transcript{}, "a")
	left := AppendAssistant(base, "left")
	right := AppendAssistant(base, "right")

	require.Equal(t, "left", left.At(1).Content)
	require.Equal(t, "right", right.At(1).Content)
}

func TestNew_CopiesInput(t *testing.T) {
	src := []Entry{{Content: "a", IsUser: true}}
	tr := New("id", src)
	src[0].Content = "changed"

	require.Equal(t, "a", tr.At(0).Content)
	require.Equal(t, "id", tr.ConversationID)
}

func TestDropEmptyPlaceholder(t *testing.T) {
	withEmpty := AppendPlaceholder(AppendUser(Transcript{}, "q"))
	require.Equal(t, 1, DropEmptyPlaceholder(withEmpty).Len())

	withContent := ApplyContent(withEmpty, "x")
	require.Equal(t, 2, DropEmptyPlaceholder(withContent).Len())

	onlyUser := AppendUser(Transcript{}, "q")
	require.Equal(t, 1, DropEmptyPlaceholder(onlyUser).Len())
}

func TestTranscript_Accessors(t *testing.T) {
	var empty Transcript
	_, ok := empty.Last()
	require.False(t, ok)
	require.True(t, empty.IsEmpty())
	require.Empty(t, empty.Title())

	tr := AppendAssistant(AppendUser(Transcript{}, "first question"), "answer")
	last, ok := tr.Last()
	require.True(t, ok)
	require.Equal(t, "answer", last.Content)
	require.Equal(t, "first question", tr.Title())
	require.Equal(t, "X", WithIdentity(tr, "X").ConversationID)
	require.Empty(t, tr.ConversationID)
}

func TestReplayDeterminism(t *testing.T) {
	events := []string{"The ", "quick ", "", "brown ", "fox"}

	run := func() Transcript {
		tr := AppendPlaceholder(AppendUser(Transcript{}, "q"))
		for _, e := range events {
			tr = ApplyContent(tr, e)
		}
		return tr
	}

	a, b := run(), run()
	require.Equal(t, a.Entries(), b.Entries())
	require.Equal(t, "The quick brown fox", a.At(1).Content)
}
