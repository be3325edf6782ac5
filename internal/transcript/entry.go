// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

// =============================================================================
// ENTRY & TRANSCRIPT
// =============================================================================

// Entry is one message in a transcript.
type Entry struct {
	Content string `json:"content"`
	IsUser  bool   `json:"is_user"`
}

// Transcript is an immutable snapshot of a conversation. The zero value is
// the empty transcript with no identity.
type Transcript struct {
	// ConversationID is empty until an exchange establishes one.
	ConversationID string

	entries []Entry
}

// New builds a transcript from entries, copying them.
func New(conversationID string, entries []Entry) Transcript {
	return Transcript{ConversationID: conversationID, entries: cloneEntries(entries, 0)}
}

// Len returns the number of entries.
func (t Transcript) Len() int { return len(t.entries) }

// At returns entry i.
func (t Transcript) At(i int) Entry { return t.entries[i] }

// Entries returns a copy of the entries in order.
func (t Transcript) Entries() []Entry { return cloneEntries(t.entries, 0) }

// Last returns the newest entry.
func (t Transcript) Last() (Entry, bool) {
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// IsEmpty reports whether there are no entries.
func (t Transcript) IsEmpty() bool { return len(t.entries) == 0 }

// Title is the first user message, for lists.
func (t Transcript) Title() string {
	for _, e := range t.entries {
		if e.IsUser {
			return e.Content
		}
	}
	return ""
}

// cloneEntries copies src into a new slice with room for extra more.
func cloneEntries(src []Entry, extra int) []Entry {
	out := make([]Entry, len(src), len(src)+extra)
	copy(out, src)
	return out
}

// =============================================================================
// FOLDS
// =============================================================================

// AppendUser appends a user entry.
func AppendUser(t Transcript, question string) Transcript {
	entries := cloneEntries(t.entries, 1)
	t.entries = append(entries, Entry{Content: question, IsUser: true})
	return t
}

// AppendPlaceholder appends an empty assistant entry for a streaming answer.
func AppendPlaceholder(t Transcript) Transcript {
	entries := cloneEntries(t.entries, 1)
	t.entries = append(entries, Entry{})
	return t
}

// ApplyContent concatenates text onto the newest assistant entry. User
// entries are never modified: if the newest entry is a user entry (or there
// are none) a new assistant entry is started instead.
func ApplyContent(t Transcript, text string) Transcript {
	n := len(t.entries)
	if n == 0 || t.entries[n-1].IsUser {
		return AppendAssistant(t, text)
	}
	entries := cloneEntries(t.entries, 0)
	entries[n-1].Content += text
	t.entries = entries
	return t
}

// AppendAssistant appends a complete assistant entry.
func AppendAssistant(t Transcript, answer string) Transcript {
	entries := cloneEntries(t.entries, 1)
	t.entries = append(entries, Entry{Content: answer})
	return t
}

// WithIdentity returns t with the conversation identity set.
func WithIdentity(t Transcript, conversationID string) Transcript {
	t.ConversationID = conversationID
	return t
}

// DropEmptyPlaceholder removes the newest entry if it is an assistant entry
// that never received content.
func DropEmptyPlaceholder(t Transcript) Transcript {
	n := len(t.entries)
	if n == 0 || t.entries[n-1].IsUser || t.entries[n-1].Content != "" {
		return t
	}
	t.entries = cloneEntries(t.entries[:n-1], 0)
	return t
}
