// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/shaharia-lab/mcpchat/internal/ui/styles"
	"github.com/shaharia-lab/mcpchat/internal/util"
)

// =============================================================================
// CONVERSATION LIST
// =============================================================================

// ListItem is one conversation in the picker.
type ListItem struct {
	ID    string
	Title string
	Meta  string // right-hand detail such as a date or message count
}

// ConversationList is a scrollable picker over conversations.
type ConversationList struct {
	Title  string
	Items  []ListItem
	cursor int
	offset int
}

// NewConversationList creates a list with the cursor on the first item.
func NewConversationList(title string, items []ListItem) *ConversationList {
	return &ConversationList{Title: title, Items: items}
}

// Cursor returns the selected index.
func (l *ConversationList) Cursor() int { return l.cursor }

// Selected returns the item under the cursor.
func (l *ConversationList) Selected() (ListItem, bool) {
	if len(l.Items) == 0 {
		return ListItem{}, false
	}
	return l.Items[l.cursor], true
}

// Up moves the cursor up, stopping at the top.
func (l *ConversationList) Up() {
	if l.cursor > 0 {
		l.cursor--
	}
}

// Down moves the cursor down, stopping at the bottom.
func (l *ConversationList) Down() {
	if l.cursor < len(l.Items)-1 {
		l.cursor++
	}
}

// Remove deletes the item with id and keeps the cursor in range.
func (l *ConversationList) Remove(id string) {
	for i, it := range l.Items {
		if it.ID == id {
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			break
		}
	}
	if l.cursor >= len(l.Items) && l.cursor > 0 {
		l.cursor = len(l.Items) - 1
	}
}

// View renders the list into at most height rows.
func (l *ConversationList) View(theme *styles.Theme, width, height int) string {
	var b strings.Builder
	b.WriteString(theme.ListTitle.Render(l.Title))
	b.WriteString("\n")

	if len(l.Items) == 0 {
		b.WriteString(theme.Muted.Render("  no conversations"))
		return b.String()
	}

	rows := height - 3
	if rows < 1 {
		rows = 1
	}
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+rows {
		l.offset = l.cursor - rows + 1
	}
	end := l.offset + rows
	if end > len(l.Items) {
		end = len(l.Items)
	}

	titleWidth := width - 24
	if titleWidth < 10 {
		titleWidth = 10
	}
	for i := l.offset; i < end; i++ {
		it := l.Items[i]
		title := it.Title
		if title == "" {
			title = it.ID
		}
		line := fmt.Sprintf("%s  %s", util.TruncateWidth(util.SingleLine(title), titleWidth), theme.ListMeta.Render(it.Meta))
		if i == l.cursor {
			b.WriteString(theme.ListItemSelected.Render(line))
		} else {
			b.WriteString(theme.ListItem.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString(theme.Muted.Render(fmt.Sprintf("  %d/%d  enter open  d delete  esc back", l.cursor+1, len(l.Items))))
	return b.String()
}
