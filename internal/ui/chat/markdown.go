// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// maxMarkdownCache bounds the rendered-answer cache.
const maxMarkdownCache = 256

// markdownRenderer renders finished assistant answers with glamour and
// caches the output, since the whole transcript is re-rendered on every
// frame. Text still streaming is never passed here.
type markdownRenderer struct {
	style string
	width int
	term  *glamour.TermRenderer
	cache map[string]string
}

func newMarkdownRenderer(style string, width int) *markdownRenderer {
	mr := &markdownRenderer{style: style, cache: make(map[string]string)}
	mr.setWidth(width)
	return mr
}

// setWidth rebuilds the renderer for a new wrap width.
func (mr *markdownRenderer) setWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == mr.width && mr.term != nil {
		return
	}
	mr.width = width
	mr.cache = make(map[string]string)
	term, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(mr.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		mr.term = nil
		return
	}
	mr.term = term
}

// render returns text as markdown, or text unchanged if rendering fails.
func (mr *markdownRenderer) render(text string) string {
	if mr.term == nil || strings.TrimSpace(text) == "" {
		return text
	}
	if out, ok := mr.cache[text]; ok {
		return out
	}
	out, err := mr.term.Render(text)
	if err != nil {
		return text
	}
	out = strings.Trim(out, "\n")
	if len(mr.cache) >= maxMarkdownCache {
		mr.cache = make(map[string]string)
	}
	mr.cache[text] = out
	return out
}
