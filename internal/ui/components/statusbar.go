// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/shaharia-lab/mcpchat/internal/telemetry"
	"github.com/shaharia-lab/mcpchat/internal/transcript"
	"github.com/shaharia-lab/mcpchat/internal/ui/styles"
	"github.com/shaharia-lab/mcpchat/internal/util"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// StatusBar is the bottom line of the chat view.
type StatusBar struct {
	Mode     transcript.Mode
	Provider string
	Model    string
	Tools    int

	Busy    bool
	Spinner string // current spinner frame while busy

	ConversationID string
	Usage          *telemetry.SessionUsage
	Malformed      int

	Width int
}

// Render draws the bar. Segments are dropped from the right as the width
// shrinks; the mode badge always stays.
func (s StatusBar) Render(theme *styles.Theme) string {
	var badge string
	if s.Mode == transcript.ModeSync {
		badge = theme.ModeSync.Render("SYNC")
	} else {
		badge = theme.ModeStream.Render("STREAM")
	}

	segments := []string{badge}
	if s.Busy {
		segments = append(segments, theme.StatusBusy.Render(strings.TrimSpace(s.Spinner+" waiting for answer")))
	}
	if s.Provider != "" {
		target := s.Provider
		if s.Model != "" {
			target += "/" + s.Model
		}
		segments = append(segments, target)
	}
	if s.Tools > 0 {
		segments = append(segments, fmt.Sprintf("%d tool(s)", s.Tools))
	}
	if s.ConversationID != "" {
		segments = append(segments, theme.Muted.Render(util.TruncateRunes(s.ConversationID, 8)))
	}
	if s.Usage != nil {
		segments = append(segments, FormatUsage(s.Usage))
	}
	if s.Malformed > 0 {
		segments = append(segments, theme.StatusError.Render(fmt.Sprintf("%s %d malformed", styles.StatusIndicators.Warning, s.Malformed)))
	}

	line := strings.Join(segments, "  ")
	for len(segments) > 1 && s.Width > 0 && lipgloss.Width(line)+2 > s.Width {
		segments = segments[:len(segments)-1]
		line = strings.Join(segments, "  ")
	}

	bar := theme.StatusBar
	if s.Width > 0 {
		bar = bar.Width(s.Width)
	}
	return bar.Render(line)
}

// FormatUsage renders session usage compactly, e.g. "3 msg, 120 tok".
func FormatUsage(u *telemetry.SessionUsage) string {
	if u == nil {
		return ""
	}
	return fmt.Sprintf("%d msg, %s tok", u.Exchanges, formatCount(u.TotalTokens()))
}

func formatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 10_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
