// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles holds the palette and lipgloss styles of the chat TUI.

Colors are lipgloss AdaptiveColor values. NewTheme picks the background
explicitly ("dark" or "light") or asks the terminal through termenv ("auto"),
and GlamourStyle returns the matching markdown style name so rendered answers
follow the same choice.

Status text always carries an ASCII marker from StatusIndicators next to its
color:

	styles.RenderError("backend unreachable") // "[X] backend unreachable"
*/
package styles
