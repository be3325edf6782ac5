// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shaharia-lab/mcpchat/internal/transcript"
	"github.com/shaharia-lab/mcpchat/internal/ui/styles"
	"github.com/shaharia-lab/mcpchat/internal/util"
)

// =============================================================================
// TOAST
// =============================================================================

// Toast lifetimes per level. Errors stay longer so they can be read.
const (
	InfoToastDuration    = 4 * time.Second
	WarningToastDuration = 6 * time.Second
	ErrorToastDuration   = 8 * time.Second
)

// DefaultMaxToasts is how many toasts are visible at once.
const DefaultMaxToasts = 4

// Toast is a non-blocking notification that expires on its own.
type Toast struct {
	ID        int
	Level     transcript.Level
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// NewToast creates a toast with the lifetime for its level.
func NewToast(level transcript.Level, message string) Toast {
	d := InfoToastDuration
	switch level {
	case transcript.LevelWarning:
		d = WarningToastDuration
	case transcript.LevelError:
		d = ErrorToastDuration
	}
	return Toast{
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  d,
	}
}

// ExpiredAt reports whether the toast is past its lifetime at now.
func (t Toast) ExpiredAt(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// =============================================================================
// TOAST MANAGER
// =============================================================================

// ToastManager keeps the visible toasts, newest first.
type ToastManager struct {
	mu     sync.Mutex
	toasts []Toast
	nextID int
	max    int
}

// NewToastManager creates a manager showing at most max toasts. max <= 0
// means DefaultMaxToasts.
func NewToastManager(max int) *ToastManager {
	if max <= 0 {
		max = DefaultMaxToasts
	}
	return &ToastManager{nextID: 1, max: max}
}

// Add shows a toast and returns its ID.
func (m *ToastManager) Add(t Toast) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.ID == 0 {
		t.ID = m.nextID
		m.nextID++
	}
	m.toasts = append([]Toast{t}, m.toasts...)
	if len(m.toasts) > m.max {
		m.toasts = m.toasts[:m.max]
	}
	return t.ID
}

// Notify implements transcript.Notifier.
func (m *ToastManager) Notify(level transcript.Level, message string) {
	m.Add(NewToast(level, message))
}

// Dismiss removes a toast by ID.
func (m *ToastManager) Dismiss(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.toasts {
		if t.ID == id {
			m.toasts = append(m.toasts[:i], m.toasts[i+1:]...)
			return
		}
	}
}

// DismissNewest removes the most recent toast, if any.
func (m *ToastManager) DismissNewest() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.toasts) == 0 {
		return false
	}
	m.toasts = m.toasts[1:]
	return true
}

// Expire drops toasts past their lifetime at now and reports whether any
// remain.
func (m *ToastManager) Expire(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := m.toasts[:0]
	for _, t := range m.toasts {
		if !t.ExpiredAt(now) {
			active = append(active, t)
		}
	}
	m.toasts = active
	return len(m.toasts) > 0
}

// Toasts returns a copy of the visible toasts.
func (m *ToastManager) Toasts() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Toast, len(m.toasts))
	copy(out, m.toasts)
	return out
}

// Len returns the number of visible toasts.
func (m *ToastManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.toasts)
}

// =============================================================================
// MESSAGES
// =============================================================================

// ToastTickInterval is how often toast expiry is checked.
const ToastTickInterval = 250 * time.Millisecond

// ToastTickMsg drives toast expiry.
type ToastTickMsg struct {
	Time time.Time
}

// ToastTickCmd schedules the next expiry check.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(ToastTickInterval, func(t time.Time) tea.Msg {
		return ToastTickMsg{Time: t}
	})
}

// =============================================================================
// RENDERING
// =============================================================================

func toastIndicator(level transcript.Level) string {
	switch level {
	case transcript.LevelWarning:
		return styles.StatusIndicators.Warning
	case transcript.LevelError:
		return styles.StatusIndicators.Error
	default:
		return styles.StatusIndicators.Info
	}
}

// RenderToast renders one toast no wider than width.
func RenderToast(theme *styles.Theme, t Toast, width int) string {
	maxWidth := 60
	if width > 0 && width-4 < maxWidth {
		maxWidth = width - 4
	}
	if maxWidth < 20 {
		maxWidth = 20
	}

	var style lipgloss.Style
	switch t.Level {
	case transcript.LevelWarning:
		style = theme.ToastWarn
	case transcript.LevelError:
		style = theme.ToastError
	default:
		style = theme.ToastInfo
	}

	// Border and padding take four columns.
	text := fmt.Sprintf("%s %s", toastIndicator(t.Level), util.SingleLine(t.Message))
	text = util.TruncateWidth(text, maxWidth-4)
	return style.Render(text)
}

// RenderToastStack renders toasts right-aligned, newest at the bottom.
func RenderToastStack(theme *styles.Theme, toasts []Toast, width int) string {
	if len(toasts) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(toasts))
	for i := len(toasts) - 1; i >= 0; i-- {
		rendered = append(rendered, RenderToast(theme, toasts[i], width))
	}
	stack := lipgloss.JoinVertical(lipgloss.Right, rendered...)
	if width <= 0 {
		return stack
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, stack)
}
