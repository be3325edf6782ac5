// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/shaharia-lab/mcpchat/internal/transcript"
	"github.com/shaharia-lab/mcpchat/internal/ui/styles"
)

func TestNewToastDurations(t *testing.T) {
	tests := []struct {
		level transcript.Level
		want  time.Duration
	}{
		{transcript.LevelInfo, InfoToastDuration},
		{transcript.LevelWarning, WarningToastDuration},
		{transcript.LevelError, ErrorToastDuration},
	}
	for _, tc := range tests {
		if got := NewToast(tc.level, "x").Duration; got != tc.want {
			t.Errorf("level %d duration = %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestToastManagerNewestFirstAndCapped(t *testing.T) {
	m := NewToastManager(2)
	m.Notify(transcript.LevelInfo, "one")
	m.Notify(transcript.LevelInfo, "two")
	m.Notify(transcript.LevelError, "three")

	toasts := m.Toasts()
	if len(toasts) != 2 {
		t.Fatalf("len = %d, want 2", len(toasts))
	}
	if toasts[0].Message != "three" || toasts[1].Message != "two" {
		t.Errorf("order = %q, %q", toasts[0].Message, toasts[1].Message)
	}
	if toasts[0].ID == toasts[1].ID {
		t.Error("IDs should be unique")
	}
}

func TestToastManagerDismiss(t *testing.T) {
	m := NewToastManager(0)
	id := m.Add(NewToast(transcript.LevelInfo, "a"))
	m.Add(NewToast(transcript.LevelInfo, "b"))

	m.Dismiss(id)
	if m.Len() != 1 || m.Toasts()[0].Message != "b" {
		t.Fatalf("after Dismiss: %+v", m.Toasts())
	}
	if !m.DismissNewest() {
		t.Fatal("DismissNewest should remove b")
	}
	if m.DismissNewest() {
		t.Error("DismissNewest on empty manager should report false")
	}
}

func TestToastManagerExpire(t *testing.T) {
	m := NewToastManager(0)
	now := time.Now()
	old := NewToast(transcript.LevelInfo, "old")
	old.CreatedAt = now.Add(-time.Minute)
	m.Add(old)
	m.Add(NewToast(transcript.LevelError, "fresh"))

	if !m.Expire(now) {
		t.Fatal("fresh toast should remain")
	}
	if m.Len() != 1 || m.Toasts()[0].Message != "fresh" {
		t.Errorf("remaining = %+v", m.Toasts())
	}
	if m.Expire(now.Add(time.Hour)) {
		t.Error("all toasts should have expired")
	}
}

func TestRenderToast(t *testing.T) {
	theme := styles.NewTheme("dark")
	got := RenderToast(theme, NewToast(transcript.LevelError, "backend\nunreachable"), 80)
	if !strings.Contains(got, styles.StatusIndicators.Error) {
		t.Errorf("missing error marker: %q", got)
	}
	if !strings.Contains(got, "backend unreachable") {
		t.Errorf("message not flattened: %q", got)
	}
}

func TestRenderToastStackEmpty(t *testing.T) {
	if got := RenderToastStack(styles.NewTheme("dark"), nil, 80); got != "" {
		t.Errorf("RenderToastStack(nil) = %q", got)
	}
}
