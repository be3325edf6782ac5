// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

// Template is the per-session request configuration a Payload is built
// from. Callers change a Template as settings change and hand Builder to
// whoever sends questions.
type Template struct {
	Settings ModelSettings
	Provider string
	ModelID  string
	Tools    []string
	// Hint is sent only when non-nil.
	Hint *StreamingHint
}

// DefaultTemplate returns a template with default model settings.
func DefaultTemplate() Template {
	return Template{Settings: DefaultModelSettings()}
}

// Clone returns a deep copy.
func (t Template) Clone() Template {
	if t.Tools != nil {
		t.Tools = append([]string(nil), t.Tools...)
	}
	if t.Hint != nil {
		h := *t.Hint
		t.Hint = &h
	}
	return t
}

// Build returns a payload for question.
func (t Template) Build(question string) Payload {
	return NewPayload(question).
		WithModelSettings(t.Settings).
		WithProvider(t.Provider, t.ModelID).
		WithTools(t.Tools...).
		WithStreamingHint(t.Hint)
}

// Builder returns a function building payloads from a snapshot of t.
// Later changes to t do not affect it.
func (t Template) Builder() func(question string) Payload {
	snap := t.Clone()
	return snap.Build
}

// HasTool reports whether name is selected.
func (t Template) HasTool(name string) bool {
	for _, n := range t.Tools {
		if n == name {
			return true
		}
	}
	return false
}

// ToggleTool returns a copy with name added or removed, and whether it is
// now selected.
func (t Template) ToggleTool(name string) (Template, bool) {
	t = t.Clone()
	for i, n := range t.Tools {
		if n == name {
			t.Tools = append(t.Tools[:i], t.Tools[i+1:]...)
			return t, false
		}
	}
	t.Tools = append(t.Tools, name)
	return t, true
}
