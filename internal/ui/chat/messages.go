// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
	"github.com/shaharia-lab/mcpchat/internal/config"
	"github.com/shaharia-lab/mcpchat/internal/ui/components"
)

// =============================================================================
// EXCHANGE MESSAGES
// =============================================================================

// StreamTickMsg polls the streaming buffer while an exchange runs.
type StreamTickMsg struct {
	Time time.Time
}

// submitDoneMsg reports that Reducer.Submit returned.
type submitDoneMsg struct {
	err error
}

// resetDoneMsg reports that the transcript was cleared.
type resetDoneMsg struct{}

// historyLoadedMsg reports the end of a history load.
type historyLoadedMsg struct {
	id    string
	local bool
	err   error
}

// =============================================================================
// CATALOG & HISTORY MESSAGES
// =============================================================================

// conversationsMsg carries a conversation list for the picker.
type conversationsMsg struct {
	local bool
	items []components.ListItem
	err   error
}

// conversationDeletedMsg reports a delete from the picker.
type conversationDeletedMsg struct {
	id    string
	local bool
	err   error
}

// providersMsg carries the provider catalog. When provider is set the
// catalog was fetched to validate a /provider selection.
type providersMsg struct {
	providers []chatapi.ProviderInfo
	provider  string
	model     string
	err       error
}

// toolsMsg carries the tool catalog. When toggle is set it was fetched to
// validate a /tool command.
type toolsMsg struct {
	tools  []chatapi.ToolInfo
	toggle string
	err    error
}

// =============================================================================
// CONFIG MESSAGES
// =============================================================================

// ConfigReloadedMsg delivers a config file change. Send it with
// tea.Program.Send from a config.Watch callback.
type ConfigReloadedMsg struct {
	Config *config.Config
}
