// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components holds the small stateful widgets of the chat TUI.

  - ToastManager keeps expiring notifications and implements
    transcript.Notifier, so reducer failures surface as toasts.
  - StatusBar renders mode, provider, usage and malformed frame counts.
  - ConversationList is the picker behind /history.

Components render with a *styles.Theme and hold no tea.Model of their own;
the chat model drives them from its Update.
*/
package components
