// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"errors"
	"fmt"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
)

var (
	// ErrBusy is returned by Submit while another exchange is in flight.
	ErrBusy = errors.New("an answer is still streaming")

	// ErrEmptyQuestion is returned by Submit for a blank question.
	ErrEmptyQuestion = chatapi.ErrEmptyQuestion

	// ErrNoHistorySource is returned by LoadHistory when none is configured.
	ErrNoHistorySource = errors.New("no history source configured")

	// ErrEmptyHistory is the cause when a history source returns no
	// conversation and no error.
	ErrEmptyHistory = errors.New("history source returned no conversation")
)

// HistoryLoadError reports that a stored conversation could not be loaded.
// The transcript is unchanged when it is returned.
type HistoryLoadError struct {
	ConversationID string
	Cause          error
}

func (e *HistoryLoadError) Error() string {
	return fmt.Sprintf("load conversation %s: %v", e.ConversationID, e.Cause)
}

func (e *HistoryLoadError) Unwrap() error {
	return e.Cause
}
