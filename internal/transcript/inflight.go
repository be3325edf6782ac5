// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"context"
)

// =============================================================================
// IN-FLIGHT EXCHANGE
// =============================================================================

// inflight tracks the running exchange. It is guarded by Reducer.mu.
type inflight struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// begin records a new exchange and returns its context.
func (f *inflight) begin(parent context.Context) (context.Context, chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	f.cancel = cancel
	f.done = make(chan struct{})
	return ctx, f.done
}

// abort cancels the running exchange, if any, and returns a channel that
// closes once it has unwound. The returned channel is nil when idle. An
// exchange that was already aborted still returns its channel until end.
func (f *inflight) abort() <-chan struct{} {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	return f.done
}

// end clears the record for an exchange that finished on its own.
func (f *inflight) end() {
	if f.cancel != nil {
		f.cancel()
	}
	f.cancel = nil
	f.done = nil
}
