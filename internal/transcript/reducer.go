// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
	"github.com/shaharia-lab/mcpchat/internal/telemetry"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Exchanger performs chat exchanges. *chatapi.Client implements it.
type Exchanger interface {
	OpenStream(ctx context.Context, p chatapi.Payload, h chatapi.StreamHandlers) error
	SendOnce(ctx context.Context, p chatapi.Payload) (*chatapi.SyncResponse, error)
}

// HistorySource loads stored conversations. *chatapi.Client and
// *storage.ConversationStore implement it.
type HistorySource interface {
	LoadHistory(ctx context.Context, conversationID string) (*chatapi.Conversation, error)
}

// Archiver keeps a copy of a transcript after each completed exchange.
type Archiver interface {
	SaveTranscript(t Transcript) error
}

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// Notifier shows messages to the user.
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, message string)

func (f NotifierFunc) Notify(level Level, message string) { f(level, message) }

// Mode selects how answers are delivered.
type Mode int

const (
	// ModeStreaming delivers the answer incrementally into a placeholder.
	ModeStreaming Mode = iota
	// ModeSync waits for the complete answer.
	ModeSync
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeSync {
		return "sync"
	}
	return "streaming"
}

// Options configures a Reducer. Only Exchanger is required.
type Options struct {
	Exchanger Exchanger
	History   HistorySource
	Archiver  Archiver
	Notifier  Notifier
	Sink      telemetry.Sink
	Logger    logrus.FieldLogger
	Usage     *telemetry.UsageTracker
	Mode      Mode

	// Payload builds the request for a question. The reducer fills in the
	// conversation identity. Defaults to chatapi.NewPayload.
	Payload func(question string) chatapi.Payload
}

// =============================================================================
// REDUCER
// =============================================================================

// Reducer owns a transcript and folds exchange events into it.
//
// Submit blocks its caller until the exchange ends. Every other method may
// be called from any goroutine, but Reset, LoadHistory and Replace wait for
// a running Submit to unwind, so they must not be called from an OnChange
// listener.
type Reducer struct {
	mu       sync.Mutex
	state    Transcript
	busy     bool
	gen      uint64
	mode     Mode
	payload  func(string) chatapi.Payload
	inflight inflight

	pubMu     sync.Mutex
	listeners []func(Transcript)
	busyFns   []func(bool)

	exchanger Exchanger
	history   HistorySource
	archiver  Archiver
	notifier  Notifier
	sink      telemetry.Sink
	logger    logrus.FieldLogger
	usage     *telemetry.UsageTracker
}

// NewReducer creates a reducer with an empty transcript.
func NewReducer(opts Options) *Reducer {
	r := &Reducer{
		mode:      opts.Mode,
		payload:   opts.Payload,
		exchanger: opts.Exchanger,
		history:   opts.History,
		archiver:  opts.Archiver,
		notifier:  opts.Notifier,
		sink:      opts.Sink,
		logger:    opts.Logger,
		usage:     opts.Usage,
	}
	if r.payload == nil {
		r.payload = chatapi.NewPayload
	}
	if r.notifier == nil {
		r.notifier = NotifierFunc(func(Level, string) {})
	}
	if r.sink == nil {
		r.sink = telemetry.NopSink{}
	}
	if r.logger == nil {
		r.logger = telemetry.Discard()
	}
	return r
}

// OnChange registers a listener called with every new snapshot. Listeners
// run on the goroutine that caused the change, one at a time.
func (r *Reducer) OnChange(fn func(Transcript)) {
	r.pubMu.Lock()
	r.listeners = append(r.listeners, fn)
	r.pubMu.Unlock()
}

// OnBusy registers a listener for busy flag changes.
func (r *Reducer) OnBusy(fn func(bool)) {
	r.pubMu.Lock()
	r.busyFns = append(r.busyFns, fn)
	r.pubMu.Unlock()
}

// Snapshot returns the current transcript.
func (r *Reducer) Snapshot() Transcript {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Busy reports whether an exchange is in flight.
func (r *Reducer) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

// Mode returns the delivery mode for the next Submit.
func (r *Reducer) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// SetMode changes the delivery mode for later submissions.
func (r *Reducer) SetMode(m Mode) {
	r.mu.Lock()
	r.mode = m
	r.mu.Unlock()
}

// SetPayloadBuilder replaces the request builder for later submissions.
func (r *Reducer) SetPayloadBuilder(fn func(question string) chatapi.Payload) {
	if fn == nil {
		fn = chatapi.NewPayload
	}
	r.mu.Lock()
	r.payload = fn
	r.mu.Unlock()
}

// =============================================================================
// STATE REPLACEMENT
// =============================================================================

// Reset cancels any running exchange and clears the transcript and identity.
func (r *Reducer) Reset() {
	r.replace(Transcript{})
	r.logger.Debug("TRANSCRIPT_RESET")
}

// Replace cancels any running exchange and installs entries as the
// transcript of conversation id.
func (r *Reducer) Replace(conversationID string, entries []Entry) {
	r.replace(New(conversationID, entries))
}

// LoadHistory fetches conversation id from the history source and replaces
// the transcript with it. On failure the transcript, identity and any
// running exchange are left alone and a *HistoryLoadError is returned.
func (r *Reducer) LoadHistory(ctx context.Context, conversationID string) error {
	if r.history == nil {
		return &HistoryLoadError{ConversationID: conversationID, Cause: ErrNoHistorySource}
	}

	conv, err := r.history.LoadHistory(ctx, conversationID)
	if err == nil && conv == nil {
		err = ErrEmptyHistory
	}
	if err != nil {
		loadErr := &HistoryLoadError{ConversationID: conversationID, Cause: err}
		r.notifier.Notify(LevelError, loadErr.Error())
		return loadErr
	}

	entries := make([]Entry, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		entries = append(entries, Entry{Content: m.Text, IsUser: m.IsUser})
	}
	id := conv.ID
	if id == "" {
		id = conversationID
	}
	r.replace(New(id, entries))

	r.logger.WithFields(logrus.Fields{
		"conversation": id,
		"entries":      len(entries),
	}).Debug(telemetry.EventHistoryLoaded)
	return nil
}

// Cancel aborts the running exchange without waiting. The transcript keeps
// whatever content had arrived; a placeholder that got nothing is dropped.
func (r *Reducer) Cancel() {
	r.mu.Lock()
	if !r.busy {
		r.mu.Unlock()
		return
	}
	r.gen++
	r.inflight.abort()
	r.state = DropEmptyPlaceholder(r.state)
	r.mu.Unlock()
	r.publish()
}

func (r *Reducer) replace(t Transcript) {
	r.mu.Lock()
	r.gen++
	done := r.inflight.abort()
	r.mu.Unlock()

	if done != nil {
		<-done
	}

	r.mu.Lock()
	r.gen++
	r.state = t
	r.mu.Unlock()
	r.publish()
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit appends question as a user entry and runs one exchange.
//
// It returns ErrBusy without touching the transcript if another exchange is
// running. On failure the user entry is kept, as is any partial streamed
// answer; an empty placeholder is removed. The Notifier is told once and the
// error is returned. A cancelled exchange returns an error matching
// chatapi.ErrCancelled and is not reported to the Notifier.
func (r *Reducer) Submit(ctx context.Context, question string) error {
	if strings.TrimSpace(question) == "" {
		return ErrEmptyQuestion
	}

	r.mu.Lock()
	if r.busy {
		r.mu.Unlock()
		return ErrBusy
	}
	r.busy = true
	ctx, done := r.inflight.begin(ctx)
	gen := r.gen
	mode := r.mode
	r.state = AppendUser(r.state, question)
	if mode == ModeStreaming {
		r.state = AppendPlaceholder(r.state)
	}
	payload := r.payload(question).WithConversation(r.state.ConversationID)
	r.mu.Unlock()

	r.publishBusy(true)
	r.publish()

	defer func() {
		r.mu.Lock()
		r.busy = false
		if r.inflight.done == done {
			r.inflight.end()
		}
		r.mu.Unlock()
		close(done)
		r.publishBusy(false)
	}()

	started := time.Now()
	var err error
	if mode == ModeStreaming {
		err = r.runStream(ctx, gen, payload)
	} else {
		err = r.runSync(ctx, gen, payload)
	}

	if err != nil {
		r.apply(gen, DropEmptyPlaceholder)
		if chatapi.IsCancelled(err) {
			r.logger.Debug(telemetry.EventRequestCancelled)
			return err
		}
		r.notifier.Notify(LevelError, failureMessage(err))
		return err
	}

	if r.usage != nil && mode == ModeStreaming {
		r.usage.Record(telemetry.ExchangeUsage{
			ConversationID: r.Snapshot().ConversationID,
			Duration:       time.Since(started),
			Streamed:       true,
		})
	}
	r.archive(gen)
	return nil
}

func (r *Reducer) runStream(ctx context.Context, gen uint64, p chatapi.Payload) error {
	sent := p.ConversationID()
	return r.exchanger.OpenStream(ctx, p, chatapi.StreamHandlers{
		OnIdentity: func(id string) {
			r.observeIdentity(gen, sent, id)
		},
		OnContent: func(text string) {
			if ctx.Err() != nil {
				return
			}
			r.apply(gen, func(t Transcript) Transcript { return ApplyContent(t, text) })
		},
	})
}

func (r *Reducer) runSync(ctx context.Context, gen uint64, p chatapi.Payload) error {
	started := time.Now()
	resp, err := r.exchanger.SendOnce(ctx, p)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return &chatapi.CancelledError{Cause: ctx.Err()}
	}

	r.observeIdentity(gen, p.ConversationID(), resp.ConversationID)
	r.apply(gen, func(t Transcript) Transcript { return AppendAssistant(t, resp.Answer) })

	if r.usage != nil {
		r.usage.Record(telemetry.ExchangeUsage{
			ConversationID: resp.ConversationID,
			InputTokens:    resp.InputTokens,
			OutputTokens:   resp.OutputTokens,
			Duration:       time.Since(started),
		})
	}
	return nil
}

// apply folds fn into the state if exchange gen is still current.
func (r *Reducer) apply(gen uint64, fn func(Transcript) Transcript) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.state = fn(r.state)
	r.mu.Unlock()
	r.publish()
}

// observeIdentity adopts received if no identity is set. A different
// identity for an established conversation is reported and ignored.
func (r *Reducer) observeIdentity(gen uint64, sent, received string) {
	if received == "" {
		return
	}

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	current := r.state.ConversationID
	switch {
	case current == "":
		r.state = WithIdentity(r.state, received)
		r.mu.Unlock()
		r.logger.WithField("conversation", received).Debug(telemetry.EventIdentityAdopted)
		r.publish()
	case current != received:
		r.mu.Unlock()
		r.sink.ReportAnomaly(telemetry.EventIdentityConflict, map[string]any{
			"current":  current,
			"sent":     sent,
			"received": received,
		})
	default:
		r.mu.Unlock()
	}
}

func (r *Reducer) archive(gen uint64) {
	if r.archiver == nil {
		return
	}
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	snap := r.state
	r.mu.Unlock()

	if snap.ConversationID == "" {
		return
	}
	if err := r.archiver.SaveTranscript(snap); err != nil {
		r.logger.WithError(err).Warn("TRANSCRIPT_ARCHIVE_FAILED")
	}
}

// publish sends the latest snapshot to listeners. Holding pubMu while
// reading state keeps the last delivered snapshot equal to the latest state.
func (r *Reducer) publish() {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	snap := r.Snapshot()
	for _, fn := range r.listeners {
		fn(snap)
	}
}

func (r *Reducer) publishBusy(busy bool) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	for _, fn := range r.busyFns {
		fn(busy)
	}
}

// failureMessage is the text shown to the user for a failed exchange.
func failureMessage(err error) string {
	var reqErr *chatapi.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.Kind {
		case chatapi.KindStatus:
			return "The server rejected the request: " + reqErr.Error()
		case chatapi.KindNetwork:
			return "Could not reach the server: " + reqErr.Error()
		case chatapi.KindAuth:
			return "Authentication failed: " + reqErr.Error()
		}
	}
	return "Request failed: " + err.Error()
}
