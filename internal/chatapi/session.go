// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shaharia-lab/mcpchat/internal/stream"
	"github.com/shaharia-lab/mcpchat/internal/telemetry"
)

// =============================================================================
// STREAMING EXCHANGE
// =============================================================================

// OpenStream asks a question and delivers the answer incrementally.
//
// The identity header is read before the body and reported once through
// OnIdentity, even when the body is empty. Content fragments follow in
// arrival order. OpenStream returns nil after an explicit done marker or
// when the body ends without one. Malformed frames are reported to the
// configured sink and skipped.
//
// Cancelling ctx aborts the exchange: buffered partial frames are dropped,
// no handler fires afterwards and the returned error is a *CancelledError.
func (c *Client) OpenStream(ctx context.Context, p Payload, h StreamHandlers) error {
	if err := p.Validate(); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/conversations/stream", p)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/x-ndjson")

	started := time.Now()
	resp, err := c.send(ctx, c.streamClient, req)
	if err != nil {
		c.logFailure("stream", err)
		return err
	}
	defer resp.Body.Close()

	identity := resp.Header.Get(c.config.IdentityHeader)
	log := c.logger.WithFields(logrus.Fields{
		"request_id":   req.Header.Get(RequestIDHeader),
		"conversation": identity,
	})
	log.Debug(telemetry.EventStreamOpen)

	if ctx.Err() != nil {
		return c.cancelled(ctx, log)
	}
	if identity != "" && h.OnIdentity != nil {
		h.OnIdentity(identity)
	}

	dec := stream.NewDecoder(resp.Body)
	dec.OnMalformed = c.sink.ReportParseFailure

	for {
		ev, err := dec.Next()
		if ctx.Err() != nil {
			dec.Discard()
			return c.cancelled(ctx, log)
		}
		if errors.Is(err, io.EOF) {
			log.WithFields(logrus.Fields{
				"events":    dec.EventCount(),
				"malformed": dec.MalformedCount(),
				"done":      dec.SawDone(),
				"elapsed":   time.Since(started).Round(time.Millisecond),
			}).Debug(telemetry.EventStreamClose)
			return nil
		}
		if err != nil {
			reqErr := readError(err)
			c.logFailure("stream", reqErr)
			return reqErr
		}

		if !dispatch(ctx, h, ev) {
			dec.Discard()
			return c.cancelled(ctx, log)
		}
	}
}

// dispatch hands ev to its handler unless ctx is already cancelled. It
// reports whether the event was delivered.
func dispatch(ctx context.Context, h StreamHandlers, ev stream.Event) bool {
	if ctx.Err() != nil {
		return false
	}
	switch ev.Kind {
	case stream.EventContent:
		if h.OnContent != nil {
			h.OnContent(ev.Text)
		}
	case stream.EventDone:
		if h.OnDone != nil {
			h.OnDone()
		}
	}
	return true
}

func (c *Client) cancelled(ctx context.Context, log logrus.FieldLogger) error {
	log.Debug(telemetry.EventRequestCancelled)
	return &CancelledError{Cause: ctx.Err()}
}

// readError classifies a failure while consuming the body.
func readError(err error) *RequestError {
	if errors.Is(err, stream.ErrFrameTooLarge) {
		return &RequestError{Kind: KindDecode, Message: "stream frame too large", Cause: err}
	}
	return &RequestError{Kind: KindNetwork, Message: "stream interrupted", Cause: err}
}
