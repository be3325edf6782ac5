// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/shaharia-lab/mcpchat/internal/util"
)

// maxLoggedFrame caps how much of a malformed frame reaches the log.
const maxLoggedFrame = 120

// Sink receives non-fatal diagnostics. Implementations must be safe for
// concurrent use; a stream reports from its reading goroutine.
type Sink interface {
	// ReportParseFailure is called once per frame that could not be decoded.
	ReportParseFailure(frame string, err error)
	// ReportAnomaly records a protocol oddity that was tolerated.
	ReportAnomaly(event string, fields map[string]any)
}

// =============================================================================
// LOG SINK
// =============================================================================

// LogSink writes diagnostics to a logrus logger.
type LogSink struct {
	logger logrus.FieldLogger
}

// NewLogSink wraps logger. A nil logger discards everything.
func NewLogSink(logger logrus.FieldLogger) *LogSink {
	if logger == nil {
		logger = Discard()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) ReportParseFailure(frame string, err error) {
	s.logger.WithFields(logrus.Fields{
		"frame": util.TruncateRunes(frame, maxLoggedFrame),
		"error": err,
	}).Warn(EventFrameMalformed)
}

func (s *LogSink) ReportAnomaly(event string, fields map[string]any) {
	s.logger.WithFields(logrus.Fields(fields)).Warn(event)
}

// =============================================================================
// NOP SINK
// =============================================================================

// NopSink drops everything.
type NopSink struct{}

func (NopSink) ReportParseFailure(string, error)     {}
func (NopSink) ReportAnomaly(string, map[string]any) {}

// =============================================================================
// RECORDING SINK
// =============================================================================

// Report is one diagnostic captured by RecordingSink.
type Report struct {
	Event  string
	Frame  string
	Err    error
	Fields map[string]any
}

// RecordingSink keeps every report in memory. It backs the stats shown by
// the chat UI and is handy in tests.
type RecordingSink struct {
	mu      sync.Mutex
	reports []Report
	next    Sink
}

// NewRecordingSink records reports and forwards them to next (may be nil).
func NewRecordingSink(next Sink) *RecordingSink {
	return &RecordingSink{next: next}
}

func (s *RecordingSink) ReportParseFailure(frame string, err error) {
	s.mu.Lock()
	s.reports = append(s.reports, Report{Event: EventFrameMalformed, Frame: frame, Err: err})
	s.mu.Unlock()
	if s.next != nil {
		s.next.ReportParseFailure(frame, err)
	}
}

func (s *RecordingSink) ReportAnomaly(event string, fields map[string]any) {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	s.mu.Lock()
	s.reports = append(s.reports, Report{Event: event, Fields: copied})
	s.mu.Unlock()
	if s.next != nil {
		s.next.ReportAnomaly(event, fields)
	}
}

// Reports returns a copy of everything recorded so far.
func (s *RecordingSink) Reports() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Report, len(s.reports))
	copy(out, s.reports)
	return out
}

// Count returns how many reports carry the given event name.
func (s *RecordingSink) Count(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reports {
		if r.Event == event {
			n++
		}
	}
	return n
}
