// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Event names used as log messages. Fields carry the details.
const (
	EventStreamOpen       = "STREAM_OPEN"
	EventStreamClose      = "STREAM_CLOSE"
	EventFrameMalformed   = "FRAME_MALFORMED"
	EventIdentityAdopted  = "IDENTITY_ADOPTED"
	EventIdentityConflict = "IDENTITY_CONFLICT"
	EventRequestError     = "REQUEST_ERROR"
	EventRequestCancelled = "REQUEST_CANCELLED"
	EventHistoryLoaded    = "HISTORY_LOADED"
	EventConfigReloaded   = "CONFIG_RELOADED"
)

// NewLogger builds a logrus logger. Unknown levels fall back to info and
// any format other than "json" produces text output.
func NewLogger(level, format string, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	if w == nil {
		w = os.Stderr
	}
	logger.SetOutput(w)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	return logger
}

// OpenLogFile opens path for appending, creating it if needed.
// An empty path returns os.Stderr and a no-op closer.
func OpenLogFile(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stderr, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// Discard returns a logger that writes nothing. Tests and library callers
// that pass no logger get this.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}
