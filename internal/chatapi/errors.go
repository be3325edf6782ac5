// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorKind categorizes request errors for handling.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindStatus is a non-success HTTP status.
	KindStatus
	// KindNetwork covers connection failures and body read errors.
	KindNetwork
	// KindDecode is an unparsable response body.
	KindDecode
	// KindEncode is a payload that could not be serialized.
	KindEncode
	// KindAuth is a failure to obtain a bearer credential.
	KindAuth
)

// String returns the kind name for logs.
func (k ErrorKind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	case KindEncode:
		return "encode"
	case KindAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// RequestError is returned when an exchange fails for any reason other
// than cancellation.
type RequestError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// ErrCancelled matches every CancelledError via errors.Is.
var ErrCancelled = errors.New("request cancelled")

// ErrEmptyQuestion is returned for a payload whose question is blank.
var ErrEmptyQuestion = errors.New("question must not be empty")

// CancelledError reports that the caller aborted an exchange. It is an
// expected outcome, not a failure to show the user.
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string {
	return ErrCancelled.Error()
}

func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}

func (e *CancelledError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// ERROR PREDICATES
// =============================================================================

// IsRequestError reports whether err is (or wraps) a *RequestError.
func IsRequestError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr)
}

// IsCancelled reports whether err came from an explicit abort.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsNotFound reports whether the backend answered 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}
