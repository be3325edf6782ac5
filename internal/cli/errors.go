// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
	"github.com/shaharia-lab/mcpchat/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the backend refused the credential
	ExitAuthError = 4
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a conversation was not found
	ExitNotFoundError = 7
	// ExitCancelled indicates the user interrupted the command
	ExitCancelled = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports invalid command usage.
type UsageError struct {
	Command string
	Message string
	Example string
}

func (e *UsageError) Error() string {
	msg := e.Message
	if e.Command != "" {
		msg = e.Command + ": " + msg
	}
	if e.Example != "" {
		msg += "\nExample: " + e.Example
	}
	return msg
}

// ConfigError reports a configuration that could not be loaded.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// errNoStore is returned for --local commands when the cache is unavailable.
var errNoStore = errors.New("local transcript cache is not available")

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	var configErr *ConfigError
	var reqErr *chatapi.RequestError
	switch {
	case errors.As(err, &usageErr):
		return ExitUsageError
	case errors.As(err, &configErr):
		return ExitConfigError
	case chatapi.IsCancelled(err):
		return ExitCancelled
	case errors.Is(err, storage.ErrConversationNotFound):
		return ExitNotFoundError
	case errors.As(err, &reqErr):
		switch {
		case reqErr.Kind == chatapi.KindNetwork:
			return ExitNetworkError
		case reqErr.Kind == chatapi.KindAuth,
			reqErr.StatusCode == http.StatusUnauthorized,
			reqErr.StatusCode == http.StatusForbidden:
			return ExitAuthError
		case reqErr.StatusCode == http.StatusNotFound:
			return ExitNotFoundError
		}
	}
	return ExitGeneralError
}
