// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shaharia-lab/mcpchat/internal/telemetry"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// DefaultIdentityHeader carries the conversation identity on stream responses.
const DefaultIdentityHeader = "X-Chat-UUID"

// RequestIDHeader is set on every request for correlating backend logs.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody caps how much of an error response is read into a message.
const maxErrorBody = 4096

// ClientConfig holds configuration options for the chat client.
type ClientConfig struct {
	// BaseURL is the backend root (default: http://localhost:8081)
	BaseURL string

	// Timeout for non-streaming requests (default: 60s)
	Timeout time.Duration

	// StreamConnectTimeout bounds the wait for stream response headers
	// (default: 15s). The body itself has no deadline.
	StreamConnectTimeout time.Duration

	// IdentityHeader names the response header carrying the conversation
	// identity (default: X-Chat-UUID)
	IdentityHeader string

	// Tokens supplies the bearer credential per request (default: none)
	Tokens TokenSource

	// Sink receives malformed frame reports (default: discard)
	Sink telemetry.Sink

	// Logger for request lifecycle events (default: discard)
	Logger logrus.FieldLogger

	// Transport overrides the HTTP transport, mostly for tests
	Transport http.RoundTripper
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:              "http://localhost:8081",
		Timeout:              60 * time.Second,
		StreamConnectTimeout: 15 * time.Second,
		IdentityHeader:       DefaultIdentityHeader,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the chat backend.
//
// The Client is safe for concurrent use. It keeps no per-conversation
// state; callers thread the conversation identity through Payload.
type Client struct {
	config       ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
	sink         telemetry.Sink
	logger       logrus.FieldLogger
}

// NewClient creates a client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client. Zero fields take their defaults.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	defaults := DefaultConfig()

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.StreamConnectTimeout == 0 {
		cfg.StreamConnectTimeout = defaults.StreamConnectTimeout
	}
	if cfg.IdentityHeader == "" {
		cfg.IdentityHeader = defaults.IdentityHeader
	}
	if cfg.Tokens == nil {
		cfg.Tokens = noToken{}
	}
	if cfg.Sink == nil {
		cfg.Sink = telemetry.NopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard()
	}

	return &Client{
		config:       cfg,
		httpClient:   &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		streamClient: &http.Client{Transport: streamTransport(cfg.Transport, cfg.StreamConnectTimeout)},
		sink:         cfg.Sink,
		logger:       cfg.Logger,
	}
}

// streamTransport returns a transport that bounds header wait but not the
// body. Custom round trippers are used as given.
func streamTransport(rt http.RoundTripper, headerTimeout time.Duration) http.RoundTripper {
	if rt != nil {
		return rt
	}
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil
	}
	t := base.Clone()
	t.ResponseHeaderTimeout = headerTimeout
	return t
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() ClientConfig {
	return c.config
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// SINGLE-SHOT EXCHANGE
// =============================================================================

// SendOnce asks a question and waits for the complete answer.
func (c *Client) SendOnce(ctx context.Context, p Payload) (*SyncResponse, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var result SyncResponse
	if err := c.doJSON(ctx, http.MethodPost, "/conversations", p, &result); err != nil {
		c.logFailure("send", err)
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// LoadHistory fetches a stored conversation.
func (c *Client) LoadHistory(ctx context.Context, conversationID string) (*Conversation, error) {
	var conv Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID), nil, &conv); err != nil {
		return nil, err
	}
	if conv.ID == "" {
		conv.ID = conversationID
	}
	return &conv, nil
}

// ListConversations returns the stored conversations, as ordered by the backend.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var list []ConversationSummary
	if err := c.doJSON(ctx, http.MethodGet, "/conversations", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteConversation removes a stored conversation.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(conversationID), nil, nil)
}

// =============================================================================
// CATALOGS
// =============================================================================

// ListProviders returns the providers and models the backend offers.
func (c *Client) ListProviders(ctx context.Context) ([]ProviderInfo, error) {
	var resp ProvidersResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/llm-providers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Providers, nil
}

// ListTools returns the tools the backend can call.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	var tools []ToolInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/tools", nil, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// newRequest builds a request with a fresh credential and request ID.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &RequestError{Kind: KindEncode, Message: "failed to marshal request", Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, &RequestError{Kind: KindNetwork, Message: "failed to create request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())

	token, err := c.config.Tokens.Token(ctx)
	if err != nil {
		return nil, &RequestError{Kind: KindAuth, Message: "failed to obtain credential", Cause: err}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// send performs req and converts transport failures and non-2xx statuses.
// On success the caller owns resp.Body.
func (c *Client) send(ctx context.Context, hc *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &CancelledError{Cause: ctx.Err()}
		}
		return nil, &RequestError{Kind: KindNetwork, Message: "request to " + req.URL.Path + " failed", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer drainAndClose(resp.Body)
		return nil, statusError(req, resp)
	}
	return resp, nil
}

// doJSON sends in (if non-nil) and decodes the response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, c.httpClient, req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return &CancelledError{Cause: ctx.Err()}
		}
		return &RequestError{Kind: KindDecode, StatusCode: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// statusError turns a non-2xx response into a RequestError, preferring the
// backend's {"error": "..."} message.
func statusError(req *http.Request, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := ""
	var body ErrorBody
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	} else if text := strings.TrimSpace(string(data)); text != "" {
		msg = text
	} else {
		msg = http.StatusText(resp.StatusCode)
	}

	return &RequestError{
		Kind:       KindStatus,
		StatusCode: resp.StatusCode,
		Message:    req.Method + " " + req.URL.Path + ": " + msg,
	}
}

func (c *Client) logFailure(op string, err error) {
	if errors.Is(err, ErrCancelled) {
		c.logger.WithField("op", op).Debug(telemetry.EventRequestCancelled)
		return
	}
	c.logger.WithFields(logrus.Fields{
		"op":     op,
		"status": StatusCode(err),
		"error":  err,
	}).Warn(telemetry.EventRequestError)
}

// drainAndClose lets the connection be reused.
func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, maxErrorBody))
	r.Close()
}
