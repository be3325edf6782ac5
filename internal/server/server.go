// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is a self-contained chat backend for local development and
// integration tests.
//
// Endpoints:
//   - POST   /conversations              - single-shot answer
//   - POST   /conversations/stream       - NDJSON streamed answer
//   - GET    /conversations              - list conversations
//   - GET    /conversations/{id}         - conversation history
//   - DELETE /conversations/{id}         - delete a conversation
//   - GET    /api/v1/llm-providers       - provider catalog
//   - GET    /api/v1/tools               - tool catalog
//   - GET    /health                     - health check
//
// Streamed responses carry the conversation identity in a response header
// and honor the request's stream_settings cadence hint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
	"github.com/shaharia-lab/mcpchat/internal/telemetry"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr listens on the port the client expects by default.
	DefaultAddr = "127.0.0.1:8081"

	// DefaultChunkSize is the number of runes per frame without a hint.
	DefaultChunkSize = 4

	// MaxRequestBodySize bounds request bodies (1MB).
	MaxRequestBodySize = 1 << 20

	// MaxQueryLength bounds a single question, in bytes.
	MaxQueryLength = 100000

	// maxDelay caps the per-frame delay a client may ask for.
	maxDelay = 5 * time.Second

	// Version is the server version.
	Version = "0.3.0"
)

// ============================================================================
// CONFIG
// ============================================================================

// Faults injects stream defects for exercising client tolerance.
type Faults struct {
	// MalformedFrame inserts a non-JSON frame after the first content frame.
	MalformedFrame bool
	// OmitDone ends the body without the done marker.
	OmitDone bool
	// TrailingAfterDone writes a content frame after the done marker.
	TrailingAfterDone bool
}

// Config configures a Server.
type Config struct {
	Addr string
	// Token, when set, is required as a bearer credential.
	Token          string
	IdentityHeader string
	Responder      Responder
	Providers      []chatapi.ProviderInfo
	Tools          []chatapi.ToolInfo
	// ChunkSize is used when a stream request carries no hint.
	ChunkSize int
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit int
	Faults    Faults
	Logger    logrus.FieldLogger
}

// DefaultConfig returns a config serving the echo responder.
func DefaultConfig() Config {
	return Config{
		Addr:           DefaultAddr,
		IdentityHeader: chatapi.DefaultIdentityHeader,
		Responder:      EchoResponder{},
		Providers: []chatapi.ProviderInfo{
			{Name: "Anthropic", Models: []string{"claude-3-5-sonnet", "claude-3-5-haiku"}},
			{Name: "OpenAI", Models: []string{"gpt-4o", "gpt-4o-mini"}},
		},
		Tools: []chatapi.ToolInfo{
			{Name: "search", Description: "Search the web"},
			{Name: "fetch", Description: "Fetch a URL and return its text"},
		},
		ChunkSize: DefaultChunkSize,
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the reference chat backend.
type Server struct {
	cfg    Config
	logger logrus.FieldLogger
	store  *memoryStore
	router chi.Router
	server *http.Server
}

// New creates a Server. Zero fields of cfg take DefaultConfig values,
// except Providers and Tools which may be deliberately empty.
func New(cfg Config) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.IdentityHeader == "" {
		cfg.IdentityHeader = def.IdentityHeader
	}
	if cfg.Responder == nil {
		cfg.Responder = def.Responder
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard()
	}

	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		store:  newMemoryStore(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(SecurityHeadersMiddleware())
	r.Use(LoggingMiddleware(s.logger))
	if s.cfg.RateLimit > 0 {
		r.Use(RateLimitMiddleware(NewRateLimiter(s.cfg.RateLimit, s.cfg.RateLimit), s.logger))
	}

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.Token, s.logger))

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", s.handleAsk)
			r.Get("/", s.handleList)
			r.Post("/stream", s.handleStream)
			r.Get("/{id}", s.handleHistory)
			r.Delete("/{id}", s.handleDelete)
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/llm-providers", s.handleProviders)
			r.Get("/tools", s.handleTools)
		})
	})

	s.router = r
}

// ============================================================================
// EXCHANGE HANDLERS
// ============================================================================

// exchange is a validated question bound to a conversation.
type exchange struct {
	conversationID string
	payload        chatapi.Payload
	history        []chatapi.HistoryMessage
}

// prepare decodes and validates the payload, then resolves or creates the
// conversation. It writes the error response itself and returns false.
func (s *Server) prepare(w http.ResponseWriter, r *http.Request) (exchange, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var p chatapi.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		if requestTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", MaxRequestBodySize))
			return exchange{}, false
		}
		s.logger.WithError(err).Debug("invalid request body")
		writeError(w, http.StatusBadRequest, "invalid request format")
		return exchange{}, false
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "question is required")
		return exchange{}, false
	}
	if len(p.Question()) > MaxQueryLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("question exceeds %d bytes", MaxQueryLength))
		return exchange{}, false
	}
	if msg := s.checkCatalog(p); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return exchange{}, false
	}

	ex := exchange{payload: p, conversationID: p.ConversationID()}
	if ex.conversationID == "" {
		ex.conversationID = s.store.create(p.Question())
	} else {
		history, ok := s.store.history(ex.conversationID)
		if !ok {
			writeError(w, http.StatusNotFound, "conversation not found")
			return exchange{}, false
		}
		ex.history = history
	}
	return ex, true
}

// checkCatalog rejects providers, models and tools the server does not offer.
func (s *Server) checkCatalog(p chatapi.Payload) string {
	if sel, ok := p.Provider(); ok {
		found := false
		for _, info := range s.cfg.Providers {
			if strings.EqualFold(info.Name, sel.Provider) {
				if sel.ModelID != "" && !info.HasModel(sel.ModelID) {
					return fmt.Sprintf("unknown model %q for provider %q", sel.ModelID, sel.Provider)
				}
				found = true
				break
			}
		}
		if !found {
			return fmt.Sprintf("unknown provider %q", sel.Provider)
		}
	}
	for _, tool := range p.Tools() {
		known := false
		for _, info := range s.cfg.Tools {
			if info.Name == tool {
				known = true
				break
			}
		}
		if !known {
			return fmt.Sprintf("unknown tool %q", tool)
		}
	}
	return ""
}

func (s *Server) respond(ctx context.Context, ex exchange) (string, error) {
	sel, _ := ex.payload.Provider()
	return s.cfg.Responder.Respond(ctx, Request{
		ConversationID: ex.conversationID,
		Question:       ex.payload.Question(),
		History:        ex.history,
		Settings:       ex.payload.ModelSettings(),
		Provider:       sel,
		Tools:          ex.payload.Tools(),
	})
}

// handleAsk handles POST /conversations.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ex, ok := s.prepare(w, r)
	if !ok {
		return
	}

	answer, err := s.respond(r.Context(), ex)
	if err != nil {
		s.logger.WithError(err).WithField("conversation", ex.conversationID).Warn("RESPONDER_FAILED")
		writeError(w, http.StatusBadGateway, "responder failed")
		return
	}

	question := ex.payload.Question()
	s.store.append(ex.conversationID,
		chatapi.HistoryMessage{Text: question, IsUser: true},
		chatapi.HistoryMessage{Text: answer},
	)

	writeJSON(w, http.StatusOK, chatapi.SyncResponse{
		ConversationID: ex.conversationID,
		Answer:         answer,
		Usage: chatapi.Usage{
			InputTokens:  countTokens(question),
			OutputTokens: countTokens(answer),
		},
	})
}

// handleStream handles POST /conversations/stream.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ex, ok := s.prepare(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	answer, err := s.respond(ctx, ex)
	if err != nil {
		s.logger.WithError(err).WithField("conversation", ex.conversationID).Warn("RESPONDER_FAILED")
		writeError(w, http.StatusBadGateway, "responder failed")
		return
	}

	chunkSize, delay := s.cfg.ChunkSize, time.Duration(0)
	if hint, ok := ex.payload.StreamingHint(); ok {
		if hint.ChunkSize > 0 {
			chunkSize = hint.ChunkSize
		}
		delay = min(time.Duration(hint.DelayMs)*time.Millisecond, maxDelay)
	}

	s.store.append(ex.conversationID, chatapi.HistoryMessage{Text: ex.payload.Question(), IsUser: true})

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set(s.cfg.IdentityHeader, ex.conversationID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := s.logger.WithFields(logrus.Fields{
		"conversation": ex.conversationID,
		"chunk_size":   chunkSize,
		"delay":        delay,
	})
	log.Debug(telemetry.EventStreamOpen)

	enc := json.NewEncoder(w)
	for i, part := range splitRunes(answer, chunkSize) {
		if i > 0 && !sleepCtx(ctx, delay) {
			log.Debug(telemetry.EventRequestCancelled)
			return
		}
		if err := enc.Encode(frame{Content: part}); err != nil {
			return
		}
		if i == 0 && s.cfg.Faults.MalformedFrame {
			_, _ = w.Write([]byte("not-json\n"))
		}
		flusher.Flush()
	}

	// Stored before the done frame so a follow-up request sees the answer.
	s.store.append(ex.conversationID, chatapi.HistoryMessage{Text: answer})

	if !s.cfg.Faults.OmitDone {
		_ = enc.Encode(frame{Content: "", Done: true})
	}
	if s.cfg.Faults.TrailingAfterDone {
		_ = enc.Encode(frame{Content: " (after done)"})
	}
	flusher.Flush()
	log.Debug(telemetry.EventStreamClose)
}

// frame is one NDJSON line of a streamed answer.
type frame struct {
	Content string `json:"content"`
	Done    bool   `json:"done,omitempty"`
}

// ============================================================================
// CONVERSATION HANDLERS
// ============================================================================

// handleList handles GET /conversations.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.list())
}

// handleHistory handles GET /conversations/{id}.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msgs, ok := s.store.history(id)
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if msgs == nil {
		msgs = []chatapi.HistoryMessage{}
	}
	writeJSON(w, http.StatusOK, chatapi.Conversation{ID: id, Messages: msgs})
}

// handleDelete handles DELETE /conversations/{id}.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.store.delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// CATALOG HANDLERS
// ============================================================================

// handleProviders handles GET /api/v1/llm-providers.
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	providers := s.cfg.Providers
	if providers == nil {
		providers = []chatapi.ProviderInfo{}
	}
	writeJSON(w, http.StatusOK, chatapi.ProvidersResponse{Providers: providers})
}

// handleTools handles GET /api/v1/tools.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	tools := s.cfg.Tools
	if tools == nil {
		tools = []chatapi.ToolInfo{}
	}
	writeJSON(w, http.StatusOK, tools)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version})
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(logrus.Fields{"addr": s.cfg.Addr, "version": Version}).Info("SERVER_START")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("SERVER_SHUTDOWN")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, chatapi.ErrorBody{Error: message})
}

// splitRunes cuts s into pieces of at most n runes. An empty s yields no pieces.
func splitRunes(s string, n int) []string {
	runes := []rune(s)
	if n <= 0 {
		n = 1
	}
	parts := make([]string, 0, len(runes)/n+1)
	for len(runes) > 0 {
		k := min(n, len(runes))
		parts = append(parts, string(runes[:k]))
		runes = runes[k:]
	}
	return parts
}

// sleepCtx waits d or until ctx is done, reporting whether the wait completed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// countTokens approximates a token count by whitespace-separated words.
func countTokens(s string) int {
	return len(strings.Fields(s))
}
