// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
	"github.com/shaharia-lab/mcpchat/internal/transcript"
	"github.com/shaharia-lab/mcpchat/internal/util"
)

// =============================================================================
// STORED CONVERSATION TYPE
// =============================================================================

// StoredConversation is a persisted conversation.
type StoredConversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []StoredMessage `json:"messages"`
}

// StoredMessage is one persisted transcript entry.
type StoredMessage struct {
	Content string `json:"content"`
	IsUser  bool   `json:"is_user"`
}

// ConversationMeta is the listing view of a stored conversation.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Entries converts the stored messages to transcript entries.
func (c *StoredConversation) Entries() []transcript.Entry {
	out := make([]transcript.Entry, len(c.Messages))
	for i, m := range c.Messages {
		out[i] = transcript.Entry{Content: m.Content, IsUser: m.IsUser}
	}
	return out
}

// Transcript returns the conversation as a transcript snapshot.
func (c *StoredConversation) Transcript() transcript.Transcript {
	return transcript.New(c.ID, c.Entries())
}

// MessageCount returns the number of messages in the conversation.
func (c *StoredConversation) MessageCount() int {
	return len(c.Messages)
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// DefaultMaxConversations is used when the store is created with a zero limit.
const DefaultMaxConversations = 200

// ConversationStore handles conversation persistence.
type ConversationStore struct {
	// BaseDir holds one <id>.json file per conversation
	BaseDir string

	// MaxConversations limits stored conversations, oldest pruned first (0 = unlimited)
	MaxConversations int

	mu sync.Mutex
}

// NewConversationStore creates a store rooted at baseDir. A negative max
// disables pruning; zero selects DefaultMaxConversations.
func NewConversationStore(baseDir string, max int) (*ConversationStore, error) {
	if baseDir == "" {
		return nil, errors.New("storage: empty base directory")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}
	switch {
	case max == 0:
		max = DefaultMaxConversations
	case max < 0:
		max = 0
	}
	return &ConversationStore{
		BaseDir:          baseDir,
		MaxConversations: max,
	}, nil
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save persists a conversation and returns its ID. A missing ID is generated.
func (s *ConversationStore) Save(conv *StoredConversation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(conv)
}

func (s *ConversationStore) saveLocked(conv *StoredConversation) (string, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if err := validateID(conv.ID); err != nil {
		return "", err
	}
	if conv.Title == "" {
		conv.Title = titleOf(conv.Messages)
	}

	conv.UpdatedAt = time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return "", err
	}
	if err := util.AtomicWriteFile(s.filePath(conv.ID), data, 0600); err != nil {
		return "", err
	}

	if s.MaxConversations > 0 {
		s.enforceLimit()
	}
	return conv.ID, nil
}

// SaveTranscript stores a transcript snapshot under its conversation
// identity, keeping the original creation time.
func (s *ConversationStore) SaveTranscript(t transcript.Transcript) error {
	if t.ConversationID == "" {
		return ErrMissingIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &StoredConversation{ID: t.ConversationID}
	if prev, err := s.load(t.ConversationID); err == nil {
		conv.CreatedAt = prev.CreatedAt
	}
	for _, e := range t.Entries() {
		conv.Messages = append(conv.Messages, StoredMessage{Content: e.Content, IsUser: e.IsUser})
	}
	_, err := s.saveLocked(conv)
	return err
}

// titleOf derives a one-line title from the first user message.
func titleOf(msgs []StoredMessage) string {
	for _, m := range msgs {
		if m.IsUser && strings.TrimSpace(m.Content) != "" {
			return util.TruncateRunes(util.SingleLine(m.Content), 50)
		}
	}
	return "New conversation"
}

// enforceLimit removes the least recently updated conversations.
func (s *ConversationStore) enforceLimit() {
	metas, err := s.list()
	if err != nil || len(metas) <= s.MaxConversations {
		return
	}
	// list is newest first
	for _, m := range metas[s.MaxConversations:] {
		_ = os.Remove(s.filePath(m.ID))
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a conversation by ID.
func (s *ConversationStore) Load(id string) (*StoredConversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

func (s *ConversationStore) load(id string) (*StoredConversation, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	var conv StoredConversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return &conv, nil
}

// LoadHistory returns a stored conversation in the backend's history shape.
func (s *ConversationStore) LoadHistory(ctx context.Context, conversationID string) (*chatapi.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conv, err := s.Load(conversationID)
	if err != nil {
		return nil, err
	}
	out := &chatapi.Conversation{ID: conv.ID, Messages: make([]chatapi.HistoryMessage, len(conv.Messages))}
	for i, m := range conv.Messages {
		out.Messages[i] = chatapi.HistoryMessage{Text: m.Content, IsUser: m.IsUser}
	}
	return out, nil
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns all saved conversations, most recently updated first.
func (s *ConversationStore) List() ([]ConversationMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list()
}

func (s *ConversationStore) list() ([]ConversationMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ConversationMeta{}, nil
		}
		return nil, err
	}

	metas := make([]ConversationMeta, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		conv, err := s.load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue // corrupted or foreign file
		}
		metas = append(metas, ConversationMeta{
			ID:           conv.ID,
			Title:        conv.Title,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: len(conv.Messages),
		})
	}

	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Search returns conversations whose title or messages contain query,
// case-insensitively. An empty query lists everything.
func (s *ConversationStore) Search(query string) ([]ConversationMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.list()
	if err != nil || query == "" {
		return all, err
	}

	query = strings.ToLower(query)
	var results []ConversationMeta
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Title), query) {
			results = append(results, meta)
			continue
		}
		conv, err := s.load(meta.ID)
		if err != nil {
			continue
		}
		for _, m := range conv.Messages {
			if strings.Contains(strings.ToLower(m.Content), query) {
				results = append(results, meta)
				break
			}
		}
	}
	return results, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a conversation by ID.
func (s *ConversationStore) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}

// Clear removes all saved conversations.
func (s *ConversationStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			_ = os.Remove(filepath.Join(s.BaseDir, entry.Name()))
		}
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func (s *ConversationStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

// validateID rejects identities that cannot be used as a file name.
// SECURITY: identities come from the backend and must not escape BaseDir.
func validateID(id string) error {
	if id == "" || id == "." || id == ".." || len(id) > 200 ||
		strings.ContainsAny(id, `/\:`) || strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConversationNotFound is returned when a conversation doesn't exist.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMissingIdentity is returned when saving a transcript with no identity.
	ErrMissingIdentity = errors.New("transcript has no conversation identity")

	// ErrInvalidID is returned for identities that are unsafe as file names.
	ErrInvalidID = errors.New("invalid conversation id")
)

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatList renders conversations as a fixed-width table.
func FormatList(metas []ConversationMeta) string {
	if len(metas) == 0 {
		return "No saved conversations."
	}

	var sb strings.Builder
	sb.WriteString(formatPadded("ID", 36) + "  " + formatPadded("Updated", 16) + "  " + formatPadded("Msgs", 4) + "  Title\n")
	for _, m := range metas {
		sb.WriteString(formatPadded(m.ID, 36) + "  " +
			formatPadded(m.UpdatedAt.Format("2006-01-02 15:04"), 16) + "  " +
			formatPadded(fmt.Sprint(m.MessageCount), 4) + "  " +
			util.TruncateWidth(m.Title, 40) + "\n")
	}
	return sb.String()
}

// formatPadded pads s with spaces to width terminal columns.
func formatPadded(s string, width int) string {
	if w := util.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// ExportMarkdown renders the conversation as Markdown.
func (c *StoredConversation) ExportMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# " + c.Title + "\n\n")
	sb.WriteString("Conversation: `" + c.ID + "`  \n")
	sb.WriteString("Updated: " + c.UpdatedAt.Format(time.RFC3339) + "\n\n---\n\n")
	for _, m := range c.Messages {
		role := "**Assistant**"
		if m.IsUser {
			role = "**User**"
		}
		sb.WriteString(role + ":\n\n" + m.Content + "\n\n---\n\n")
	}
	return sb.String()
}
