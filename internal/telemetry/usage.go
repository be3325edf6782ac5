// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaharia-lab/mcpchat/internal/util"
)

// =============================================================================
// USAGE TRACKER
// =============================================================================

// sessionIDCounter keeps IDs unique when sessions start in the same second.
var sessionIDCounter uint64

// maxRecentQueries is how many exchanges a session keeps in detail.
const maxRecentQueries = 20

// UsageTracker accumulates token counts reported by the backend for
// non-streaming exchanges. Streaming answers carry no usage, so they only
// bump the exchange count.
type UsageTracker struct {
	mu        sync.RWMutex
	current   *SessionUsage
	storage   *UsageStorage
	startedAt func() time.Time
}

// SessionUsage is the usage for one program run.
type SessionUsage struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`

	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	Exchanges    int `json:"exchanges"`
	Streamed     int `json:"streamed"`

	Recent []ExchangeUsage `json:"recent"`
}

// ExchangeUsage is one recorded exchange.
type ExchangeUsage struct {
	Timestamp      time.Time     `json:"timestamp"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Provider       string        `json:"provider,omitempty"`
	InputTokens    int           `json:"input_tokens"`
	OutputTokens   int           `json:"output_tokens"`
	Duration       time.Duration `json:"duration"`
	Streamed       bool          `json:"streamed"`
}

// TotalTokens returns input plus output tokens.
func (s *SessionUsage) TotalTokens() int {
	return s.InputTokens + s.OutputTokens
}

// NewUsageTracker creates a tracker. An empty dir keeps usage in memory only.
func NewUsageTracker(dir string) (*UsageTracker, error) {
	ut := &UsageTracker{startedAt: time.Now}
	if dir != "" {
		storage, err := NewUsageStorage(dir)
		if err != nil {
			return nil, err
		}
		ut.storage = storage
	}
	ut.current = newSessionUsage(ut.startedAt())
	return ut, nil
}

func newSessionUsage(now time.Time) *SessionUsage {
	return &SessionUsage{
		ID:        generateSessionID(now),
		StartTime: now,
		Recent:    make([]ExchangeUsage, 0),
	}
}

// Record adds one exchange.
func (ut *UsageTracker) Record(ex ExchangeUsage) {
	ut.mu.Lock()
	defer ut.mu.Unlock()

	if ex.Timestamp.IsZero() {
		ex.Timestamp = time.Now()
	}

	s := ut.current
	s.Exchanges++
	if ex.Streamed {
		s.Streamed++
	}
	s.InputTokens += ex.InputTokens
	s.OutputTokens += ex.OutputTokens

	s.Recent = append(s.Recent, ex)
	if len(s.Recent) > maxRecentQueries {
		s.Recent = s.Recent[len(s.Recent)-maxRecentQueries:]
	}
}

// Current returns a copy of the running session.
func (ut *UsageTracker) Current() *SessionUsage {
	ut.mu.RLock()
	defer ut.mu.RUnlock()
	return copySession(ut.current)
}

// EndSession saves the running session (if storage is configured) and
// starts a new one.
func (ut *UsageTracker) EndSession() error {
	ut.mu.Lock()
	defer ut.mu.Unlock()

	ut.current.EndTime = time.Now()
	if ut.storage != nil && ut.current.Exchanges > 0 {
		if err := ut.storage.Save(ut.current); err != nil {
			return err
		}
	}
	ut.current = newSessionUsage(ut.startedAt())
	return nil
}

// History returns stored sessions that started within [from, to].
func (ut *UsageTracker) History(from, to time.Time) []*SessionUsage {
	if ut.storage == nil {
		return nil
	}
	ids, err := ut.storage.List(from, to)
	if err != nil {
		return nil
	}
	sessions := make([]*SessionUsage, 0, len(ids))
	for _, id := range ids {
		s, err := ut.storage.Load(id)
		if err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions
}

func copySession(src *SessionUsage) *SessionUsage {
	dst := *src
	dst.Recent = make([]ExchangeUsage, len(src.Recent))
	copy(dst.Recent, src.Recent)
	return &dst
}

func generateSessionID(now time.Time) string {
	counter := atomic.AddUint64(&sessionIDCounter, 1)
	return fmt.Sprintf("%s-%d", now.Format("20060102-150405"), counter)
}

// =============================================================================
// USAGE STORAGE
// =============================================================================

// UsageStorage persists sessions as one JSON file each.
type UsageStorage struct {
	dir string
}

// NewUsageStorage creates dir if needed.
func NewUsageStorage(dir string) (*UsageStorage, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &UsageStorage{dir: dir}, nil
}

// Save writes a session atomically.
func (us *UsageStorage) Save(s *SessionUsage) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(filepath.Join(us.dir, s.ID+".json"), data, 0600)
}

// Load reads one session.
func (us *UsageStorage) Load(id string) (*SessionUsage, error) {
	data, err := os.ReadFile(filepath.Join(us.dir, id+".json"))
	if err != nil {
		return nil, err
	}
	var s SessionUsage
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns IDs of sessions whose timestamp prefix falls in [from, to],
// oldest first.
func (us *UsageStorage) List(from, to time.Time) ([]string, error) {
	entries, err := os.ReadDir(us.dir)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		ts, ok := sessionTime(id)
		if !ok || ts.Before(from) || ts.After(to) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// sessionTime parses the YYYYMMDD-HHMMSS prefix of a session ID.
func sessionTime(id string) (time.Time, bool) {
	parts := strings.SplitN(id, "-", 3)
	if len(parts) < 2 {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation("20060102-150405", parts[0]+"-"+parts[1], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
