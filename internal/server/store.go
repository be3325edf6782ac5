// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaharia-lab/mcpchat/internal/chatapi"
	"github.com/shaharia-lab/mcpchat/internal/util"
)

// conversation is one stored exchange history.
type conversation struct {
	id        string
	title     string
	createdAt time.Time
	messages  []chatapi.HistoryMessage
}

// memoryStore keeps conversations for the lifetime of the process.
type memoryStore struct {
	mu    sync.RWMutex
	convs map[string]*conversation
}

func newMemoryStore() *memoryStore {
	return &memoryStore{convs: make(map[string]*conversation)}
}

// create starts a conversation titled after its first question.
func (m *memoryStore) create(question string) string {
	c := &conversation{
		id:        uuid.NewString(),
		title:     util.TruncateRunes(util.SingleLine(question), 60),
		createdAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.convs[c.id] = c
	m.mu.Unlock()
	return c.id
}

func (m *memoryStore) exists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.convs[id]
	return ok
}

// history returns a copy of the messages of id.
func (m *memoryStore) history(id string) ([]chatapi.HistoryMessage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, false
	}
	return append([]chatapi.HistoryMessage(nil), c.messages...), true
}

func (m *memoryStore) append(id string, msgs ...chatapi.HistoryMessage) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return false
	}
	c.messages = append(c.messages, msgs...)
	return true
}

// list returns summaries, newest first.
func (m *memoryStore) list() []chatapi.ConversationSummary {
	m.mu.RLock()
	out := make([]chatapi.ConversationSummary, 0, len(m.convs))
	for _, c := range m.convs {
		out = append(out, chatapi.ConversationSummary{ID: c.id, Title: c.title, CreatedAt: c.createdAt})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *memoryStore) delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[id]; !ok {
		return false
	}
	delete(m.convs, id)
	return true
}
