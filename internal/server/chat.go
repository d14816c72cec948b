package server

import (
	"sync"
	"time"

	"github.com/trendsage/trendsage/internal/api"
)

// chatEntry is one bubble of a chat transcript.
type chatEntry struct {
	Role    string // "user" or "assistant"
	Content string
	SentAt  time.Time
}

// chatRegistry keeps per-article chat transcripts in memory for the
// lifetime of the process. Transcripts are never persisted.
type chatRegistry struct {
	mu   sync.Mutex
	logs map[string][]chatEntry
}

func newChatRegistry() *chatRegistry {
	return &chatRegistry{logs: make(map[string][]chatEntry)}
}

// ensureGreeting seeds a transcript with the assistant's opening message if
// the transcript is empty, and returns the current entries.
func (c *chatRegistry) ensureGreeting(articleID, articleTitle string) []chatEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.logs[articleID]) == 0 {
		c.logs[articleID] = []chatEntry{{
			Role:    "assistant",
			Content: "Hello! I'm the TrendSage assistant. I can answer questions about \"" + articleTitle + "\". What would you like to know?",
			SentAt:  time.Now(),
		}}
	}
	return append([]chatEntry(nil), c.logs[articleID]...)
}

// history returns the transcript in API message form.
func (c *chatRegistry) history(articleID string) []api.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.logs[articleID]
	msgs := make([]api.ChatMessage, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, api.ChatMessage{Role: e.Role, Content: e.Content})
	}
	return msgs
}

func (c *chatRegistry) append(articleID, role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs[articleID] = append(c.logs[articleID], chatEntry{
		Role:    role,
		Content: content,
		SentAt:  time.Now(),
	})
}

func (c *chatRegistry) entries(articleID string) []chatEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chatEntry(nil), c.logs[articleID]...)
}
