// Package sessionstore implements durable, JSON-per-session storage
// with a content-addressed attachment directory: one directory per
// session holding session.json and attachments/, written atomically so
// the file is always valid JSON or atomically replaced.
package sessionstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of message roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Attachment is a stored binary attachment reference.
type Attachment struct {
	OriginalFileName string `json:"originalFileName"`
	MediaType        string `json:"mediaType"`
	SizeBytes        int64  `json:"sizeBytes"`
	ContentHash      string `json:"contentHash"`
	StoredFileName   string `json:"storedFileName"`
	MessageIndex     int    `json:"messageIndex"`
}

// Message is one entry in a session's history.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// UsageMetrics accumulates token usage across a session's lifetime.
type UsageMetrics struct {
	InputTokens        int  `json:"inputTokens"`
	OutputTokens       int  `json:"outputTokens"`
	CacheReadTokens    *int `json:"cacheReadTokens,omitempty"`
	CacheWriteTokens   *int `json:"cacheWriteTokens,omitempty"`
}

// Session is the full persisted state of one conversation.
type Session struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	CreatedAt      time.Time    `json:"createdAt"`
	LastModifiedAt time.Time    `json:"lastModifiedAt"`
	UsageMetrics   UsageMetrics `json:"usageMetrics"`
	History        []Message    `json:"history"`
}

// newSessionID returns a fresh UUIDv7, whose lexical order
// approximates creation order.
func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the global RNG is misconfigured;
		// fall back to a random v4 rather than panic mid-session.
		return uuid.NewString()
	}
	return id.String()
}

// newSession builds a fresh, empty Session.
func newSession() Session {
	id := newSessionID()
	now := time.Now().UTC()
	suffix := id
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return Session{
		ID:             id,
		Name:           "Chat " + suffix,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
}

// marshal renders a Session as pretty-printed, newline-terminated
// JSON.
func marshal(s Session) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
