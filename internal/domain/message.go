package domain

import (
	"bytes"
	"encoding/json"
)

// Role tags a message turn as coming from the user or the assistant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two persistable roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one in-memory turn of a session's conversation history.
// It is the unit the agent gateway consumes and returns; persisted turns
// are ChatMessage rows.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Content is a message payload that is either plain text or an opaque
// structured value. Structured payloads survive unchanged in memory and are
// serialized to text only at the persistence boundary.
type Content struct {
	text       string
	structured json.RawMessage
}

// TextContent wraps a plain-text payload.
func TextContent(s string) Content {
	return Content{text: s}
}

// StructuredContent wraps an opaque JSON payload.
func StructuredContent(raw json.RawMessage) Content {
	return Content{structured: raw}
}

// IsStructured reports whether the payload carries a structured value.
func (c Content) IsStructured() bool {
	return c.structured != nil
}

// Text returns the payload as text. Structured values are serialized to
// their compact JSON form.
func (c Content) Text() string {
	if c.structured != nil {
		var buf bytes.Buffer
		if err := json.Compact(&buf, c.structured); err == nil {
			return buf.String()
		}
		return string(c.structured)
	}
	return c.text
}
