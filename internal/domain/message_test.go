package domain

import (
	"encoding/json"
	"testing"
)

func TestRoleValid(t *testing.T) {
	if !RoleUser.Valid() || !RoleAssistant.Valid() {
		t.Error("canonical roles reported invalid")
	}
	for _, r := range []Role{"system", "tool", "", "User"} {
		if r.Valid() {
			t.Errorf("role %q reported valid", r)
		}
	}
}

func TestTextContent(t *testing.T) {
	c := TextContent("hello")
	if c.IsStructured() {
		t.Error("text content reported structured")
	}
	if c.Text() != "hello" {
		t.Errorf("Text() = %q", c.Text())
	}
}

func TestStructuredContent(t *testing.T) {
	c := StructuredContent(json.RawMessage(`{ "a": 1,  "b": [2, 3] }`))
	if !c.IsStructured() {
		t.Error("structured content not reported structured")
	}
	if got := c.Text(); got != `{"a":1,"b":[2,3]}` {
		t.Errorf("Text() = %q, want compact JSON", got)
	}
}

func TestStructuredContentInvalidJSON(t *testing.T) {
	// Malformed payloads still serialize to something rather than dropping
	// the turn.
	c := StructuredContent(json.RawMessage(`{broken`))
	if c.Text() != `{broken` {
		t.Errorf("Text() = %q, want raw passthrough", c.Text())
	}
}
