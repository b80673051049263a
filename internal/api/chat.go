package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/avylis/leadchat/internal/chat"
	"github.com/avylis/leadchat/internal/domain"
	"github.com/avylis/leadchat/internal/store"
)

// maxRequestBodySize limits chat request bodies (1MB).
const maxRequestBodySize = 1 << 20

// chatRequest accepts either a single message or a full message list. When a
// list is present, its final entry is the inbound turn and any earlier
// entries seed an empty session's history.
type chatRequest struct {
	Message  string `json:"message,omitempty"`
	Messages []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages,omitempty"`
}

// chatResponse always carries a response string. Error marks handled
// failures (the HTTP status stays 200 for those so the widget never sees a
// raw 500; only malformed input is rejected with a 4xx).
type chatResponse struct {
	Response string `json:"response"`
	Notice   string `json:"notice,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HandleChat handles POST /chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	content, seed, ok := parseChatRequest(req)
	if !ok {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	sessionID := SessionIDFromContext(r.Context())
	sess := h.sessions.GetOrCreate(sessionID)
	if len(seed) > 0 {
		sess.Seed(seed)
	}

	slog.Info("Chat request",
		"session_id", sessionID,
		"message_length", len(content.Text()),
	)

	result, err := h.turner.Turn(r.Context(), sess, content)
	if err != nil {
		h.writeTurnError(w, sessionID, result, err)
		return
	}

	JSON(w, http.StatusOK, chatResponse{
		Response: result.Reply,
		Notice:   result.Notice,
	})
}

// writeTurnError converts turn-handler failures into structured payloads.
// Upstream failures stay HTTP 200 with an error-marked reply string.
func (h *Handler) writeTurnError(w http.ResponseWriter, sessionID string, result *chat.TurnResult, err error) {
	if chat.IsUpstream(err) {
		slog.Warn("Upstream failure surfaced to caller", "session_id", sessionID, "error", err)
		resp := chatResponse{
			Response: chat.UnavailableReply,
			Error:    "upstream_error",
		}
		if result != nil {
			resp.Notice = result.Notice
		}
		JSON(w, http.StatusOK, resp)
		return
	}

	var vErr *store.ValidationError
	if errors.As(err, &vErr) {
		Error(w, http.StatusUnprocessableEntity, vErr.Error())
		return
	}

	slog.Error("Chat turn failed", "session_id", sessionID, "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}

// parseChatRequest extracts the inbound turn and optional seed history from
// the request payload.
func parseChatRequest(req chatRequest) (content domain.Content, seed []domain.Message, ok bool) {
	if len(req.Messages) > 0 {
		last := req.Messages[len(req.Messages)-1]
		content, ok = decodeContent(last.Content)
		if !ok {
			return domain.Content{}, nil, false
		}
		for _, m := range req.Messages[:len(req.Messages)-1] {
			role := domain.Role(m.Role)
			if !role.Valid() {
				continue
			}
			c, cok := decodeContent(m.Content)
			if !cok {
				continue
			}
			seed = append(seed, domain.Message{Role: role, Content: c.Text()})
		}
		return content, seed, true
	}

	if strings.TrimSpace(req.Message) == "" {
		return domain.Content{}, nil, false
	}
	return domain.TextContent(req.Message), nil, true
}

// decodeContent maps a JSON payload onto the text/structured content union.
func decodeContent(raw json.RawMessage) (domain.Content, bool) {
	if len(raw) == 0 {
		return domain.Content{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return domain.Content{}, false
		}
		return domain.TextContent(s), true
	}
	if !json.Valid(raw) {
		return domain.Content{}, false
	}
	return domain.StructuredContent(raw), true
}
