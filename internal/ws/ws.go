// Package ws provides the interactive chat-session adapter over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/avylis/leadchat/internal/agent"
	"github.com/avylis/leadchat/internal/api"
	"github.com/avylis/leadchat/internal/chat"
	"github.com/avylis/leadchat/internal/domain"
	"github.com/avylis/leadchat/internal/session"
)

// placeholderText is shown immediately while the agent works on a reply;
// the reply event that follows replaces it in place.
const placeholderText = "Thinking..."

// wsEvent is the server-to-client message shape. Turn ties a reply or error
// back to the placeholder it replaces.
type wsEvent struct {
	Type    string `json:"type"`
	Turn    int    `json:"turn,omitempty"`
	Content string `json:"content"`
}

// wsInbound is the client-to-server message shape.
type wsInbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Handler runs interactive chat sessions. Each connection owns one session:
// server-held history and intake state live for the life of the socket and
// are discarded when it closes.
type Handler struct {
	turner        *chat.Turner
	sessions      *session.Manager
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a new interactive chat handler.
func NewHandler(turner *chat.Turner, sessions *session.Manager, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		turner:        turner,
		sessions:      sessions,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := api.SessionIDFromContext(r.Context())
	if sessionID == "" {
		sessionID = session.NewID()
	}
	slog.Info("Interactive session request", "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	sess := h.sessions.GetOrCreate(sessionID)
	defer h.sessions.Delete(sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := h.writeEvent(ctx, conn, wsEvent{Type: "greeting", Content: agent.Greeting}); err != nil {
		slog.Debug("Failed to send greeting", "error", err, "session_id", sessionID)
		return
	}

	h.readLoop(ctx, conn, sess)
}

// readLoop processes inbound messages one at a time. The provider call
// itself is offloaded by the gateway, so a slow completion holds only this
// connection, never its peers.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	turn := 0
	for {
		var in wsInbound
		_, data, err := conn.Read(ctx)
		if err != nil {
			slog.Info("Interactive session closed", "session_id", sess.ID)
			return
		}
		if err := json.Unmarshal(data, &in); err != nil || in.Type != "message" || strings.TrimSpace(in.Content) == "" {
			if writeErr := h.writeEvent(ctx, conn, wsEvent{Type: "error", Content: "invalid message"}); writeErr != nil {
				return
			}
			continue
		}

		turn++
		if err := h.writeEvent(ctx, conn, wsEvent{Type: "placeholder", Turn: turn, Content: placeholderText}); err != nil {
			return
		}

		result, turnErr := h.turner.Turn(ctx, sess, domain.TextContent(in.Content))

		if result != nil && result.Notice != "" {
			if err := h.writeEvent(ctx, conn, wsEvent{Type: "notice", Turn: turn, Content: result.Notice}); err != nil {
				return
			}
		}

		if turnErr != nil {
			content := chat.UnavailableReply
			if !chat.IsUpstream(turnErr) {
				slog.Error("Interactive turn failed", "session_id", sess.ID, "error", turnErr)
				content = "Something went wrong handling that message."
			}
			if err := h.writeEvent(ctx, conn, wsEvent{Type: "error", Turn: turn, Content: content}); err != nil {
				return
			}
			continue
		}

		if err := h.writeEvent(ctx, conn, wsEvent{Type: "reply", Turn: turn, Content: result.Reply}); err != nil {
			return
		}
	}
}

func (h *Handler) writeEvent(ctx context.Context, conn *websocket.Conn, ev wsEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// checkOrigin validates the request origin against the configured frontend.
func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || strings.HasPrefix(origin, h.allowedOrigin)
}
