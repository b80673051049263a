// Package chat implements the per-turn orchestration between transport
// adapters, the agent gateway, and the transcript store.
package chat

import (
	"context"
	"errors"
	"log/slog"

	"github.com/avylis/leadchat/internal/agent"
	"github.com/avylis/leadchat/internal/domain"
	"github.com/avylis/leadchat/internal/session"
	"github.com/avylis/leadchat/internal/store"
)

// UnavailableReply is the caller-visible reply when the completion provider
// fails. Adapters return it with the error marker set instead of surfacing a
// raw failure.
const UnavailableReply = "⚠️ The assistant is temporarily unavailable. Please try again in a moment."

// intakeNotice is the one-time confirmation emitted when a session's intake
// record is captured.
const intakeNotice = "Thanks! I've noted your contact details — someone will follow up with you shortly."

// Replier is the agent gateway operation the turn handler depends on.
type Replier interface {
	Reply(ctx context.Context, history []domain.Message) (string, []domain.Message, error)
}

// TurnResult is the outcome of one successful chat turn.
type TurnResult struct {
	// Reply is the generated assistant text.
	Reply string
	// Notice is a one-time intake confirmation, empty on every turn except
	// the qualifying one.
	Notice string
	// IntakeID is the session's intake record, nil while none exists.
	IntakeID *string
}

// Turner handles one chat turn end to end: append the user message to the
// session history, ask the agent for a reply, persist the exchange, return
// the reply.
type Turner struct {
	gw        Replier
	repo      store.Repository
	extractor Extractor
}

// NewTurner creates a turn handler. A nil extractor disables intake capture.
func NewTurner(gw Replier, repo store.Repository, extractor Extractor) *Turner {
	return &Turner{gw: gw, repo: repo, extractor: extractor}
}

// Turn processes one inbound user message for the given session.
//
// On provider failure it returns a *agent.UpstreamError and persists
// nothing; the user turn stays in the session history so the next turn
// retries with full context. The partial TurnResult returned alongside the
// error still carries any intake notice produced this turn.
//
// A storage failure after a successful completion is logged and the reply is
// still returned; the transcript row for that turn is lost. There is no
// retry.
func (t *Turner) Turn(ctx context.Context, sess *session.Session, content domain.Content) (*TurnResult, error) {
	text := content.Text()
	result := &TurnResult{IntakeID: sess.IntakeID()}

	// Intake capture happens before the provider call so a slow or failing
	// provider cannot lose the contact details.
	if t.extractor != nil && result.IntakeID == nil && t.extractor.Detect(text) {
		t.captureIntake(ctx, sess, text, result)
	}

	history := sess.AppendUser(text)

	reply, canonical, err := t.gw.Reply(ctx, history)
	if err != nil {
		slog.Warn("Turn failed, exchange not persisted",
			"session_id", sess.ID,
			"error", err,
		)
		return result, err
	}

	sess.ReplaceHistory(canonical)
	result.Reply = reply

	t.persistExchange(ctx, sess, content, reply, result.IntakeID)

	return result, nil
}

func (t *Turner) captureIntake(ctx context.Context, sess *session.Session, text string, result *TurnResult) {
	intake := t.extractor.Extract(text)
	id, err := t.repo.CreateIntake(ctx, intake)
	if err != nil {
		var vErr *store.ValidationError
		if errors.As(err, &vErr) {
			slog.Warn("Intake rejected", "session_id", sess.ID, "error", err)
		} else {
			slog.Error("Intake write failed", "session_id", sess.ID, "error", err)
		}
		return
	}

	if !sess.SetIntakeID(id) {
		// Another request on the same session won the race; keep theirs.
		if delErr := t.repo.DeleteIntake(ctx, id); delErr != nil {
			slog.Error("Failed to remove duplicate intake", "intake_id", id, "error", delErr)
		}
		result.IntakeID = sess.IntakeID()
		return
	}

	slog.Info("Intake captured", "session_id", sess.ID, "intake_id", id)
	result.IntakeID = &id
	result.Notice = intakeNotice
}

// persistExchange writes the user and assistant turns. Failures are logged,
// not returned: the reply has already been generated and belongs to the
// caller either way.
func (t *Turner) persistExchange(ctx context.Context, sess *session.Session, userContent domain.Content, reply string, intakeID *string) {
	if err := t.repo.AppendMessage(ctx, intakeID, domain.RoleUser, userContent); err != nil {
		slog.Error("Failed to persist user turn", "session_id", sess.ID, "error", err)
		return
	}
	if err := t.repo.AppendMessage(ctx, intakeID, domain.RoleAssistant, domain.TextContent(reply)); err != nil {
		slog.Error("Failed to persist assistant turn", "session_id", sess.ID, "error", err)
	}
}

// IsUpstream reports whether err came from the completion provider.
func IsUpstream(err error) bool {
	var uErr *agent.UpstreamError
	return errors.As(err, &uErr)
}
