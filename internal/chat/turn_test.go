package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/avylis/leadchat/internal/agent"
	"github.com/avylis/leadchat/internal/domain"
	"github.com/avylis/leadchat/internal/session"
	"github.com/avylis/leadchat/internal/store"
)

// fakeReplier echoes the latest user message, or fails when failing is set.
type fakeReplier struct {
	failing bool
	calls   int
}

func (f *fakeReplier) Reply(_ context.Context, history []domain.Message) (string, []domain.Message, error) {
	f.calls++
	if f.failing {
		return "", nil, &agent.UpstreamError{Err: errors.New("connection refused")}
	}
	last := history[len(history)-1]
	text := fmt.Sprintf("echo: %s", last.Content)
	canonical := append(append([]domain.Message{}, history...), domain.Message{
		Role:    domain.RoleAssistant,
		Content: text,
	})
	return text, canonical, nil
}

func newTestTurner(t *testing.T, replier Replier) (*Turner, store.Repository) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewTurner(replier, repo, KeywordExtractor{}), repo
}

func messageCount(t *testing.T, repo store.Repository) int64 {
	t.Helper()
	n, err := repo.CountMessages(context.Background())
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	return n
}

func TestTurnPersistsExchange(t *testing.T) {
	turner, repo := newTestTurner(t, &fakeReplier{})
	sess := &session.Session{ID: "s1"}

	result, err := turner.Turn(context.Background(), sess, domain.TextContent("Hello"))
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if result.Reply != "echo: Hello" {
		t.Errorf("unexpected reply %q", result.Reply)
	}
	if result.Notice != "" {
		t.Errorf("no qualifying keywords, got notice %q", result.Notice)
	}
	if result.IntakeID != nil {
		t.Errorf("no qualifying keywords, got intake %v", *result.IntakeID)
	}

	// Exactly two rows, user then assistant, both without an intake
	// reference.
	msgs, err := repo.ListMessages(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 rows per turn, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[0].Content != "Hello" {
		t.Errorf("user row mismatch: %+v", msgs[0])
	}
	if msgs[1].Role != domain.RoleAssistant || msgs[1].Content != "echo: Hello" {
		t.Errorf("assistant row mismatch: %+v", msgs[1])
	}
}

func TestTurnHistoryGrowth(t *testing.T) {
	turner, _ := newTestTurner(t, &fakeReplier{})
	sess := &session.Session{ID: "s1"}

	const turns = 3
	for i := 0; i < turns; i++ {
		if _, err := turner.Turn(context.Background(), sess, domain.TextContent(fmt.Sprintf("msg %d", i))); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}

	if got := len(sess.History()); got < 2*turns {
		t.Errorf("history after %d turns has %d entries, want >= %d", turns, got, 2*turns)
	}
}

func TestTurnIntakeCreatedOnce(t *testing.T) {
	turner, repo := newTestTurner(t, &fakeReplier{})
	sess := &session.Session{ID: "s1"}
	ctx := context.Background()

	qualifying := "Hi, my name is Ali and my phone is 0300 1234567"

	first, err := turner.Turn(ctx, sess, domain.TextContent(qualifying))
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if first.IntakeID == nil {
		t.Fatal("qualifying turn did not create an intake")
	}
	if first.Notice == "" {
		t.Error("qualifying turn did not emit confirmation notice")
	}

	intake, err := repo.GetIntake(ctx, *first.IntakeID)
	if err != nil || intake == nil {
		t.Fatalf("stored intake not readable: %v, %v", intake, err)
	}
	if intake.Name != "Ali" {
		t.Errorf("extracted name %q, want Ali", intake.Name)
	}

	// Later qualifying messages must reuse the same intake and emit no
	// further notice.
	for i := 0; i < 2; i++ {
		res, err := turner.Turn(ctx, sess, domain.TextContent(qualifying))
		if err != nil {
			t.Fatalf("repeat turn %d: %v", i, err)
		}
		if res.Notice != "" {
			t.Errorf("repeat turn %d emitted notice %q", i, res.Notice)
		}
		if res.IntakeID == nil || *res.IntakeID != *first.IntakeID {
			t.Errorf("repeat turn %d intake = %v, want %s", i, res.IntakeID, *first.IntakeID)
		}
	}

	msgs, err := repo.ListMessages(ctx, first.IntakeID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	for _, m := range msgs {
		if m.IntakeID == nil || *m.IntakeID != *first.IntakeID {
			t.Errorf("message %d not linked to session intake: %+v", m.ID, m)
		}
	}
	if len(msgs) != 6 {
		t.Errorf("expected 6 linked rows after 3 turns, got %d", len(msgs))
	}
}

func TestTurnUpstreamFailure(t *testing.T) {
	replier := &fakeReplier{failing: true}
	turner, repo := newTestTurner(t, replier)
	sess := &session.Session{ID: "s1"}

	result, err := turner.Turn(context.Background(), sess, domain.TextContent("Hello"))
	if err == nil {
		t.Fatal("expected error from failing provider")
	}
	if !IsUpstream(err) {
		t.Errorf("expected upstream error, got %v", err)
	}
	if result == nil {
		t.Fatal("expected partial result alongside error")
	}

	// Nothing persisted for the failed turn.
	if n := messageCount(t, repo); n != 0 {
		t.Errorf("failed turn persisted %d rows, want 0", n)
	}

	// The user turn stays in history so the next attempt retries with full
	// context.
	history := sess.History()
	if len(history) != 1 || history[0].Content != "Hello" {
		t.Fatalf("history after failed turn = %+v, want the appended user turn", history)
	}

	// Recovery: the provider comes back and the retry sees prior context.
	replier.failing = false
	res, err := turner.Turn(context.Background(), sess, domain.TextContent("Are you there?"))
	if err != nil {
		t.Fatalf("recovery turn: %v", err)
	}
	if res.Reply == "" {
		t.Error("recovery turn returned empty reply")
	}
	if len(sess.History()) != 3 {
		t.Errorf("history after recovery = %d entries, want 3", len(sess.History()))
	}
}

func TestTurnIntakeSurvivesUpstreamFailure(t *testing.T) {
	replier := &fakeReplier{failing: true}
	turner, repo := newTestTurner(t, replier)
	sess := &session.Session{ID: "s1"}

	result, err := turner.Turn(context.Background(), sess,
		domain.TextContent("my name is Sara, phone 0312 7654321"))
	if err == nil {
		t.Fatal("expected upstream error")
	}
	if result.IntakeID == nil {
		t.Fatal("intake should be captured before the provider call")
	}
	if result.Notice == "" {
		t.Error("confirmation notice lost on failed turn")
	}

	intake, err := repo.GetIntake(context.Background(), *result.IntakeID)
	if err != nil || intake == nil {
		t.Fatalf("intake not durable: %v, %v", intake, err)
	}
}
