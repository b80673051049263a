package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/avylis/leadchat/internal/domain"
)

// fakeCompleter records the request and returns a canned response.
type fakeCompleter struct {
	lastReq openai.ChatCompletionRequest
	resp    openai.ChatCompletionResponse
	err     error
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func completionWith(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: text}},
		},
	}
}

func TestReply(t *testing.T) {
	fake := &fakeCompleter{resp: completionWith("Happy to help!")}
	gw := NewWithCompleter(fake, "test-model")

	history := []domain.Message{
		{Role: domain.RoleUser, Content: "Hello"},
	}

	text, canonical, err := gw.Reply(context.Background(), history)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if text != "Happy to help!" {
		t.Errorf("text = %q", text)
	}

	// Canonical history is the input plus the assistant turn.
	if len(canonical) != 2 {
		t.Fatalf("canonical history length = %d, want 2", len(canonical))
	}
	if canonical[1].Role != domain.RoleAssistant || canonical[1].Content != "Happy to help!" {
		t.Errorf("assistant turn mismatch: %+v", canonical[1])
	}

	// The provider request carries the persona first, then the history.
	if fake.lastReq.Model != "test-model" {
		t.Errorf("model = %q", fake.lastReq.Model)
	}
	if len(fake.lastReq.Messages) != 2 {
		t.Fatalf("request messages = %d, want 2", len(fake.lastReq.Messages))
	}
	if fake.lastReq.Messages[0].Role != openai.ChatMessageRoleSystem || fake.lastReq.Messages[0].Content != instructions {
		t.Errorf("first request message is not the persona: %+v", fake.lastReq.Messages[0])
	}
	if fake.lastReq.Messages[1].Content != "Hello" {
		t.Errorf("history not forwarded: %+v", fake.lastReq.Messages[1])
	}
}

func TestReplyProviderError(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("dial tcp: connection refused")}
	gw := NewWithCompleter(fake, "test-model")

	_, _, err := gw.Reply(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}})
	var uErr *UpstreamError
	if !errors.As(err, &uErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestReplyEmptyChoices(t *testing.T) {
	fake := &fakeCompleter{resp: openai.ChatCompletionResponse{}}
	gw := NewWithCompleter(fake, "test-model")

	_, _, err := gw.Reply(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}})
	var uErr *UpstreamError
	if !errors.As(err, &uErr) {
		t.Fatalf("expected UpstreamError for empty choices, got %v", err)
	}
}

func TestReplyAsync(t *testing.T) {
	fake := &fakeCompleter{resp: completionWith("async ok")}
	gw := NewWithCompleter(fake, "test-model")

	ch := gw.ReplyAsync(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}})

	select {
	case res := <-ch:
		if res.Err != nil {
			t.Fatalf("ReplyAsync: %v", res.Err)
		}
		if res.Text != "async ok" {
			t.Errorf("text = %q", res.Text)
		}
		if len(res.History) != 2 {
			t.Errorf("canonical history length = %d, want 2", len(res.History))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ReplyAsync never delivered")
	}
}
