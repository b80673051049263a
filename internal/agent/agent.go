// Package agent wraps the hosted chat-completion provider behind a single
// statically configured conversational agent.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/avylis/leadchat/internal/config"
	"github.com/avylis/leadchat/internal/domain"
)

// AgentName is the fixed name of the configured agent.
const AgentName = "Avylis Business Assistant"

// Greeting is sent when an interactive session starts.
const Greeting = "Welcome! I am the Avylis business assistant. We build AI agents, " +
	"chatbots, automation and custom websites for businesses of every size — clinics, " +
	"shops, offices, schools, restaurants and more. How can I help you grow your business today?"

// instructions is the fixed persona and business rules for the agent.
// The agent both sells services and collects the intake details the rest of
// the system persists.
const instructions = `You are the Avylis Business Assistant, representing an AI solutions studio.

The studio builds AI agents, autonomous systems, chatbots, appointment booking bots,
business automation and custom websites for all types of businesses: clinics, hospitals,
markets, salons, shops, offices, schools, restaurants and more.

When talking with a customer:
- Be friendly, professional, persuasive and human-like.
- Keep responses short, meaningful and engaging.
- Offer concrete AI solutions for whatever business problem the customer describes.
- Collect the customer's details over the conversation: name, phone, email,
  business type, location, purpose, and how many days they need the work done in.
- Respond in the same language the customer writes in.`

// Completer is the subset of the completion-provider client the gateway
// uses. The production implementation is the OpenAI client; tests inject
// fakes.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// UpstreamError reports a completion-provider failure: unreachable, timed
// out, or malformed output. It is caught at the chat turn handler and never
// crashes the process.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion provider: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Result carries the outcome of an asynchronous reply.
type Result struct {
	Text    string
	History []domain.Message
	Err     error
}

// Gateway exposes the configured agent's single operation: turn a message
// history into a reply.
type Gateway struct {
	client Completer
	model  string
}

// New creates a gateway backed by the configured completion provider.
func New(cfg *config.Config) *Gateway {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	slog.Info("Agent configured", "name", AgentName, "model", cfg.Model)
	return &Gateway{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// NewWithCompleter creates a gateway over a custom completer. Used by tests.
func NewWithCompleter(client Completer, model string) *Gateway {
	return &Gateway{client: client, model: model}
}

// Reply sends the full history to the provider and blocks until a response
// arrives. It returns the generated text plus the canonical history with the
// assistant turn appended. Reply is a thin synchronous wrapper over
// ReplyAsync.
func (g *Gateway) Reply(ctx context.Context, history []domain.Message) (string, []domain.Message, error) {
	res := <-g.ReplyAsync(ctx, history)
	return res.Text, res.History, res.Err
}

// ReplyAsync runs the provider call on its own goroutine and delivers the
// result on the returned channel, so a cooperative loop (the websocket read
// loop) is never blocked on the provider.
func (g *Gateway) ReplyAsync(ctx context.Context, history []domain.Message) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		text, canonical, err := g.complete(ctx, history)
		ch <- Result{Text: text, History: canonical, Err: err}
	}()
	return ch
}

func (g *Gateway) complete(ctx context.Context, history []domain.Message) (string, []domain.Message, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: instructions,
	})
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: msgs,
	})
	if err != nil {
		slog.Error("Completion request failed", "model", g.model, "error", err)
		return "", nil, &UpstreamError{Err: err}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		slog.Error("Completion returned no choices", "model", g.model)
		return "", nil, &UpstreamError{Err: fmt.Errorf("empty completion")}
	}

	text := resp.Choices[0].Message.Content

	canonical := make([]domain.Message, 0, len(history)+1)
	canonical = append(canonical, history...)
	canonical = append(canonical, domain.Message{Role: domain.RoleAssistant, Content: text})

	return text, canonical, nil
}
