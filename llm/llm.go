// Package llm is the language-model provider boundary. A single call type,
// generate-with-optional-tools, covers both plain completion and the
// tool-calling rounds of the agent loop.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brightpath/course-agent/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolDefinition describes one callable tool to the model. Parameters is a
// JSON Schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCall is a model-issued request to execute a tool. Arguments is the
// raw JSON the model produced; the ID ties the eventual result back to this
// request.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type Message struct {
	Role    string
	Content string

	// ToolCalls is set on assistant messages that requested tools.
	ToolCalls []ToolCall
	// ToolCallID is set on tool-result messages.
	ToolCallID string
}

// Request is one generate call. Leaving Tools empty disables tool use, which
// is how the agent forces a final text answer.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolDefinition
}

// Result carries either final text or one-or-more tool calls to execute.
type Result struct {
	Text      string
	ToolCalls []ToolCall
}

// Client abstracts the provider. Generation runs at zero temperature so
// retrieval-grounded answers stay deterministic.
type Client interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// ProviderError wraps provider-side failures (network, auth, rate limits)
// so callers can distinguish them from local errors.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
