package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ollamaClient struct {
	host   string
	model  string
	client *http.Client
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Tools    []ollamaTool        `json:"tools,omitempty"`
	Stream   bool                `json:"stream"`
	Options  ollamaOptions       `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaChatMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
	Error   string            `json:"error"`
}

func NewOllamaClient(opts Options) Client {
	host := strings.TrimRight(opts.OllamaHost, "/")
	if host == "" {
		host = "http://localhost:11434"
	}

	return &ollamaClient{
		host:  host,
		model: opts.Model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *ollamaClient) Generate(ctx context.Context, req Request) (*Result, error) {
	payload := ollamaChatRequest{
		Model:  c.model,
		Stream: false,
	}

	if req.System != "" {
		payload.Messages = append(payload.Messages, ollamaChatMessage{Role: RoleSystem, Content: req.System})
	}
	for _, msg := range req.Messages {
		payload.Messages = append(payload.Messages, ollamaChatMessage{Role: msg.Role, Content: msg.Content})
	}

	for _, tool := range req.Tools {
		payload.Tools = append(payload.Tools, ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "ollama", Err: fmt.Errorf("call chat API: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, &ProviderError{Provider: "ollama", Err: fmt.Errorf("read chat error body: %w", readErr)}
		}
		if len(data) > 0 {
			return nil, &ProviderError{Provider: "ollama", Err: fmt.Errorf("chat API error: %s", string(data))}
		}
		return nil, &ProviderError{Provider: "ollama", Err: fmt.Errorf("chat API returned status %s", resp.Status)}
	}

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &ProviderError{Provider: "ollama", Err: fmt.Errorf("decode chat response: %w", err)}
	}

	if parsed.Error != "" {
		return nil, &ProviderError{Provider: "ollama", Err: fmt.Errorf("chat error: %s", parsed.Error)}
	}

	result := &Result{Text: parsed.Message.Content}
	// Ollama does not assign call ids; synthesize them so results still
	// match requests in the conversation.
	for i, call := range parsed.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        fmt.Sprintf("call_%d", i),
			Name:      call.Function.Name,
			Arguments: string(call.Function.Arguments),
		})
	}

	return result, nil
}

var _ Client = (*ollamaClient)(nil)
