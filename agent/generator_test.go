package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/brightpath/course-agent/llm"
	"github.com/brightpath/course-agent/session"
	"github.com/brightpath/course-agent/tools"
)

// scriptedClient replays canned results and records every request it saw.
type scriptedClient struct {
	results  []*llm.Result
	err      error
	requests []llm.Request
}

func (c *scriptedClient) Generate(_ context.Context, req llm.Request) (*llm.Result, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	idx := len(c.requests) - 1
	if idx >= len(c.results) {
		idx = len(c.results) - 1
	}
	return c.results[idx], nil
}

var _ llm.Client = (*scriptedClient)(nil)

type recordingTool struct {
	name   string
	result string
	args   []string
}

func (r *recordingTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{Name: r.name, Parameters: json.RawMessage(`{"type":"object"}`)}
}

func (r *recordingTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	r.args = append(r.args, string(args))
	return r.result, nil
}

func newManager(tool tools.Tool) *tools.Manager {
	m := tools.NewManager()
	if tool != nil {
		m.Register(tool)
	}
	return m
}

func TestGenerateDirectAnswerSkipsTools(t *testing.T) {
	client := &scriptedClient{results: []*llm.Result{{Text: "2 + 2 = 4"}}}
	tool := &recordingTool{name: "search_course_content"}
	g := NewGenerator(client, newManager(tool), 2, nil)

	answer, err := g.Generate(context.Background(), "What is 2+2?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "2 + 2 = 4" {
		t.Fatalf("unexpected answer: %q", answer)
	}
	if len(client.requests) != 1 {
		t.Fatalf("expected a single provider call, got %d", len(client.requests))
	}
	if len(tool.args) != 0 {
		t.Fatalf("tool should not have been executed, saw %v", tool.args)
	}
}

func TestGenerateExecutesToolThenAnswers(t *testing.T) {
	client := &scriptedClient{results: []*llm.Result{
		{ToolCalls: []llm.ToolCall{{ID: "call_0", Name: "search_course_content", Arguments: `{"query":"vectors"}`}}},
		{Text: "Vectors have magnitude and direction."},
	}}
	tool := &recordingTool{name: "search_course_content", result: "[Intro to Vectors - Lesson 0]\ncontent"}
	g := NewGenerator(client, newManager(tool), 2, nil)

	answer, err := g.Generate(context.Background(), "What are vectors?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Vectors have magnitude and direction." {
		t.Fatalf("unexpected answer: %q", answer)
	}

	if len(tool.args) != 1 || tool.args[0] != `{"query":"vectors"}` {
		t.Fatalf("tool saw unexpected arguments: %v", tool.args)
	}

	second := client.requests[1]
	if len(second.Messages) != 3 {
		t.Fatalf("expected user + assistant + tool messages, got %d", len(second.Messages))
	}
	assistant := second.Messages[1]
	if assistant.Role != llm.RoleAssistant || len(assistant.ToolCalls) != 1 {
		t.Fatalf("assistant turn missing the tool call: %+v", assistant)
	}
	toolMsg := second.Messages[2]
	if toolMsg.Role != llm.RoleTool || toolMsg.ToolCallID != "call_0" {
		t.Fatalf("tool result not linked to its call: %+v", toolMsg)
	}
	if toolMsg.Content != tool.result {
		t.Fatalf("tool result content mismatch: %q", toolMsg.Content)
	}
}

func TestGenerateRoundCapForcesToollessFinalCall(t *testing.T) {
	// a model that never stops asking for tools
	client := &scriptedClient{results: []*llm.Result{
		{ToolCalls: []llm.ToolCall{{ID: "call_0", Name: "search_course_content", Arguments: `{"query":"a"}`}}},
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "search_course_content", Arguments: `{"query":"b"}`}}},
		{Text: "final answer"},
	}}
	tool := &recordingTool{name: "search_course_content", result: "content"}
	g := NewGenerator(client, newManager(tool), 2, nil)

	answer, err := g.Generate(context.Background(), "keep searching", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "final answer" {
		t.Fatalf("unexpected answer: %q", answer)
	}

	if len(client.requests) != 3 {
		t.Fatalf("expected 3 provider calls, got %d", len(client.requests))
	}
	if len(client.requests[0].Tools) == 0 || len(client.requests[1].Tools) == 0 {
		t.Fatal("tool schema missing from calls within the round cap")
	}
	if len(client.requests[2].Tools) != 0 {
		t.Fatal("final call after the round cap must not offer tools")
	}
	if len(tool.args) != 2 {
		t.Fatalf("expected 2 tool executions, got %d", len(tool.args))
	}
}

func TestGenerateUnknownToolBecomesResultText(t *testing.T) {
	client := &scriptedClient{results: []*llm.Result{
		{ToolCalls: []llm.ToolCall{{ID: "call_0", Name: "ghost_tool", Arguments: `{}`}}},
		{Text: "done"},
	}}
	g := NewGenerator(client, newManager(nil), 2, nil)

	if _, err := g.Generate(context.Background(), "q", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	toolMsg := client.requests[1].Messages[2]
	if toolMsg.Content != "Tool 'ghost_tool' not found" {
		t.Fatalf("unexpected tool result: %q", toolMsg.Content)
	}
}

func TestGenerateProviderErrorSurfaces(t *testing.T) {
	providerErr := errors.New("connection refused")
	client := &scriptedClient{err: providerErr}
	g := NewGenerator(client, newManager(nil), 2, nil)

	if _, err := g.Generate(context.Background(), "q", nil); !errors.Is(err, providerErr) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestGenerateEmptyTextFallsBack(t *testing.T) {
	client := &scriptedClient{results: []*llm.Result{{}}}
	g := NewGenerator(client, newManager(nil), 2, nil)

	answer, err := g.Generate(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != fallbackAnswer {
		t.Fatalf("unexpected fallback: %q", answer)
	}
}

func TestGenerateHistoryRenderedIntoSystemPrompt(t *testing.T) {
	client := &scriptedClient{results: []*llm.Result{{Text: "ok"}}}
	g := NewGenerator(client, newManager(nil), 2, nil)

	history := []session.Turn{
		{Role: session.RoleUser, Content: "What is a vector?"},
		{Role: session.RoleAssistant, Content: "A quantity with magnitude and direction."},
	}
	if _, err := g.Generate(context.Background(), "And how do I add them?", history); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	system := client.requests[0].System
	if !strings.Contains(system, "Previous conversation:") {
		t.Fatalf("system prompt missing history block: %q", system)
	}
	if !strings.Contains(system, "User: What is a vector?") || !strings.Contains(system, "Assistant: A quantity") {
		t.Fatalf("history turns missing from system prompt: %q", system)
	}
}

func TestGenerateNoHistoryKeepsSystemPromptClean(t *testing.T) {
	client := &scriptedClient{results: []*llm.Result{{Text: "ok"}}}
	g := NewGenerator(client, newManager(nil), 2, nil)

	if _, err := g.Generate(context.Background(), "q", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(client.requests[0].System, "Previous conversation:") {
		t.Fatal("empty history must not add a conversation block")
	}
}
