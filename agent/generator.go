// Package agent drives the language model through the tool-calling loop:
// send the conversation with the tool schema, execute requested tools,
// feed results back, and stop on a text answer or the round cap.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/brightpath/course-agent/llm"
	"github.com/brightpath/course-agent/session"
	"github.com/brightpath/course-agent/tools"
)

const defaultMaxToolRounds = 2

const systemPrompt = `You are an AI assistant specialized in course materials and educational content with access to a search tool for course content.

Tool Usage:
- Use the search tool only for questions about specific course content or detailed educational materials
- You may search again after reviewing results if the first search was insufficient
- If the search yields no results, state this clearly without offering alternatives

Response Protocol:
- General knowledge questions: answer using existing knowledge without searching
- Course-specific questions: search first, then answer
- No meta-commentary: provide direct answers only. Do not mention "based on the search results"

All responses must be brief, concise and focused, educational, clear, and example-supported when examples aid understanding. Provide only the direct answer to what was asked.`

const fallbackAnswer = "I wasn't able to complete my analysis. Please try rephrasing your question."

// Generator runs queries against the provider. It dispatches tool calls
// purely by name through the manager's registry, so registering new tools
// requires no change here.
type Generator struct {
	client    llm.Client
	manager   *tools.Manager
	maxRounds int
	logger    *log.Logger
}

func NewGenerator(client llm.Client, manager *tools.Manager, maxRounds int, logger *log.Logger) *Generator {
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Generator{
		client:    client,
		manager:   manager,
		maxRounds: maxRounds,
		logger:    logger,
	}
}

// Generate answers the query, executing up to maxRounds tool-calling rounds.
// After the cap the final call goes out without the tool schema, so the loop
// terminates even against a model that keeps requesting tools. Provider
// failures surface as errors; tool failures become text the model reads.
func (g *Generator) Generate(ctx context.Context, query string, history []session.Turn) (string, error) {
	system := systemPrompt
	if rendered := renderHistory(history); rendered != "" {
		system = system + "\n\nPrevious conversation:\n" + rendered
	}

	defs := g.manager.Definitions()
	messages := []llm.Message{{Role: llm.RoleUser, Content: query}}

	for executed := 0; ; {
		req := llm.Request{System: system, Messages: messages}
		if executed < g.maxRounds {
			req.Tools = defs
		}

		result, err := g.client.Generate(ctx, req)
		if err != nil {
			return "", fmt.Errorf("generate response: %w", err)
		}

		if len(result.ToolCalls) == 0 || executed >= g.maxRounds {
			if result.Text == "" {
				return fallbackAnswer, nil
			}
			return result.Text, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   result.Text,
			ToolCalls: result.ToolCalls,
		})

		for _, call := range result.ToolCalls {
			output := g.manager.ExecuteTool(ctx, call.Name, json.RawMessage(call.Arguments))
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    output,
			})
		}
		executed++
	}
}

func renderHistory(history []session.Turn) string {
	if len(history) == 0 {
		return ""
	}

	lines := make([]string, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case session.RoleUser:
			lines = append(lines, "User: "+turn.Content)
		case session.RoleAssistant:
			lines = append(lines, "Assistant: "+turn.Content)
		}
	}
	return strings.Join(lines, "\n")
}
