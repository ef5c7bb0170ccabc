// Package tools holds the tool registry the generator dispatches against
// and the course content search tool, the one tool this system registers.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/brightpath/course-agent/llm"
)

// Tool is one callable capability: a schema the model sees and an executor
// the manager dispatches to by name.
type Tool interface {
	Definition() llm.ToolDefinition
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Source is one provenance record attached to the most recent search.
type Source struct {
	CourseTitle  string `json:"courseTitle"`
	LessonNumber *int   `json:"lessonNumber,omitempty"`
	Link         string `json:"link,omitempty"`
}

// SourceTracker is implemented by tools that record the provenance of their
// last invocation.
type SourceTracker interface {
	LastSources() []Source
	ResetSources()
}

// Manager registers tools by name and dispatches execution requests from
// the generator. Execution failures become text in the tool's result slot
// so the model can react to them; they never abort the query.
type Manager struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewManager() *Manager {
	return &Manager{tools: make(map[string]Tool)}
}

func (m *Manager) Register(tool Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools[tool.Definition().Name] = tool
}

// Definitions returns every registered tool schema, ordered by name so the
// prompt stays stable between calls.
func (m *Manager) Definitions() []llm.ToolDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(m.tools))
	for _, tool := range m.tools {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// ExecuteTool runs the named tool. The returned string is always a valid
// tool result: unknown names and execution errors come back as messages the
// model can read.
func (m *Manager) ExecuteTool(ctx context.Context, name string, args json.RawMessage) string {
	m.mu.RLock()
	tool, ok := m.tools[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Sprintf("Tool '%s' not found", name)
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		return fmt.Sprintf("Tool execution error: %v", err)
	}
	return result
}

// LastSources returns the provenance recorded by the most recent search
// across all tracking tools.
func (m *Manager) LastSources() []Source {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, tool := range m.tools {
		if tracker, ok := tool.(SourceTracker); ok {
			if sources := tracker.LastSources(); len(sources) > 0 {
				return sources
			}
		}
	}
	return nil
}

// ResetSources clears recorded provenance on every tracking tool.
func (m *Manager) ResetSources() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, tool := range m.tools {
		if tracker, ok := tool.(SourceTracker); ok {
			tracker.ResetSources()
		}
	}
}
