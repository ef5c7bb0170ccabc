package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/brightpath/course-agent/llm"
	"github.com/brightpath/course-agent/store"
)

// SearchToolName is the registered name of the course content search tool.
const SearchToolName = "search_course_content"

var searchToolSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "What to search for in the course content"
		},
		"course_name": {
			"type": "string",
			"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')"
		},
		"lesson_number": {
			"type": "integer",
			"description": "Specific lesson number to search within (e.g. 1, 2, 3)"
		}
	},
	"required": ["query"]
}`)

// SearchTool searches course content with approximate course-name matching
// and an optional lesson filter. It records the provenance of each result
// for later attribution.
type SearchTool struct {
	store store.Store
	topK  int

	mu      sync.Mutex
	sources []Source
}

func NewSearchTool(st store.Store, topK int) *SearchTool {
	return &SearchTool{store: st, topK: topK}
}

func (t *SearchTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        SearchToolName,
		Description: "Search course materials with smart course name matching and lesson filtering",
		Parameters:  searchToolSchema,
	}
}

type searchArgs struct {
	Query        string `json:"query"`
	CourseName   string `json:"course_name"`
	LessonNumber *int   `json:"lesson_number"`
}

func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var parsed searchArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return "", fmt.Errorf("decode search arguments: %w", err)
	}
	if strings.TrimSpace(parsed.Query) == "" {
		return "", fmt.Errorf("query is required")
	}

	filter := store.SearchFilter{LessonNumber: parsed.LessonNumber}
	if parsed.CourseName != "" {
		resolved, err := t.store.ResolveCourseTitle(ctx, parsed.CourseName)
		if err != nil {
			if errors.Is(err, store.ErrCourseNotFound) {
				return fmt.Sprintf("No course found matching '%s'", parsed.CourseName), nil
			}
			return "", fmt.Errorf("resolve course name: %w", err)
		}
		filter.CourseTitle = resolved
	}

	results, err := t.store.Search(ctx, parsed.Query, filter, t.topK)
	if err != nil {
		if errors.Is(err, store.ErrCourseNotFound) {
			return fmt.Sprintf("No course found matching '%s'", parsed.CourseName), nil
		}
		return "", fmt.Errorf("search course content: %w", err)
	}

	if len(results) == 0 {
		return t.emptyMessage(filter, parsed), nil
	}

	return t.formatResults(ctx, results), nil
}

func (t *SearchTool) emptyMessage(filter store.SearchFilter, parsed searchArgs) string {
	msg := "No relevant content found"
	if filter.CourseTitle != "" {
		msg += fmt.Sprintf(" in course '%s'", filter.CourseTitle)
	}
	if parsed.LessonNumber != nil {
		msg += fmt.Sprintf(" in lesson %d", *parsed.LessonNumber)
	}
	return msg + "."
}

// formatResults renders ranked hits as one text block per chunk, each led
// by its [Course - Lesson N] header, and records their provenance.
func (t *SearchTool) formatResults(ctx context.Context, results []store.ScoredChunk) string {
	blocks := make([]string, 0, len(results))
	sources := make([]Source, 0, len(results))
	links := make(map[string]store.Course)

	for _, hit := range results {
		header := fmt.Sprintf("[%s - Lesson %d]", hit.CourseTitle, hit.LessonNumber)
		blocks = append(blocks, header+"\n"+hit.Text)

		lesson := hit.LessonNumber
		source := Source{CourseTitle: hit.CourseTitle, LessonNumber: &lesson}

		course, ok := links[hit.CourseTitle]
		if !ok {
			if fetched, err := t.store.GetCourse(ctx, hit.CourseTitle); err == nil {
				course = fetched
			}
			links[hit.CourseTitle] = course
		}
		if link := course.LessonLink(hit.LessonNumber); link != "" {
			source.Link = link
		} else if course.Link != "" {
			source.Link = course.Link
		}
		sources = append(sources, source)
	}

	t.mu.Lock()
	t.sources = sources
	t.mu.Unlock()

	return strings.Join(blocks, "\n\n")
}

func (t *SearchTool) LastSources() []Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Source(nil), t.sources...)
}

func (t *SearchTool) ResetSources() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sources = nil
}

var (
	_ Tool          = (*SearchTool)(nil)
	_ SourceTracker = (*SearchTool)(nil)
)
