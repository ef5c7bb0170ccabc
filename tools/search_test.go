package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/brightpath/course-agent/store"
)

// stubStore scripts the store responses a search needs.
type stubStore struct {
	resolveTitle string
	resolveErr   error
	results      []store.ScoredChunk
	searchErr    error
	course       store.Course
	courseErr    error

	lastQuery  string
	lastFilter store.SearchFilter
	lastLimit  int
}

func (s *stubStore) AddCourse(context.Context, store.Course, []store.Chunk) error { return nil }
func (s *stubStore) DeleteCourse(context.Context, string) error                   { return nil }
func (s *stubStore) Clear(context.Context) error                                  { return nil }

func (s *stubStore) ResolveCourseTitle(_ context.Context, name string) (string, error) {
	return s.resolveTitle, s.resolveErr
}

func (s *stubStore) Search(_ context.Context, query string, filter store.SearchFilter, limit int) ([]store.ScoredChunk, error) {
	s.lastQuery = query
	s.lastFilter = filter
	s.lastLimit = limit
	return s.results, s.searchErr
}

func (s *stubStore) GetCourse(context.Context, string) (store.Course, error) {
	return s.course, s.courseErr
}

func (s *stubStore) Analytics(context.Context) (store.Analytics, error) {
	return store.Analytics{}, nil
}

var _ store.Store = (*stubStore)(nil)

func rawArgs(t *testing.T, args map[string]any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return data
}

func TestSearchToolFormatsResults(t *testing.T) {
	lessonLink := "https://example.com/vectors/lesson-0"
	st := &stubStore{
		results: []store.ScoredChunk{
			{Text: "Vectors have magnitude and direction.", CourseTitle: "Intro to Vectors", LessonNumber: 0},
			{Text: "Adding vectors is component-wise.", CourseTitle: "Intro to Vectors", LessonNumber: 1},
		},
		course: store.Course{
			Title: "Intro to Vectors",
			Link:  "https://example.com/vectors",
			Lessons: []store.Lesson{
				{Number: 0, Title: "Basics", Link: lessonLink},
				{Number: 1, Title: "Addition"},
			},
		},
	}
	tool := NewSearchTool(st, 5)

	out, err := tool.Execute(context.Background(), rawArgs(t, map[string]any{"query": "vectors"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	blocks := strings.Split(out, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %q", len(blocks), out)
	}
	if !strings.HasPrefix(blocks[0], "[Intro to Vectors - Lesson 0]\n") {
		t.Fatalf("unexpected first block header: %q", blocks[0])
	}
	if !strings.HasPrefix(blocks[1], "[Intro to Vectors - Lesson 1]\n") {
		t.Fatalf("unexpected second block header: %q", blocks[1])
	}

	sources := tool.LastSources()
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].CourseTitle != "Intro to Vectors" || sources[0].LessonNumber == nil || *sources[0].LessonNumber != 0 {
		t.Fatalf("unexpected first source: %+v", sources[0])
	}
	if sources[0].Link != lessonLink {
		t.Fatalf("expected lesson link on first source, got %q", sources[0].Link)
	}
	// lesson 1 has no link of its own, the course link is the fallback
	if sources[1].Link != "https://example.com/vectors" {
		t.Fatalf("expected course link fallback on second source, got %q", sources[1].Link)
	}
}

func TestSearchToolResolvesCourseName(t *testing.T) {
	st := &stubStore{
		resolveTitle: "Intro to Vectors",
		results: []store.ScoredChunk{
			{Text: "content", CourseTitle: "Intro to Vectors", LessonNumber: 2},
		},
	}
	tool := NewSearchTool(st, 3)

	_, err := tool.Execute(context.Background(), rawArgs(t, map[string]any{
		"query":         "addition",
		"course_name":   "vectors",
		"lesson_number": 2,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if st.lastFilter.CourseTitle != "Intro to Vectors" {
		t.Fatalf("resolved title not passed to search: %+v", st.lastFilter)
	}
	if st.lastFilter.LessonNumber == nil || *st.lastFilter.LessonNumber != 2 {
		t.Fatalf("lesson filter not passed to search: %+v", st.lastFilter)
	}
	if st.lastLimit != 3 {
		t.Fatalf("expected topK 3, got %d", st.lastLimit)
	}
}

func TestSearchToolNoCourseMatch(t *testing.T) {
	st := &stubStore{resolveErr: store.ErrCourseNotFound}
	tool := NewSearchTool(st, 5)

	out, err := tool.Execute(context.Background(), rawArgs(t, map[string]any{
		"query":       "anything",
		"course_name": "Quantum Basket Weaving",
	}))
	if err != nil {
		t.Fatalf("a missing course is a message, not an error: %v", err)
	}
	if out != "No course found matching 'Quantum Basket Weaving'" {
		t.Fatalf("unexpected message: %q", out)
	}
}

func TestSearchToolEmptyResultMessages(t *testing.T) {
	cases := []struct {
		name string
		args map[string]any
		st   *stubStore
		want string
	}{
		{
			name: "no filters",
			args: map[string]any{"query": "nothing"},
			st:   &stubStore{},
			want: "No relevant content found.",
		},
		{
			name: "course filter",
			args: map[string]any{"query": "nothing", "course_name": "vectors"},
			st:   &stubStore{resolveTitle: "Intro to Vectors"},
			want: "No relevant content found in course 'Intro to Vectors'.",
		},
		{
			name: "course and lesson filters",
			args: map[string]any{"query": "nothing", "course_name": "vectors", "lesson_number": 9},
			st:   &stubStore{resolveTitle: "Intro to Vectors"},
			want: "No relevant content found in course 'Intro to Vectors' in lesson 9.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tool := NewSearchTool(tc.st, 5)
			out, err := tool.Execute(context.Background(), rawArgs(t, tc.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out != tc.want {
				t.Fatalf("unexpected message: got %q, want %q", out, tc.want)
			}
		})
	}
}

func TestSearchToolMissingQuery(t *testing.T) {
	tool := NewSearchTool(&stubStore{}, 5)

	if _, err := tool.Execute(context.Background(), rawArgs(t, map[string]any{"course_name": "vectors"})); err == nil {
		t.Fatal("expected an error for a missing query")
	}
}

func TestSearchToolResetSources(t *testing.T) {
	st := &stubStore{
		results:   []store.ScoredChunk{{Text: "x", CourseTitle: "C", LessonNumber: 1}},
		courseErr: errors.New("no links available"),
	}
	tool := NewSearchTool(st, 5)

	if _, err := tool.Execute(context.Background(), rawArgs(t, map[string]any{"query": "x"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tool.LastSources()) != 1 {
		t.Fatal("expected a recorded source")
	}

	tool.ResetSources()
	if len(tool.LastSources()) != 0 {
		t.Fatal("expected sources to be cleared after reset")
	}
}
