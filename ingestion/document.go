// Package ingestion parses course scripts and produces overlapping,
// provenance-tagged chunks for the vector store.
package ingestion

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/brightpath/course-agent/store"
)

// ErrMissingTitle reports a document without the required Course Title
// header. The document is skipped; ingestion of other documents continues.
var ErrMissingTitle = errors.New("course document missing title")

var lessonMarker = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// ParsedLesson is a lesson block with its raw body text.
type ParsedLesson struct {
	Number int
	Title  string
	Link   string
	Body   string
}

// ParsedCourse is the outcome of parsing one course script.
type ParsedCourse struct {
	Course  store.Course
	Lessons []ParsedLesson
}

// ParseCourseDocument reads a course script: metadata header lines
// (Course Title / Course Link / Course Instructor), then lesson blocks
// introduced by "Lesson N: Title" markers, each optionally followed by a
// "Lesson Link:" line. Content before the first lesson marker becomes
// lesson 0 with an empty title.
func ParseCourseDocument(content string) (*ParsedCourse, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")

	course := store.Course{}
	idx := 0
	for ; idx < len(lines); idx++ {
		line := strings.TrimSpace(lines[idx])
		if line == "" {
			continue
		}
		if value, ok := headerValue(line, "Course Title:"); ok {
			course.Title = value
			continue
		}
		if value, ok := headerValue(line, "Course Link:"); ok {
			course.Link = value
			continue
		}
		if value, ok := headerValue(line, "Course Instructor:"); ok {
			course.Instructor = value
			continue
		}
		break
	}

	if course.Title == "" {
		return nil, ErrMissingTitle
	}

	var (
		lessons []ParsedLesson
		current *ParsedLesson
		body    []string
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		lessons = append(lessons, *current)
		current = nil
		body = nil
	}

	for ; idx < len(lines); idx++ {
		line := lines[idx]
		trimmed := strings.TrimSpace(line)

		if match := lessonMarker.FindStringSubmatch(trimmed); match != nil {
			flush()
			number, err := strconv.Atoi(match[1])
			if err != nil {
				return nil, fmt.Errorf("parse lesson number %q: %w", match[1], err)
			}
			current = &ParsedLesson{Number: number, Title: strings.TrimSpace(match[2])}
			continue
		}

		if current != nil && len(body) == 0 {
			if value, ok := headerValue(trimmed, "Lesson Link:"); ok {
				current.Link = value
				continue
			}
		}

		if current == nil {
			if trimmed == "" {
				continue
			}
			// Untitled preamble content: treat as lesson 0.
			current = &ParsedLesson{Number: 0}
		}
		body = append(body, line)
	}
	flush()

	for _, lesson := range lessons {
		course.Lessons = append(course.Lessons, store.Lesson{
			Number: lesson.Number,
			Title:  lesson.Title,
			Link:   lesson.Link,
		})
	}

	return &ParsedCourse{Course: course, Lessons: lessons}, nil
}

func headerValue(line, prefix string) (string, bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
}

// BuildChunks windows every lesson body and tags each chunk with its
// provenance. Chunk text carries the course title, and the first chunk of a
// lesson its title, so retrieved text keeps context out of order. Sequence
// indexes increase monotonically across the whole course.
func BuildChunks(parsed *ParsedCourse, chunkSize, overlap int) []store.Chunk {
	var chunks []store.Chunk
	seq := 0
	for _, lesson := range parsed.Lessons {
		windows := ChunkText(lesson.Body, chunkSize, overlap)
		for i, window := range windows {
			prefix := fmt.Sprintf("Course %s", parsed.Course.Title)
			if i == 0 && lesson.Title != "" {
				prefix = fmt.Sprintf("%s, Lesson %d: %s", prefix, lesson.Number, lesson.Title)
			}
			chunks = append(chunks, store.Chunk{
				Text:         prefix + " | " + window,
				CourseTitle:  parsed.Course.Title,
				LessonNumber: lesson.Number,
				Index:        seq,
			})
			seq++
		}
	}
	return chunks
}
