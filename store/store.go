// Package store implements the dual-index vector store backing course
// search: a catalog index with one embedded entry per course, used to
// resolve approximate course names, and a content index with one embedded
// entry per chunk, used for semantic retrieval.
package store

import (
	"context"
	"errors"
)

// ErrCourseNotFound reports that a course name resolved against the catalog
// has no entry. Distinct from an empty search result, which is a valid
// outcome.
var ErrCourseNotFound = errors.New("course not found")

const defaultSearchLimit = 5

// Lesson is one numbered lesson within a course.
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// Course is the catalog-level record for an ingested document. The title is
// the join key between the catalog index and the content index.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Chunk is one retrievable text window with its course/lesson provenance.
type Chunk struct {
	Text         string
	CourseTitle  string
	LessonNumber int
	Index        int
}

// SearchFilter narrows a content query. CourseTitle must be an exact catalog
// title (resolve approximate names first); LessonNumber of nil means any
// lesson.
type SearchFilter struct {
	CourseTitle  string
	LessonNumber *int
}

// ScoredChunk is one ranked search hit. Distance ascends with dissimilarity.
type ScoredChunk struct {
	Text         string
	CourseTitle  string
	LessonNumber int
	Distance     float64
}

// Analytics summarizes the catalog index.
type Analytics struct {
	TotalCourses int
	CourseTitles []string
}

// Store is the dual-index contract. AddCourse replaces any prior entry with
// the same title in both indexes atomically, so re-ingestion never
// duplicates and the two indexes never diverge.
type Store interface {
	AddCourse(ctx context.Context, course Course, chunks []Chunk) error
	DeleteCourse(ctx context.Context, title string) error
	Clear(ctx context.Context) error

	// ResolveCourseTitle returns the exact catalog title nearest to the
	// query in embedding space. ErrCourseNotFound when the catalog is empty
	// or the nearest entry is farther than the configured distance floor.
	ResolveCourseTitle(ctx context.Context, query string) (string, error)

	// Search returns up to limit chunks nearest to the query, restricted by
	// filter. A filter naming an unknown course yields ErrCourseNotFound.
	Search(ctx context.Context, query string, filter SearchFilter, limit int) ([]ScoredChunk, error)

	// GetCourse returns the catalog record for an exact title, used for
	// link lookups in source attribution.
	GetCourse(ctx context.Context, title string) (Course, error)

	Analytics(ctx context.Context) (Analytics, error)
}

// LessonLink returns the reference link for a lesson of the course, or ""
// when the lesson has none.
func (c Course) LessonLink(number int) string {
	for _, lesson := range c.Lessons {
		if lesson.Number == number {
			return lesson.Link
		}
	}
	return ""
}
