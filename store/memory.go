package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/brightpath/course-agent/embeddings"
)

// Memory is an in-process Store using brute-force L2 distance. It is the
// default backend: the corpus is small enough that a linear scan over chunk
// vectors is cheaper than an index round-trip.
type Memory struct {
	embedder embeddings.Embedder

	// maxDistance > 0 rejects catalog matches farther than this.
	maxDistance float64

	mu      sync.RWMutex
	catalog map[string]catalogEntry
	chunks  map[string][]contentEntry
}

type catalogEntry struct {
	course Course
	vector []float32
}

type contentEntry struct {
	chunk  Chunk
	vector []float32
}

func NewMemory(embedder embeddings.Embedder, maxDistance float64) *Memory {
	return &Memory{
		embedder:    embedder,
		maxDistance: maxDistance,
		catalog:     make(map[string]catalogEntry),
		chunks:      make(map[string][]contentEntry),
	}
}

func (m *Memory) AddCourse(ctx context.Context, course Course, chunks []Chunk) error {
	if course.Title == "" {
		return fmt.Errorf("course title is empty")
	}

	// Embed outside the lock; only the index swap is exclusive, so reads on
	// other courses never wait on embedding calls.
	titleVec, err := m.embedOne(ctx, course.Title)
	if err != nil {
		return fmt.Errorf("embed course title: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var vectors [][]float32
	if len(texts) > 0 {
		vectors, err = m.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(chunks) {
			return fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(vectors))
		}
	}

	entries := make([]contentEntry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = contentEntry{chunk: chunk, vector: vectors[i]}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog[course.Title] = catalogEntry{course: course, vector: titleVec}
	m.chunks[course.Title] = entries
	return nil
}

func (m *Memory) DeleteCourse(_ context.Context, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.catalog, title)
	delete(m.chunks, title)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = make(map[string]catalogEntry)
	m.chunks = make(map[string][]contentEntry)
	return nil
}

func (m *Memory) ResolveCourseTitle(ctx context.Context, query string) (string, error) {
	queryVec, err := m.embedOne(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed course name query: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	best := ""
	bestDist := 0.0
	for title, entry := range m.catalog {
		dist := l2Distance(queryVec, entry.vector)
		if best == "" || dist < bestDist {
			best = title
			bestDist = dist
		}
	}

	if best == "" {
		return "", ErrCourseNotFound
	}
	if m.maxDistance > 0 && bestDist > m.maxDistance {
		return "", ErrCourseNotFound
	}
	return best, nil
}

func (m *Memory) Search(ctx context.Context, query string, filter SearchFilter, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	queryVec, err := m.embedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed search query: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var candidates []contentEntry
	if filter.CourseTitle != "" {
		entries, ok := m.chunks[filter.CourseTitle]
		if !ok {
			return nil, fmt.Errorf("%q: %w", filter.CourseTitle, ErrCourseNotFound)
		}
		candidates = entries
	} else {
		for _, entries := range m.chunks {
			candidates = append(candidates, entries...)
		}
	}

	results := make([]ScoredChunk, 0, len(candidates))
	for _, entry := range candidates {
		if filter.LessonNumber != nil && entry.chunk.LessonNumber != *filter.LessonNumber {
			continue
		}
		results = append(results, ScoredChunk{
			Text:         entry.chunk.Text,
			CourseTitle:  entry.chunk.CourseTitle,
			LessonNumber: entry.chunk.LessonNumber,
			Distance:     l2Distance(queryVec, entry.vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *Memory) GetCourse(_ context.Context, title string) (Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.catalog[title]
	if !ok {
		return Course{}, fmt.Errorf("%q: %w", title, ErrCourseNotFound)
	}
	return entry.course, nil
}

func (m *Memory) Analytics(_ context.Context) (Analytics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	titles := make([]string, 0, len(m.catalog))
	for title := range m.catalog {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return Analytics{TotalCourses: len(titles), CourseTitles: titles}, nil
}

func (m *Memory) embedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	return vectors[0], nil
}

func l2Distance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

var _ Store = (*Memory)(nil)
