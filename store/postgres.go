package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/brightpath/course-agent/embeddings"
)

// Postgres is a pgvector-backed Store. The catalog and content indexes live
// in the course_catalog and course_chunks tables; per-course replacement
// runs in one transaction so the indexes never diverge.
type Postgres struct {
	pool        *pgxpool.Pool
	embedder    embeddings.Embedder
	maxDistance float64
}

func NewPostgres(pool *pgxpool.Pool, embedder embeddings.Embedder, maxDistance float64) *Postgres {
	return &Postgres{pool: pool, embedder: embedder, maxDistance: maxDistance}
}

func (p *Postgres) AddCourse(ctx context.Context, course Course, chunks []Chunk) (err error) {
	if course.Title == "" {
		return fmt.Errorf("course title is empty")
	}

	titleVec, err := p.embedOne(ctx, course.Title)
	if err != nil {
		return fmt.Errorf("embed course title: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var vectors [][]float32
	if len(texts) > 0 {
		vectors, err = p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(chunks) {
			return fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(vectors))
		}
	}

	lessonsJSON, err := json.Marshal(course.Lessons)
	if err != nil {
		return fmt.Errorf("marshal lessons: %w", err)
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		INSERT INTO course_catalog (title, link, instructor, lessons, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (title) DO UPDATE
		SET link = EXCLUDED.link,
		    instructor = EXCLUDED.instructor,
		    lessons = EXCLUDED.lessons,
		    embedding = EXCLUDED.embedding,
		    updated_at = NOW()
	`, course.Title, course.Link, course.Instructor, lessonsJSON, pgvector.NewVector(titleVec)); err != nil {
		return fmt.Errorf("upsert catalog entry: %w", err)
	}

	if _, err = tx.Exec(ctx, "DELETE FROM course_chunks WHERE course_title = $1", course.Title); err != nil {
		return fmt.Errorf("clear existing chunks: %w", err)
	}

	for i, chunk := range chunks {
		if _, err = tx.Exec(ctx, `
			INSERT INTO course_chunks (id, course_title, lesson_number, chunk_index, content, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, uuid.New(), chunk.CourseTitle, chunk.LessonNumber, chunk.Index, chunk.Text, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteCourse(ctx context.Context, title string) error {
	if _, err := p.pool.Exec(ctx, "DELETE FROM course_catalog WHERE title = $1", title); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

func (p *Postgres) Clear(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "TRUNCATE course_chunks, course_catalog"); err != nil {
		return fmt.Errorf("truncate course tables: %w", err)
	}
	return nil
}

func (p *Postgres) ResolveCourseTitle(ctx context.Context, query string) (string, error) {
	queryVec, err := p.embedOne(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed course name query: %w", err)
	}

	var (
		title    string
		distance float64
	)
	err = p.pool.QueryRow(ctx, `
		SELECT title, embedding <-> $1::vector AS distance
		FROM course_catalog
		ORDER BY embedding <-> $1::vector
		LIMIT 1
	`, pgvector.NewVector(queryVec)).Scan(&title, &distance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrCourseNotFound
		}
		return "", fmt.Errorf("query catalog: %w", err)
	}

	if p.maxDistance > 0 && distance > p.maxDistance {
		return "", ErrCourseNotFound
	}
	return title, nil
}

func (p *Postgres) Search(ctx context.Context, query string, filter SearchFilter, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	if filter.CourseTitle != "" {
		var exists bool
		if err := p.pool.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM course_catalog WHERE title = $1)", filter.CourseTitle,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check catalog entry: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%q: %w", filter.CourseTitle, ErrCourseNotFound)
		}
	}

	queryVec, err := p.embedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed search query: %w", err)
	}

	sql := `
		SELECT content, course_title, lesson_number, embedding <-> $1::vector AS distance
		FROM course_chunks
	`
	args := []any{pgvector.NewVector(queryVec)}
	clause := " WHERE"
	if filter.CourseTitle != "" {
		args = append(args, filter.CourseTitle)
		sql += fmt.Sprintf("%s course_title = $%d", clause, len(args))
		clause = " AND"
	}
	if filter.LessonNumber != nil {
		args = append(args, *filter.LessonNumber)
		sql += fmt.Sprintf("%s lesson_number = $%d", clause, len(args))
	}
	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY embedding <-> $1::vector LIMIT $%d", len(args))

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	results := make([]ScoredChunk, 0, limit)
	for rows.Next() {
		var item ScoredChunk
		if err := rows.Scan(&item.Text, &item.CourseTitle, &item.LessonNumber, &item.Distance); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		results = append(results, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return results, nil
}

func (p *Postgres) GetCourse(ctx context.Context, title string) (Course, error) {
	var (
		course      Course
		lessonsJSON []byte
	)
	err := p.pool.QueryRow(ctx, `
		SELECT title, link, instructor, lessons
		FROM course_catalog
		WHERE title = $1
	`, title).Scan(&course.Title, &course.Link, &course.Instructor, &lessonsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Course{}, fmt.Errorf("%q: %w", title, ErrCourseNotFound)
		}
		return Course{}, fmt.Errorf("query catalog entry: %w", err)
	}

	if len(lessonsJSON) > 0 {
		if err := json.Unmarshal(lessonsJSON, &course.Lessons); err != nil {
			return Course{}, fmt.Errorf("unmarshal lessons: %w", err)
		}
	}
	return course, nil
}

func (p *Postgres) Analytics(ctx context.Context) (Analytics, error) {
	rows, err := p.pool.Query(ctx, "SELECT title FROM course_catalog ORDER BY title")
	if err != nil {
		return Analytics{}, fmt.Errorf("query catalog titles: %w", err)
	}
	defer rows.Close()

	var stats Analytics
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return Analytics{}, fmt.Errorf("scan title: %w", err)
		}
		stats.CourseTitles = append(stats.CourseTitles, title)
	}
	if rows.Err() != nil {
		return Analytics{}, rows.Err()
	}
	stats.TotalCourses = len(stats.CourseTitles)
	return stats, nil
}

func (p *Postgres) embedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	return vectors[0], nil
}

var _ Store = (*Postgres)(nil)
