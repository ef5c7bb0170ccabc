package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureCourseSchema creates the catalog and content index tables used by
// the Postgres store backend.
func EnsureCourseSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS course_catalog (
			title TEXT PRIMARY KEY,
			link TEXT,
			instructor TEXT,
			lessons JSONB NOT NULL DEFAULT '[]',
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS course_chunks (
			id UUID PRIMARY KEY,
			course_title TEXT NOT NULL REFERENCES course_catalog(title) ON DELETE CASCADE,
			lesson_number INT NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(course_title, chunk_index)
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_course_chunks_course ON course_chunks(course_title, lesson_number)",
		"CREATE INDEX IF NOT EXISTS idx_course_chunks_embedding ON course_chunks USING ivfflat (embedding vector_l2_ops)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}
