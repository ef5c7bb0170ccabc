// Package knowledge mirrors the course catalog into a Neo4j graph of
// Course, Lesson, and Instructor nodes. The graph is an optional sidecar:
// it enriches catalog analytics with cross-course relations and is never
// required for search.
package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/brightpath/course-agent/store"
)

// CourseInsight is graph-derived detail for one cataloged course.
type CourseInsight struct {
	LessonCount int
	// SameInstructor lists other course titles taught by this course's
	// instructor.
	SameInstructor []string
}

// SyncCourse upserts the course with its lessons and instructor, replacing
// any prior lesson nodes for the same title.
func SyncCourse(ctx context.Context, driver neo4j.DriverWithContext, course store.Course) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := map[string]any{
		"title":      course.Title,
		"link":       course.Link,
		"instructor": course.Instructor,
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (c:Course {title: $title})
			SET c.link = $link,
			    c.updated_at = datetime()
		`, params); err != nil {
			return nil, fmt.Errorf("upsert course node: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (c:Course {title: $title})-[:HAS_LESSON]->(l:Lesson)
			DETACH DELETE l
		`, params); err != nil {
			return nil, fmt.Errorf("clear existing lesson nodes: %w", err)
		}

		for _, lesson := range course.Lessons {
			if _, err := tx.Run(ctx, `
				MATCH (c:Course {title: $title})
				CREATE (l:Lesson {number: $number, title: $lesson_title, link: $lesson_link})
				MERGE (c)-[:HAS_LESSON {number: $number}]->(l)
			`, map[string]any{
				"title":        course.Title,
				"number":       lesson.Number,
				"lesson_title": lesson.Title,
				"lesson_link":  lesson.Link,
			}); err != nil {
				return nil, fmt.Errorf("upsert lesson node %d: %w", lesson.Number, err)
			}
		}

		if _, err := tx.Run(ctx, `
			MATCH (c:Course {title: $title})-[r:TAUGHT_BY]->(:Instructor)
			DELETE r
		`, params); err != nil {
			return nil, fmt.Errorf("remove stale instructor relation: %w", err)
		}

		if course.Instructor != "" {
			if _, err := tx.Run(ctx, `
				MATCH (c:Course {title: $title})
				MERGE (i:Instructor {name: $instructor})
				MERGE (c)-[:TAUGHT_BY]->(i)
			`, params); err != nil {
				return nil, fmt.Errorf("upsert instructor relation: %w", err)
			}
		}

		return nil, nil
	})

	if err == nil {
		if _, cleanupErr := session.Run(ctx, `
			MATCH (i:Instructor)
			WHERE NOT (i)<-[:TAUGHT_BY]-(:Course)
			DELETE i
		`, nil); cleanupErr != nil {
			err = cleanupErr
		}
	}

	return err
}

// CourseInsights returns graph detail for the given course titles.
func CourseInsights(ctx context.Context, driver neo4j.DriverWithContext, titles []string) (map[string]CourseInsight, error) {
	if driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if len(titles) == 0 {
		return map[string]CourseInsight{}, nil
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (c:Course)
		WHERE c.title IN $titles
		OPTIONAL MATCH (c)-[:HAS_LESSON]->(l:Lesson)
		OPTIONAL MATCH (c)-[:TAUGHT_BY]->(i:Instructor)<-[:TAUGHT_BY]-(other:Course)
		WITH c,
		     count(DISTINCT l) AS lessonCount,
		     collect(DISTINCT other.title) AS otherTitles
		RETURN c.title AS title,
		       lessonCount,
		       [t IN otherTitles WHERE t IS NOT NULL AND t <> c.title] AS sameInstructor
	`, map[string]any{"titles": titles})
	if err != nil {
		return nil, fmt.Errorf("run neo4j insights query: %w", err)
	}

	insights := make(map[string]CourseInsight, len(titles))
	for result.Next(ctx) {
		record := result.Record()
		titleVal, _ := record.Get("title")
		countVal, _ := record.Get("lessonCount")
		relatedVal, _ := record.Get("sameInstructor")

		title, ok := titleVal.(string)
		if !ok {
			continue
		}

		var lessonCount int64
		switch v := countVal.(type) {
		case int64:
			lessonCount = v
		case int32:
			lessonCount = int64(v)
		}

		insights[title] = CourseInsight{
			LessonCount:    int(lessonCount),
			SameInstructor: convertStringSlice(relatedVal),
		}
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("neo4j insights result error: %w", err)
	}

	return insights, nil
}

// Purge removes every course graph node.
func Purge(ctx context.Context, driver neo4j.DriverWithContext) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	queries := []string{
		"MATCH (l:Lesson) DETACH DELETE l",
		"MATCH (c:Course) DETACH DELETE c",
		"MATCH (i:Instructor) DETACH DELETE i",
	}

	for _, query := range queries {
		result, err := session.Run(ctx, query, nil)
		if err != nil {
			return err
		}
		if _, err := result.Consume(ctx); err != nil {
			return err
		}
	}
	return nil
}

func convertStringSlice(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		if v, ok := value.([]string); ok {
			return v
		}
		return nil
	}

	result := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			result = append(result, s)
		}
	}
	return result
}
