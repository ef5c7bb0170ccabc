// Package rag is the top-level facade: startup ingestion into the vector
// store, then per-query orchestration of session history, the generator's
// tool-calling loop, and source attribution.
package rag

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/brightpath/course-agent/agent"
	"github.com/brightpath/course-agent/ingestion"
	"github.com/brightpath/course-agent/knowledge"
	"github.com/brightpath/course-agent/llm"
	"github.com/brightpath/course-agent/session"
	"github.com/brightpath/course-agent/store"
	"github.com/brightpath/course-agent/tools"
)

// Options tune the pipeline; zero values fall back to the package defaults
// of each component.
type Options struct {
	SearchTopK    int
	MaxToolRounds int
	MaxExchanges  int
	ChunkSize     int
	ChunkOverlap  int
}

// System wires the components together. Construct once, share across
// queries; the store and session manager synchronize internally.
type System struct {
	store     store.Store
	sessions  *session.Manager
	manager   *tools.Manager
	generator *agent.Generator
	ingestor  *ingestion.Service
	driver    neo4j.DriverWithContext
	logger    *log.Logger
}

// Answer is the outcome of one query: the generated text, the provenance of
// the search the generator ran (empty when it answered without searching),
// and the session id the exchange was recorded under.
type Answer struct {
	SessionID string
	Text      string
	Sources   []tools.Source
}

// Stats is the read-only catalog summary, optionally enriched from the
// knowledge graph.
type Stats struct {
	TotalCourses int
	CourseTitles []string
	Insights     map[string]knowledge.CourseInsight
}

func New(st store.Store, client llm.Client, driver neo4j.DriverWithContext, logger *log.Logger, opts Options) *System {
	if logger == nil {
		logger = log.Default()
	}

	manager := tools.NewManager()
	manager.Register(tools.NewSearchTool(st, opts.SearchTopK))

	return &System{
		store:     st,
		sessions:  session.NewManager(opts.MaxExchanges),
		manager:   manager,
		generator: agent.NewGenerator(client, manager, opts.MaxToolRounds, logger),
		ingestor:  ingestion.NewService(st, driver, logger, opts.ChunkSize, opts.ChunkOverlap),
		driver:    driver,
		logger:    logger,
	}
}

// IngestDirectory loads every course script under dir into the store.
// Returns the number of courses and chunks added; malformed documents are
// logged and skipped.
func (s *System) IngestDirectory(ctx context.Context, dir string, replaceExisting bool) (courses, chunks int, err error) {
	return s.ingestor.IngestDirectory(ctx, dir, replaceExisting)
}

// Query answers one user question. History for the session feeds into the
// prompt, the completed exchange is appended afterwards, and sources
// recorded during tool execution are drained exactly once.
func (s *System) Query(ctx context.Context, query, sessionID string) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, fmt.Errorf("query cannot be empty")
	}

	if sessionID == "" {
		sessionID = s.sessions.NewSessionID()
	}

	history := s.sessions.History(sessionID)

	text, err := s.generator.Generate(ctx, query, history)
	if err != nil {
		// History stays as of the last completed exchange.
		return Answer{}, fmt.Errorf("query %q: %w", query, err)
	}

	sources := s.manager.LastSources()
	s.manager.ResetSources()

	s.sessions.AddExchange(sessionID, query, text)

	return Answer{SessionID: sessionID, Text: text, Sources: sources}, nil
}

// Analytics reports catalog size and titles without touching the generator.
func (s *System) Analytics(ctx context.Context) (Stats, error) {
	catalog, err := s.store.Analytics(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("catalog analytics: %w", err)
	}

	stats := Stats{
		TotalCourses: catalog.TotalCourses,
		CourseTitles: catalog.CourseTitles,
	}

	if s.driver != nil && len(catalog.CourseTitles) > 0 {
		insights, err := knowledge.CourseInsights(ctx, s.driver, catalog.CourseTitles)
		if err != nil {
			s.logger.Printf("graph insights error: %v", err)
		} else {
			stats.Insights = insights
		}
	}

	return stats, nil
}

// Clear wipes both vector indexes and the knowledge graph.
func (s *System) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	if s.driver != nil {
		if err := knowledge.Purge(ctx, s.driver); err != nil {
			return fmt.Errorf("clear knowledge graph: %w", err)
		}
	}
	return nil
}
