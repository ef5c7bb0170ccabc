package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/brightpath/course-agent/api"
	"github.com/brightpath/course-agent/config"
	"github.com/brightpath/course-agent/database"
	"github.com/brightpath/course-agent/embeddings"
	"github.com/brightpath/course-agent/llm"
	"github.com/brightpath/course-agent/rag"
	"github.com/brightpath/course-agent/store"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "query":
		queryCmd(cfg, logger, os.Args[2:])
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	docsDir := flags.String("dir", cfg.DocsDir, "path to directory containing course documents")
	replace := flags.Bool("replace", false, "re-ingest courses that are already cataloged")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	system, cleanup, err := buildSystem(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer cleanup(ctx)

	logger.Printf("ingesting course documents from %s using %s/%s embeddings",
		*docsDir, strings.ToUpper(cfg.Embeddings.Provider), cfg.Embeddings.Model)

	courses, chunks, err := system.IngestDirectory(ctx, *docsDir, *replace)
	if err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}
	logger.Printf("loaded %d courses (%d chunks)", courses, chunks)
}

func queryCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("query", flag.ExitOnError)
	question := flags.String("question", "", "question to ask about the course materials")
	sessionID := flags.String("session", "", "session id to continue a prior conversation")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse query flags: %v", err)
	}

	if strings.TrimSpace(*question) == "" {
		logger.Fatal("question is required (use --question)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	system, cleanup, err := buildSystem(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer cleanup(ctx)

	if _, _, err := system.IngestDirectory(ctx, cfg.DocsDir, false); err != nil {
		logger.Printf("startup ingestion: %v", err)
	}

	answer, err := system.Query(ctx, *question, *sessionID)
	if err != nil {
		logger.Fatalf("query failed: %v", err)
	}

	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for idx, source := range answer.Sources {
			line := fmt.Sprintf("%d. %s", idx+1, source.CourseTitle)
			if source.LessonNumber != nil {
				line += fmt.Sprintf(" - Lesson %d", *source.LessonNumber)
			}
			if source.Link != "" {
				line += fmt.Sprintf(" (%s)", source.Link)
			}
			fmt.Println(line)
		}
	}
	fmt.Printf("\nSession: %s\n", answer.SessionID)
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.ListenAddr, "listen address")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	system, cleanup, err := buildSystem(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer cleanup(ctx)

	courses, chunks, err := system.IngestDirectory(ctx, cfg.DocsDir, false)
	if err != nil {
		logger.Printf("startup ingestion: %v", err)
	} else {
		logger.Printf("loaded %d courses (%d chunks)", courses, chunks)
	}

	server := &http.Server{
		Addr:    *addr,
		Handler: api.New(system, cfg.DocsDir, logger),
	}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logger.Printf("listening on %s", *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("serve: %v", err)
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		logger.Fatal("this permanently deletes all indexed course data; re-run with --confirm")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	system, cleanup, err := buildSystem(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer cleanup(ctx)

	if err := system.Clear(ctx); err != nil {
		logger.Fatalf("clear failed: %v", err)
	}
	logger.Println("course data removed")
}

func buildSystem(ctx context.Context, cfg config.Config, logger *log.Logger) (*rag.System, func(context.Context), error) {
	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("embedder setup: %w", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("llm setup: %w", err)
	}

	var closers []func(context.Context)
	cleanup := func(ctx context.Context) {
		for _, closer := range closers {
			closer(ctx)
		}
	}

	var st store.Store
	switch cfg.StoreBackend {
	case config.StoreMemory:
		st = store.NewMemory(embedder, cfg.CatalogMaxDistance)
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connection: %w", err)
		}
		closers = append(closers, func(context.Context) { pool.Close() })
		if err := database.EnsureCourseSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
			cleanup(ctx)
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		st = store.NewPostgres(pool, embedder, cfg.CatalogMaxDistance)
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}

	var driver neo4j.DriverWithContext
	if cfg.Neo4jURI != "" {
		driver, err = database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			cleanup(ctx)
			return nil, nil, fmt.Errorf("neo4j connection: %w", err)
		}
		closers = append(closers, func(ctx context.Context) { _ = driver.Close(ctx) })
	}

	system := rag.New(st, llmClient, driver, logger, rag.Options{
		SearchTopK:    cfg.SearchTopK,
		MaxToolRounds: cfg.MaxToolRounds,
		MaxExchanges:  cfg.MaxExchanges,
		ChunkSize:     cfg.ChunkSize,
		ChunkOverlap:  cfg.ChunkOverlap,
	})

	return system, cleanup, nil
}

func printUsage() {
	fmt.Println("Usage: course-agent <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  ingest   Load course documents into the vector store (use --dir to override docs directory)")
	fmt.Println("  query    Ask a one-off question against the ingested courses")
	fmt.Println("  serve    Run the HTTP API (ingests the docs directory on startup)")
	fmt.Println("  clear    Remove all indexed course data")
}
